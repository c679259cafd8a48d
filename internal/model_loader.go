package internal

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/lychee-technology/foundry"
)

// modelDocument is the YAML shape of a model file
type modelDocument struct {
	SchemaObjects  map[string]*foundry.SchemaObject  `yaml:"schema_objects"`
	PathOperations map[string]*foundry.PathOperation `yaml:"path_operations"`
}

// ParseModel builds a validated model from YAML bytes
func ParseModel(data []byte) (*foundry.Model, error) {
	var doc modelDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, foundry.NewValidationError("failed to parse model document").WithCause(err)
	}
	model, err := foundry.NewModel(doc.SchemaObjects, doc.PathOperations)
	if err != nil {
		return nil, err
	}
	zap.S().Infow("model loaded",
		"schema_objects", len(doc.SchemaObjects), "path_operations", len(doc.PathOperations))
	return model, nil
}

// LoadModel reads and parses a model file
func LoadModel(path string) (*foundry.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, foundry.NewInternalError("failed to read model file: "+path, err)
	}
	return ParseModel(data)
}
