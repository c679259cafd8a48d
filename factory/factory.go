package factory

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lychee-technology/foundry"
	"github.com/lychee-technology/foundry/internal"
)

// NewService creates a Service from a configuration and database pool.
// This is the primary way for external projects to construct the engine.
//
// Usage:
//
//	config := foundry.DefaultConfig()
//	config.Model.Path = "model.yaml"
//	svc, err := factory.NewService(config, pool)
//	if err != nil {
//	    // handle error
//	}
func NewService(config *foundry.Config, pool *pgxpool.Pool) (foundry.Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Model.Path == "" {
		return nil, fmt.Errorf("model path is required")
	}
	model, err := internal.LoadModel(config.Model.Path)
	if err != nil {
		return nil, err
	}
	return internal.NewService(model, pool, config), nil
}

// NewServiceWithModel creates a Service from an already-built model.
// Callers that assemble schema objects programmatically use this.
func NewServiceWithModel(config *foundry.Config, model *foundry.Model, pool *pgxpool.Pool) (foundry.Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return internal.NewService(model, pool, config), nil
}
