package foundry

import (
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

// KeyType controls how a primary key value is produced on insert
type KeyType string

const (
	// KeyTypeAuto means the database produces the key; supplying one is an error
	KeyTypeAuto KeyType = "auto"
	// KeyTypeRequired means the caller must supply the key
	KeyTypeRequired KeyType = "required"
	// KeyTypeUUID renders gen_random_uuid() in the insert
	KeyTypeUUID KeyType = "uuid"
	// KeyTypeSequence renders nextval('<sequence_name>')
	KeyTypeSequence KeyType = "sequence"
)

// Soft delete strategies
const (
	SoftDeleteNullCheck     = "null_check"
	SoftDeleteBooleanFlag   = "boolean_flag"
	SoftDeleteExcludeValues = "exclude_values"
	SoftDeleteAuditField    = "audit_field"
)

// Inject actions for audit fields
const (
	AuditActionDelete  = "delete"
	AuditActionRestore = "restore"
)

// RelationType distinguishes scalar joins from array subselects
type RelationType string

const (
	RelationOne  RelationType = "one"
	RelationMany RelationType = "many"
)

// Inject describes a server-populated property value. Source is one of
// claim:<name>, timestamp, date, uuid, env:<name>; On names the actions
// the injection applies to.
type Inject struct {
	Source string   `yaml:"source" json:"source"`
	On     []string `yaml:"on" json:"on"`
}

// AppliesTo reports whether the injection covers the given action
func (i *Inject) AppliesTo(action Action) bool {
	for _, a := range i.On {
		if a == string(action) {
			return true
		}
	}
	return false
}

// SoftDeleteSpec marks a property as participating in soft delete.
// ActiveValue/Values qualify the boolean_flag and exclude_values
// strategies; Action and Source qualify audit_field.
type SoftDeleteSpec struct {
	Strategy     string `yaml:"strategy" json:"strategy"`
	ActiveValue  any    `yaml:"active_value,omitempty" json:"active_value,omitempty"`
	Values       []any  `yaml:"values,omitempty" json:"values,omitempty"`
	DeleteValue  any    `yaml:"delete_value,omitempty" json:"delete_value,omitempty"`
	RestoreValue any    `yaml:"restore_value,omitempty" json:"restore_value,omitempty"`
	Action       string `yaml:"action,omitempty" json:"action,omitempty"`
	Source       string `yaml:"source,omitempty" json:"source,omitempty"`
}

// Property describes one column of a schema object
type Property struct {
	Name         string          `yaml:"-" json:"name"`
	ColumnName   string          `yaml:"column_name,omitempty" json:"column_name,omitempty"`
	APIType      string          `yaml:"api_type" json:"api_type"`
	ColumnType   string          `yaml:"column_type,omitempty" json:"column_type,omitempty"`
	Required     bool            `yaml:"required,omitempty" json:"required,omitempty"`
	MaxLength    int             `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	KeyType      KeyType         `yaml:"key_type,omitempty" json:"key_type,omitempty"`
	SequenceName string          `yaml:"sequence_name,omitempty" json:"sequence_name,omitempty"`
	Inject       *Inject         `yaml:"inject,omitempty" json:"inject,omitempty"`
	SoftDelete   *SoftDeleteSpec `yaml:"soft_delete,omitempty" json:"soft_delete,omitempty"`
}

// Column returns the database column name the property maps to
func (p *Property) Column() string {
	if p.ColumnName != "" {
		return p.ColumnName
	}
	return p.Name
}

// IsKey reports whether the property is the primary key
func (p *Property) IsKey() bool {
	return p.KeyType != ""
}

// Relation links a schema object to another one
type Relation struct {
	Name           string       `yaml:"-" json:"name"`
	Schema         string       `yaml:"schema" json:"schema"`
	Type           RelationType `yaml:"type" json:"type"`
	ParentProperty string       `yaml:"parent_property" json:"parent_property"`
	ChildProperty  string       `yaml:"child_property" json:"child_property"`
}

// SchemaObject describes one exposed entity: its table, properties,
// relations, permissions and concurrency settings.
type SchemaObject struct {
	Name                string               `yaml:"-" json:"name"`
	TableName           string               `yaml:"table_name,omitempty" json:"table_name,omitempty"`
	Properties          map[string]*Property `yaml:"properties" json:"properties"`
	Relations           map[string]*Relation `yaml:"relations,omitempty" json:"relations,omitempty"`
	ConcurrencyProperty string               `yaml:"concurrency_property,omitempty" json:"concurrency_property,omitempty"`
	Permissions         Permissions          `yaml:"permissions,omitempty" json:"permissions,omitempty"`

	permissionCache *permissionCache
	storeSchema     *jsonschema.Resolved
}

// Table returns the table name, defaulting to the schema object name
func (s *SchemaObject) Table() string {
	if s.TableName != "" {
		return s.TableName
	}
	return s.Name
}

// Property returns the named property
func (s *SchemaObject) Property(name string) (*Property, bool) {
	p, ok := s.Properties[name]
	return p, ok
}

// PropertyNames returns all property names in alphabetical order
func (s *SchemaObject) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeyProperty returns the primary key property, nil when none is declared
func (s *SchemaObject) KeyProperty() *Property {
	for _, name := range s.PropertyNames() {
		if s.Properties[name].IsKey() {
			return s.Properties[name]
		}
	}
	return nil
}

// ConcurrencyProp returns the optimistic concurrency property, nil when
// the object does not use concurrency control
func (s *SchemaObject) ConcurrencyProp() *Property {
	if s.ConcurrencyProperty == "" {
		return nil
	}
	p, ok := s.Properties[s.ConcurrencyProperty]
	if !ok {
		return nil
	}
	return p
}

// SoftDeleteProperties returns soft-delete marked properties in
// alphabetical order
func (s *SchemaObject) SoftDeleteProperties() []*Property {
	var props []*Property
	for _, name := range s.PropertyNames() {
		if s.Properties[name].SoftDelete != nil {
			props = append(props, s.Properties[name])
		}
	}
	return props
}

// HasSoftDelete reports whether any property declares a soft-delete
// strategy that rewrites deletes into updates
func (s *SchemaObject) HasSoftDelete() bool {
	for _, p := range s.Properties {
		if p.SoftDelete != nil {
			return true
		}
	}
	return false
}

// Relation returns the named relation
func (s *SchemaObject) Relation(name string) (*Relation, bool) {
	r, ok := s.Relations[name]
	return r, ok
}

// PathInput is one named input of a custom SQL path operation
type PathInput struct {
	Type    string `yaml:"type,omitempty" json:"type,omitempty"`
	Default any    `yaml:"default,omitempty" json:"default,omitempty"`
}

// PathOperation is a pre-authored SQL statement exposed as an entity.
// SQL uses the same @name placeholder form the generated statements use.
type PathOperation struct {
	Name    string                `yaml:"-" json:"name"`
	SQL     string                `yaml:"sql" json:"sql"`
	Inputs  map[string]*PathInput `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs map[string]string     `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// Model is the immutable registry of schema objects and path operations.
// Built once at startup by the loader; safe for concurrent reads.
type Model struct {
	schemaObjects  map[string]*SchemaObject
	pathOperations map[string]*PathOperation
}

// NewModel validates and indexes the given schema objects and path
// operations. Property and relation names are stamped from their map
// keys; compiled permission patterns are cached per schema object.
func NewModel(schemaObjects map[string]*SchemaObject, pathOperations map[string]*PathOperation) (*Model, error) {
	m := &Model{
		schemaObjects:  make(map[string]*SchemaObject, len(schemaObjects)),
		pathOperations: make(map[string]*PathOperation, len(pathOperations)),
	}
	for name, so := range schemaObjects {
		so.Name = name
		for pname, p := range so.Properties {
			p.Name = pname
			if err := validateProperty(name, p); err != nil {
				return nil, err
			}
		}
		for rname, r := range so.Relations {
			r.Name = rname
			if r.Type != RelationOne && r.Type != RelationMany {
				return nil, NewSchemaInvalidError(name,
					fmt.Sprintf("relation '%s' has unknown type '%s'", rname, r.Type))
			}
			if _, ok := schemaObjects[r.Schema]; !ok {
				return nil, NewSchemaInvalidError(name,
					fmt.Sprintf("relation '%s' references unknown schema object '%s'", rname, r.Schema))
			}
			if _, ok := so.Properties[r.ParentProperty]; !ok {
				return nil, NewSchemaInvalidError(name,
					fmt.Sprintf("relation '%s' parent property '%s' not found", rname, r.ParentProperty))
			}
		}
		if so.ConcurrencyProperty != "" {
			if _, ok := so.Properties[so.ConcurrencyProperty]; !ok {
				return nil, NewSchemaInvalidError(name,
					fmt.Sprintf("concurrency property '%s' not found", so.ConcurrencyProperty))
			}
		}
		cache, err := compilePermissions(name, so.Permissions)
		if err != nil {
			return nil, err
		}
		so.permissionCache = cache
		storeSchema, err := buildStoreSchema(so)
		if err != nil {
			return nil, err
		}
		so.storeSchema = storeSchema
		m.schemaObjects[name] = so
	}
	for name, po := range pathOperations {
		po.Name = name
		if po.SQL == "" {
			return nil, NewSchemaInvalidError(name, fmt.Sprintf("path operation '%s' has no sql", name))
		}
		m.pathOperations[name] = po
	}
	return m, nil
}

func validateProperty(schemaName string, p *Property) error {
	switch p.KeyType {
	case "", KeyTypeAuto, KeyTypeRequired, KeyTypeUUID, KeyTypeSequence:
	default:
		return NewSchemaInvalidError(schemaName,
			fmt.Sprintf("property '%s' has unknown key type '%s'", p.Name, p.KeyType))
	}
	if p.KeyType == KeyTypeSequence && p.SequenceName == "" {
		return NewSchemaInvalidError(schemaName,
			fmt.Sprintf("property '%s' uses a sequence key without sequence_name", p.Name))
	}
	if p.SoftDelete != nil {
		switch p.SoftDelete.Strategy {
		case SoftDeleteNullCheck, SoftDeleteBooleanFlag, SoftDeleteExcludeValues, SoftDeleteAuditField:
		default:
			return NewSchemaInvalidError(schemaName,
				fmt.Sprintf("property '%s' has unknown soft delete strategy '%s'", p.Name, p.SoftDelete.Strategy))
		}
		if p.SoftDelete.Strategy == SoftDeleteExcludeValues && len(p.SoftDelete.Values) == 0 {
			return NewSchemaInvalidError(schemaName,
				fmt.Sprintf("property '%s' uses exclude_values without values", p.Name))
		}
	}
	return nil
}

// GetSchemaObject returns the named schema object
func (m *Model) GetSchemaObject(name string) (*SchemaObject, error) {
	so, ok := m.schemaObjects[name]
	if !ok {
		return nil, NewSchemaNotFoundError(name)
	}
	return so, nil
}

// GetPathOperation returns the named path operation
func (m *Model) GetPathOperation(name string) (*PathOperation, error) {
	po, ok := m.pathOperations[name]
	if !ok {
		return nil, NewSchemaNotFoundError(name)
	}
	return po, nil
}

// HasPathOperation reports whether a custom SQL operation exists for name
func (m *Model) HasPathOperation(name string) bool {
	_, ok := m.pathOperations[name]
	return ok
}

// SchemaNames returns all schema object names in alphabetical order
func (m *Model) SchemaNames() []string {
	names := make([]string, 0, len(m.schemaObjects))
	for name := range m.schemaObjects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
