package foundry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSchemaObjects() map[string]*SchemaObject {
	return map[string]*SchemaObject{
		"order": {
			TableName:           "orders",
			ConcurrencyProperty: "version",
			Properties: map[string]*Property{
				"order_id": {APIType: "integer", KeyType: KeyTypeAuto},
				"status":   {APIType: "string", MaxLength: 20},
				"version":  {APIType: "integer"},
				"line_ref": {APIType: "integer", ColumnName: "order_line_id"},
			},
			Relations: map[string]*Relation{
				"lines": {
					Schema:         "order_line",
					Type:           RelationMany,
					ParentProperty: "order_id",
					ChildProperty:  "order_id",
				},
			},
		},
		"order_line": {
			Properties: map[string]*Property{
				"order_line_id": {APIType: "integer", KeyType: KeyTypeAuto},
				"order_id":      {APIType: "integer"},
			},
		},
	}
}

func TestNewModel(t *testing.T) {
	model, err := NewModel(validSchemaObjects(), map[string]*PathOperation{
		"pending_orders": {SQL: "SELECT order_id FROM orders WHERE status = 'pending'"},
	})
	require.NoError(t, err)

	order, err := model.GetSchemaObject("order")
	require.NoError(t, err)
	assert.Equal(t, "orders", order.Table())
	assert.Equal(t, []string{"line_ref", "order_id", "status", "version"}, order.PropertyNames())

	// names are stamped from the map keys
	prop, ok := order.Property("line_ref")
	require.True(t, ok)
	assert.Equal(t, "line_ref", prop.Name)
	assert.Equal(t, "order_line_id", prop.Column())

	key := order.KeyProperty()
	require.NotNil(t, key)
	assert.Equal(t, "order_id", key.Name)

	cc := order.ConcurrencyProp()
	require.NotNil(t, cc)
	assert.Equal(t, "version", cc.Name)

	assert.Equal(t, []string{"order", "order_line"}, model.SchemaNames())
	assert.True(t, model.HasPathOperation("pending_orders"))
}

func TestNewModelValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]*SchemaObject)
		wantErr string
	}{
		{
			name: "unknown key type",
			mutate: func(m map[string]*SchemaObject) {
				m["order"].Properties["order_id"].KeyType = "generated"
			},
			wantErr: "unknown key type 'generated'",
		},
		{
			name: "sequence without name",
			mutate: func(m map[string]*SchemaObject) {
				m["order"].Properties["order_id"].KeyType = KeyTypeSequence
			},
			wantErr: "uses a sequence key without sequence_name",
		},
		{
			name: "unknown soft delete strategy",
			mutate: func(m map[string]*SchemaObject) {
				m["order"].Properties["status"].SoftDelete = &SoftDeleteSpec{Strategy: "tombstone"}
			},
			wantErr: "unknown soft delete strategy 'tombstone'",
		},
		{
			name: "exclude_values without values",
			mutate: func(m map[string]*SchemaObject) {
				m["order"].Properties["status"].SoftDelete = &SoftDeleteSpec{Strategy: SoftDeleteExcludeValues}
			},
			wantErr: "uses exclude_values without values",
		},
		{
			name: "relation with unknown type",
			mutate: func(m map[string]*SchemaObject) {
				m["order"].Relations["lines"].Type = "nested"
			},
			wantErr: "unknown type 'nested'",
		},
		{
			name: "relation to unknown schema",
			mutate: func(m map[string]*SchemaObject) {
				m["order"].Relations["lines"].Schema = "phantom"
			},
			wantErr: "references unknown schema object 'phantom'",
		},
		{
			name: "relation with unknown parent property",
			mutate: func(m map[string]*SchemaObject) {
				m["order"].Relations["lines"].ParentProperty = "ghost"
			},
			wantErr: "parent property 'ghost' not found",
		},
		{
			name: "missing concurrency property",
			mutate: func(m map[string]*SchemaObject) {
				m["order"].ConcurrencyProperty = "revision"
			},
			wantErr: "concurrency property 'revision' not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects := validSchemaObjects()
			tt.mutate(objects)
			_, err := NewModel(objects, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewModelRejectsEmptyPathSQL(t *testing.T) {
	_, err := NewModel(validSchemaObjects(), map[string]*PathOperation{
		"broken": {},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path operation 'broken' has no sql")
}

func TestGetSchemaObjectNotFound(t *testing.T) {
	model, err := NewModel(validSchemaObjects(), nil)
	require.NoError(t, err)

	_, err = model.GetSchemaObject("phantom")
	require.Error(t, err)
	assert.True(t, IsSchemaNotFoundError(err))
	assert.Equal(t, 404, StatusOf(err))
}

func TestValidateStoreParamsShape(t *testing.T) {
	model, err := NewModel(validSchemaObjects(), nil)
	require.NoError(t, err)
	order, _ := model.GetSchemaObject("order")

	assert.NoError(t, order.ValidateStoreParams(map[string]any{"status": "pending"}))
	assert.NoError(t, order.ValidateStoreParams(map[string]any{"order_id": 3}))
	// query-string transports deliver numbers as text
	assert.NoError(t, order.ValidateStoreParams(map[string]any{"order_id": "3"}))
	assert.NoError(t, order.ValidateStoreParams(nil))

	err = order.ValidateStoreParams(map[string]any{"status": true})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "Store parameters failed validation. schema object: order")

	err = order.ValidateStoreParams(map[string]any{"status": "a status value longer than twenty characters"})
	require.Error(t, err)
}

func TestSoftDeleteProperties(t *testing.T) {
	objects := validSchemaObjects()
	objects["order"].Properties["status"].SoftDelete = &SoftDeleteSpec{
		Strategy: SoftDeleteExcludeValues,
		Values:   []any{"cancelled"},
	}
	model, err := NewModel(objects, nil)
	require.NoError(t, err)
	order, _ := model.GetSchemaObject("order")

	assert.True(t, order.HasSoftDelete())
	props := order.SoftDeleteProperties()
	require.Len(t, props, 1)
	assert.Equal(t, "status", props[0].Name)

	line, _ := model.GetSchemaObject("order_line")
	assert.False(t, line.HasSoftDelete())
	assert.Empty(t, line.SoftDeleteProperties())
}
