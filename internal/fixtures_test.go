package internal

import (
	"testing"

	"github.com/lychee-technology/foundry"
)

// testModel builds the schema objects shared across handler tests
func testModel(t *testing.T) *foundry.Model {
	t.Helper()

	schemaObjects := map[string]*foundry.SchemaObject{
		"invoice": {
			ConcurrencyProperty: "last_updated",
			Properties: map[string]*foundry.Property{
				"invoice_id":      {APIType: "integer", KeyType: foundry.KeyTypeAuto},
				"customer_id":     {APIType: "integer"},
				"billing_address": {APIType: "string"},
				"billing_city":    {APIType: "string"},
				"billing_state":   {APIType: "string"},
				"invoice_date":    {APIType: "date-time"},
				"total":           {APIType: "number"},
				"last_updated":    {APIType: "uuid"},
			},
			Relations: map[string]*foundry.Relation{
				"customer": {
					Schema:         "customer",
					Type:           foundry.RelationOne,
					ParentProperty: "customer_id",
					ChildProperty:  "customer_id",
				},
				"line_items": {
					Schema:         "invoice_line",
					Type:           foundry.RelationMany,
					ParentProperty: "invoice_id",
					ChildProperty:  "invoice_id",
				},
			},
		},
		"customer": {
			Properties: map[string]*foundry.Property{
				"customer_id": {APIType: "integer", KeyType: foundry.KeyTypeRequired},
				"address":     {APIType: "string"},
				"city":        {APIType: "string"},
			},
		},
		"invoice_line": {
			Properties: map[string]*foundry.Property{
				"invoice_line_id": {APIType: "integer", KeyType: foundry.KeyTypeAuto},
				"invoice_id":      {APIType: "integer"},
				"unit_price":      {APIType: "number"},
				"quantity":        {APIType: "integer"},
			},
		},
		"album": {
			Properties: map[string]*foundry.Property{
				"album_id":  {APIType: "integer", KeyType: foundry.KeyTypeAuto},
				"title":     {APIType: "string", Required: true, MaxLength: 160},
				"artist_id": {APIType: "integer"},
			},
			Permissions: foundry.Permissions{
				"user": {
					"read":   "album_id|title",
					"write":  "title",
					"delete": false,
				},
				"admin": {
					"read":   ".*",
					"write":  ".*",
					"delete": true,
				},
			},
		},
		"genre": {
			ConcurrencyProperty: "last_updated",
			Properties: map[string]*foundry.Property{
				"genre_id":     {APIType: "integer", KeyType: foundry.KeyTypeAuto},
				"name":         {APIType: "string", Required: true},
				"last_updated": {APIType: "date-time"},
			},
		},
		"session": {
			Properties: map[string]*foundry.Property{
				"session_id": {APIType: "uuid", KeyType: foundry.KeyTypeUUID},
				"token":      {APIType: "string"},
			},
		},
		"ticket": {
			Properties: map[string]*foundry.Property{
				"ticket_id": {APIType: "integer", KeyType: foundry.KeyTypeSequence, SequenceName: "ticket_seq"},
				"subject":   {APIType: "string"},
			},
		},
		"counter": {
			ConcurrencyProperty: "version",
			Properties: map[string]*foundry.Property{
				"counter_id": {APIType: "integer", KeyType: foundry.KeyTypeAuto},
				"value":      {APIType: "integer"},
				"version":    {APIType: "integer"},
			},
		},
		"document": {
			Properties: map[string]*foundry.Property{
				"doc_id": {APIType: "integer", KeyType: foundry.KeyTypeAuto},
				"title":  {APIType: "string"},
				"created_by": {
					APIType: "string",
					Inject:  &foundry.Inject{Source: "claim:sub", On: []string{"create"}},
				},
				"updated_on": {
					APIType: "string",
					Inject:  &foundry.Inject{Source: "timestamp", On: []string{"create", "update"}},
				},
			},
		},
		"toggle": {
			Properties: map[string]*foundry.Property{
				"toggle_id": {APIType: "integer", KeyType: foundry.KeyTypeAuto},
				"enabled":   {APIType: "boolean", ColumnType: "integer"},
			},
		},
		"contract": {
			Properties: map[string]*foundry.Property{
				"contract_id": {APIType: "integer", KeyType: foundry.KeyTypeAuto},
				"name":        {APIType: "string"},
				"deleted_at": {
					APIType:    "date-time",
					SoftDelete: &foundry.SoftDeleteSpec{Strategy: foundry.SoftDeleteNullCheck},
				},
				"active": {
					APIType:    "boolean",
					SoftDelete: &foundry.SoftDeleteSpec{Strategy: foundry.SoftDeleteBooleanFlag, ActiveValue: true},
				},
				"status": {
					APIType: "string",
					SoftDelete: &foundry.SoftDeleteSpec{
						Strategy:     foundry.SoftDeleteExcludeValues,
						Values:       []any{"archived", "deleted"},
						DeleteValue:  "terminated",
						RestoreValue: "active",
					},
				},
				"deleted_by": {
					APIType: "string",
					SoftDelete: &foundry.SoftDeleteSpec{
						Strategy: foundry.SoftDeleteAuditField,
						Action:   foundry.AuditActionDelete,
						Source:   "claim:sub",
					},
				},
				"restored_by": {
					APIType: "string",
					SoftDelete: &foundry.SoftDeleteSpec{
						Strategy: foundry.SoftDeleteAuditField,
						Action:   foundry.AuditActionRestore,
						Source:   "claim:sub",
					},
				},
			},
		},
	}

	pathOperations := map[string]*foundry.PathOperation{
		"top_invoices": {
			SQL: "SELECT invoice_id, total FROM invoice ORDER BY total DESC LIMIT @limit",
			Inputs: map[string]*foundry.PathInput{
				"limit": {Type: "integer", Default: "10"},
			},
			Outputs: map[string]string{
				"invoice_id": "integer",
				"total":      "number",
			},
		},
	}

	model, err := foundry.NewModel(schemaObjects, pathOperations)
	if err != nil {
		t.Fatalf("failed to build test model: %v", err)
	}
	return model
}

func testSchema(t *testing.T, model *foundry.Model, name string) *foundry.SchemaObject {
	t.Helper()
	schema, err := model.GetSchemaObject(name)
	if err != nil {
		t.Fatalf("schema object %s: %v", name, err)
	}
	return schema
}
