package foundry

import (
	"reflect"
	"testing"
)

func permissionModel(t *testing.T) *SchemaObject {
	t.Helper()
	model, err := NewModel(map[string]*SchemaObject{
		"report": {
			Properties: map[string]*Property{
				"report_id": {APIType: "integer", KeyType: KeyTypeAuto},
				"title":     {APIType: "string"},
				"body":      {APIType: "string"},
				"owner":     {APIType: "string"},
			},
			Permissions: Permissions{
				"viewer": {
					"read": "report_id|title",
				},
				"editor": {
					"read":  ".*",
					"write": "title|body",
				},
				"admin": {
					"read":    true,
					"write":   true,
					"delete":  true,
					"restore": true,
				},
				"*": {
					"read": "report_id",
				},
			},
		},
		"open": {
			Properties: map[string]*Property{
				"open_id": {APIType: "integer", KeyType: KeyTypeAuto},
				"name":    {APIType: "string"},
			},
		},
		"writable": {
			Properties: map[string]*Property{
				"writable_id": {APIType: "integer", KeyType: KeyTypeAuto},
			},
			Permissions: Permissions{
				"editor": {"write": ".*"},
			},
		},
	}, nil)
	if err != nil {
		t.Fatalf("failed to build model: %v", err)
	}
	so, err := model.GetSchemaObject("report")
	if err != nil {
		t.Fatalf("schema object report: %v", err)
	}
	return so
}

func TestAllowedProperties(t *testing.T) {
	report := permissionModel(t)

	tests := []struct {
		name   string
		roles  []string
		action string
		want   []string
	}{
		{"viewer read subset", []string{"viewer"}, "read", []string{"report_id", "title"}},
		{"editor reads everything", []string{"editor"}, "read", []string{"body", "owner", "report_id", "title"}},
		{"roles union", []string{"viewer", "editor"}, "write", []string{"body", "title"}},
		{"boolean grant covers all", []string{"admin"}, "write", []string{"body", "owner", "report_id", "title"}},
		{"wildcard applies to anonymous", nil, "read", []string{"report_id"}},
		{"no grant for action", []string{"viewer"}, "write", nil},
		{"unknown role falls back to wildcard", []string{"ghost"}, "read", []string{"report_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := report.AllowedProperties(tt.roles, tt.action)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AllowedProperties(%v, %q) = %v, want %v", tt.roles, tt.action, got, tt.want)
			}
		})
	}
}

func TestAllowsProperty(t *testing.T) {
	report := permissionModel(t)

	if !report.AllowsProperty([]string{"editor"}, "write", "title") {
		t.Error("editor should be allowed to write title")
	}
	if report.AllowsProperty([]string{"editor"}, "write", "owner") {
		t.Error("editor should not be allowed to write owner")
	}
	if !report.AllowsProperty([]string{"admin"}, "write", "owner") {
		t.Error("admin boolean grant should cover owner")
	}
	if report.AllowsProperty(nil, "write", "title") {
		t.Error("anonymous caller should have no write grant")
	}
}

func TestAllowsEntityAction(t *testing.T) {
	report := permissionModel(t)

	if !report.AllowsEntityAction([]string{"admin"}, "delete") {
		t.Error("admin should be allowed to delete")
	}
	if report.AllowsEntityAction([]string{"editor"}, "delete") {
		t.Error("editor should not be allowed to delete")
	}
	if !report.AllowsEntityAction([]string{"admin"}, "restore") {
		t.Error("admin should be allowed to restore")
	}
	// restore is declared on report, so editor's write grant does not apply
	if report.AllowsEntityAction([]string{"editor"}, "restore") {
		t.Error("editor should not be allowed to restore when restore is declared")
	}
}

func TestRestoreFallsBackToWrite(t *testing.T) {
	model, err := NewModel(map[string]*SchemaObject{
		"note": {
			Properties: map[string]*Property{
				"note_id": {APIType: "integer", KeyType: KeyTypeAuto},
			},
			Permissions: Permissions{
				"editor": {"write": ".*"},
			},
		},
	}, nil)
	if err != nil {
		t.Fatalf("failed to build model: %v", err)
	}
	note, _ := model.GetSchemaObject("note")

	if !note.AllowsEntityAction([]string{"editor"}, "restore") {
		t.Error("restore should fall back to the write grant when undeclared")
	}
	if note.AllowsEntityAction([]string{"viewer"}, "restore") {
		t.Error("viewer has no write grant to fall back to")
	}
}

func TestUnrestrictedSchemaObject(t *testing.T) {
	model, err := NewModel(map[string]*SchemaObject{
		"open": {
			Properties: map[string]*Property{
				"open_id": {APIType: "integer", KeyType: KeyTypeAuto},
				"name":    {APIType: "string"},
			},
		},
	}, nil)
	if err != nil {
		t.Fatalf("failed to build model: %v", err)
	}
	open, _ := model.GetSchemaObject("open")

	if !open.Unrestricted() {
		t.Error("schema object without permissions should be unrestricted")
	}
	got := open.AllowedProperties(nil, "read")
	if !reflect.DeepEqual(got, []string{"name", "open_id"}) {
		t.Errorf("unrestricted AllowedProperties = %v", got)
	}
	if !open.AllowsEntityAction(nil, "delete") {
		t.Error("unrestricted schema object should allow delete")
	}
}

func TestInvalidPermissionPattern(t *testing.T) {
	_, err := NewModel(map[string]*SchemaObject{
		"broken": {
			Properties: map[string]*Property{
				"broken_id": {APIType: "integer", KeyType: KeyTypeAuto},
			},
			Permissions: Permissions{
				"viewer": {"read": "("},
			},
		},
	}, nil)
	if err == nil {
		t.Fatal("expected an error for an invalid permission pattern")
	}
}
