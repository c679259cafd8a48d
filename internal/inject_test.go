package internal

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/foundry"
)

func TestResolveInjectValue(t *testing.T) {
	claims := &foundry.Claims{
		Subject: "alice",
		Extra:   map[string]any{"tenant": "acme"},
	}

	t.Run("claim subject", func(t *testing.T) {
		v, err := resolveInjectValue("claim:sub", claims)
		require.NoError(t, err)
		assert.Equal(t, "alice", v)
	})

	t.Run("extra claim", func(t *testing.T) {
		v, err := resolveInjectValue("claim:tenant", claims)
		require.NoError(t, err)
		assert.Equal(t, "acme", v)
	})

	t.Run("missing claim resolves to nil", func(t *testing.T) {
		v, err := resolveInjectValue("claim:department", claims)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("nil claims resolve to nil", func(t *testing.T) {
		v, err := resolveInjectValue("claim:sub", nil)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("timestamp", func(t *testing.T) {
		v, err := resolveInjectValue("timestamp", claims)
		require.NoError(t, err)
		_, perr := time.Parse(time.RFC3339, v.(string))
		assert.NoError(t, perr)
	})

	t.Run("date", func(t *testing.T) {
		v, err := resolveInjectValue("date", claims)
		require.NoError(t, err)
		_, perr := time.Parse("2006-01-02", v.(string))
		assert.NoError(t, perr)
	})

	t.Run("uuid", func(t *testing.T) {
		v, err := resolveInjectValue("uuid", claims)
		require.NoError(t, err)
		_, perr := uuid.Parse(v.(string))
		assert.NoError(t, perr)
	})

	t.Run("env present", func(t *testing.T) {
		t.Setenv("FOUNDRY_TEST_REGION", "eu-north-1")
		v, err := resolveInjectValue("env:FOUNDRY_TEST_REGION", claims)
		require.NoError(t, err)
		assert.Equal(t, "eu-north-1", v)
	})

	t.Run("env missing resolves to nil", func(t *testing.T) {
		v, err := resolveInjectValue("env:FOUNDRY_TEST_UNSET", claims)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := resolveInjectValue("magic", claims)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Unknown inject value source: magic")
	})
}

func TestInsertInjectsServerValues(t *testing.T) {
	model := testModel(t)
	schema := testSchema(t, model, "document")

	op := &foundry.Operation{
		Entity:      "document",
		Action:      foundry.ActionCreate,
		StoreParams: map[string]any{"title": "Q3 report"},
		Claims:      &foundry.Claims{Subject: "alice"},
	}
	stmt, err := newInsertHandler(op, schema).Statement()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO document ( created_by, title, updated_on ) "+
			"VALUES ( @__inject_created_by, @title, @__inject_updated_on ) "+
			"RETURNING created_by, doc_id, title, updated_on",
		stmt.SQL)
	assert.Equal(t, "alice", stmt.Args["__inject_created_by"])
	assert.Equal(t, "Q3 report", stmt.Args["title"])
	assert.NotNil(t, stmt.Args["__inject_updated_on"])
}

func TestUpdateInjectsOnlyMatchingActions(t *testing.T) {
	model := testModel(t)
	schema := testSchema(t, model, "document")

	// created_by only injects on create, updated_on on create and update
	op := &foundry.Operation{
		Entity:      "document",
		Action:      foundry.ActionUpdate,
		QueryParams: map[string]any{"doc_id": 4},
		StoreParams: map[string]any{"title": "Q3 report v2"},
		Claims:      &foundry.Claims{Subject: "alice"},
	}
	stmt, err := newUpdateHandler(op, schema).Statement()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE document SET title = @title, updated_on = @__inject_updated_on "+
			"WHERE doc_id = @doc_id "+
			"RETURNING created_by, doc_id, title, updated_on",
		stmt.SQL)
	assert.NotContains(t, stmt.Args, "__inject_created_by")
}

func TestInjectedPropertyCannotBeSupplied(t *testing.T) {
	model := testModel(t)
	schema := testSchema(t, model, "document")

	op := &foundry.Operation{
		Entity:      "document",
		Action:      foundry.ActionCreate,
		StoreParams: map[string]any{"title": "Q3 report", "created_by": "mallory"},
		Claims:      &foundry.Claims{Subject: "alice"},
	}
	_, err := newInsertHandler(op, schema).Statement()
	require.Error(t, err)
	assert.Equal(t, 403, foundry.StatusOf(err))
	assert.Contains(t, err.Error(),
		"Property 'created_by' is auto-injected and cannot be supplied. schema object: document")
}

func TestInjectedPropertyAllowedOutsideInjectActions(t *testing.T) {
	model := testModel(t)
	schema := testSchema(t, model, "document")

	// created_by injects on create only, so updates may set it
	op := &foundry.Operation{
		Entity:      "document",
		Action:      foundry.ActionUpdate,
		QueryParams: map[string]any{"doc_id": 4},
		StoreParams: map[string]any{"created_by": "bob"},
		Claims:      &foundry.Claims{Subject: "alice"},
	}
	stmt, err := newUpdateHandler(op, schema).Statement()
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "created_by = @created_by")
}
