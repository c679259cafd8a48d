package foundry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimsGet(t *testing.T) {
	claims := &Claims{
		Subject: "alice",
		Roles:   []string{"admin"},
		Scope:   "read write",
		Extra:   map[string]any{"tenant": "acme"},
	}

	v, ok := claims.Get("sub")
	require.True(t, ok)
	assert.Equal(t, "alice", v)

	v, ok = claims.Get("scope")
	require.True(t, ok)
	assert.Equal(t, "read write", v)

	v, ok = claims.Get("roles")
	require.True(t, ok)
	assert.Equal(t, []string{"admin"}, v)

	v, ok = claims.Get("tenant")
	require.True(t, ok)
	assert.Equal(t, "acme", v)

	_, ok = claims.Get("department")
	assert.False(t, ok)

	var nilClaims *Claims
	_, ok = nilClaims.Get("sub")
	assert.False(t, ok)
}

func TestOperationRoles(t *testing.T) {
	op := &Operation{Entity: "invoice", Action: ActionRead}
	assert.Empty(t, op.Roles())

	op.Claims = &Claims{Roles: []string{"user", "admin"}}
	assert.Equal(t, []string{"user", "admin"}, op.Roles())
}

func TestOperationMetadataAccessors(t *testing.T) {
	op := &Operation{
		Entity: "invoice",
		Action: ActionRead,
		MetadataParams: map[string]any{
			"properties": "total",
			"count":      "true",
			"limit":      "25",
			"offset":     float64(50),
			"flag":       true,
		},
	}

	s, ok := op.MetadataString("properties")
	require.True(t, ok)
	assert.Equal(t, "total", s)

	_, ok = op.MetadataString("missing")
	assert.False(t, ok)

	assert.True(t, op.MetadataBool("count"))
	assert.True(t, op.MetadataBool("flag"))
	assert.False(t, op.MetadataBool("missing"))

	n, ok := op.MetadataInt("limit")
	require.True(t, ok)
	assert.Equal(t, 25, n)

	n, ok = op.MetadataInt("offset")
	require.True(t, ok)
	assert.Equal(t, 50, n)

	_, ok = op.MetadataInt("properties")
	assert.False(t, ok)
}

func TestOperationValidate(t *testing.T) {
	op := &Operation{Entity: "invoice", Action: ActionRead}
	assert.NoError(t, op.Validate())

	op = &Operation{Action: ActionRead}
	err := op.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation entity is required")

	op = &Operation{Entity: "invoice", Action: "merge"}
	err = op.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action 'merge'")
}
