package foundry

import (
	"context"
	"fmt"
	"strconv"
)

// Action identifies the kind of database operation an Operation requests
type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
)

// Claims carries the authenticated caller's identity for permission checks
// and value injection. Extra holds any claim values beyond the named ones.
type Claims struct {
	Subject string         `json:"sub"`
	Roles   []string       `json:"roles,omitempty"`
	Scope   string         `json:"scope,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Get returns a claim value by name. Named fields shadow Extra entries.
func (c *Claims) Get(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	switch name {
	case "sub":
		if c.Subject != "" {
			return c.Subject, true
		}
	case "scope":
		if c.Scope != "" {
			return c.Scope, true
		}
	case "roles":
		if len(c.Roles) > 0 {
			return c.Roles, true
		}
	}
	v, ok := c.Extra[name]
	return v, ok
}

// Operation is the engine's unit of work: one action against one schema
// object, with selection criteria, values to store, and result shaping.
type Operation struct {
	Entity         string         `json:"entity"`
	Action         Action         `json:"action"`
	QueryParams    map[string]any `json:"query_params,omitempty"`
	StoreParams    map[string]any `json:"store_params,omitempty"`
	MetadataParams map[string]any `json:"metadata_params,omitempty"`
	Claims         *Claims        `json:"-"`
}

// Roles returns the caller's roles, empty when the operation is anonymous
func (o *Operation) Roles() []string {
	if o.Claims == nil {
		return nil
	}
	return o.Claims.Roles
}

// MetadataString returns a string-valued metadata parameter
func (o *Operation) MetadataString(key string) (string, bool) {
	v, ok := o.MetadataParams[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// MetadataBool returns a boolean-valued metadata parameter, accepting the
// string forms query strings deliver
func (o *Operation) MetadataBool(key string) bool {
	v, ok := o.MetadataParams[key]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		return err == nil && b
	}
	return false
}

// MetadataInt returns an integer-valued metadata parameter
func (o *Operation) MetadataInt(key string) (int, bool) {
	v, ok := o.MetadataParams[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// OperationStatus tracks a batch operation through its lifecycle
type OperationStatus string

const (
	StatusPending   OperationStatus = "pending"
	StatusRunning   OperationStatus = "running"
	StatusCompleted OperationStatus = "completed"
	StatusFailed    OperationStatus = "failed"
	StatusSkipped   OperationStatus = "skipped"
)

// BatchOperation is one entry in a batch request. ID may be empty; the
// batch handler assigns op_<index> in that case.
type BatchOperation struct {
	ID             string         `json:"id,omitempty"`
	Entity         string         `json:"entity"`
	Action         Action         `json:"action"`
	QueryParams    map[string]any `json:"query_params,omitempty"`
	StoreParams    map[string]any `json:"store_params,omitempty"`
	MetadataParams map[string]any `json:"metadata_params,omitempty"`
	DependsOn      []string       `json:"depends_on,omitempty"`
}

// BatchOptions controls batch failure handling. Atomic wraps the whole
// batch in one transaction; ContinueOnError records per-operation failures
// and keeps going. The two are mutually exclusive.
type BatchOptions struct {
	Atomic          bool `json:"atomic,omitempty"`
	ContinueOnError bool `json:"continue_on_error,omitempty"`
}

// BatchRequest is a set of operations executed in dependency order
type BatchRequest struct {
	Operations []BatchOperation `json:"operations"`
	Options    BatchOptions     `json:"options,omitempty"`
	Claims     *Claims          `json:"-"`
}

// OperationResult is the per-operation outcome inside a BatchResult.
// Data holds a single object for single-row results and a slice otherwise.
type OperationResult struct {
	Status OperationStatus `json:"status"`
	Data   any             `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// BatchResult reports the outcome of every operation in a batch
type BatchResult struct {
	Success bool                        `json:"success"`
	Results map[string]*OperationResult `json:"results"`
}

// Service executes single operations and batches against the database
type Service interface {
	Execute(ctx context.Context, op *Operation) ([]map[string]any, error)
	ExecuteBatch(ctx context.Context, req *BatchRequest) (*BatchResult, error)
}

func (a Action) valid() bool {
	switch a {
	case ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionRestore:
		return true
	}
	return false
}

// Validate checks an operation is structurally usable before planning
func (o *Operation) Validate() error {
	if o.Entity == "" {
		return NewValidationError("operation entity is required")
	}
	if !o.Action.valid() {
		return NewValidationError(fmt.Sprintf("unknown action '%s'", o.Action))
	}
	return nil
}
