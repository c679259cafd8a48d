package internal

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/foundry"
)

// updateHandler generates UPDATE statements with optimistic concurrency
// enforcement: the current stamp must be supplied as a query parameter
// and the SET clause regenerates it.
type updateHandler struct {
	queryHandler
}

func newUpdateHandler(op *foundry.Operation, schema *foundry.SchemaObject) *updateHandler {
	return &updateHandler{queryHandler{op: op, schema: schema}}
}

func (h *updateHandler) Statement() (*Statement, error) {
	if err := rejectInjectedStoreParams(h.schema, foundry.ActionUpdate, h.op.StoreParams); err != nil {
		return nil, err
	}
	if err := h.validateStoreParams(); err != nil {
		return nil, err
	}
	if err := h.checkConcurrency(); err != nil {
		return nil, err
	}

	injected, err := injectedAssignments(h.schema, foundry.ActionUpdate, h.op.Claims)
	if err != nil {
		return nil, err
	}
	injectedByName := make(map[string]*injectedValue, len(injected))
	for _, iv := range injected {
		injectedByName[iv.prop.Name] = iv
	}

	args := make(map[string]any)
	var assignments []string

	for _, name := range h.schema.PropertyNames() {
		prop, _ := h.schema.Property(name)

		if iv, ok := injectedByName[name]; ok {
			assignments = append(assignments, fmt.Sprintf("%s = @%s", prop.Column(), iv.key))
			args[iv.key] = iv.value
			continue
		}
		if name == h.schema.ConcurrencyProperty {
			assignments = append(assignments, fmt.Sprintf("%s = %s", prop.Column(), h.concurrencyGenerator(prop, true)))
			continue
		}
		raw, ok := h.op.StoreParams[name]
		if !ok {
			continue
		}
		v, err := foundry.ToStoreValue(prop, raw)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, fmt.Sprintf("%s = @%s", prop.Column(), name))
		args[name] = v
	}

	if len(assignments) == 0 {
		return nil, foundry.NewValidationError(
			fmt.Sprintf("No properties to update. schema object: %s", h.schema.Name)).
			WithEntity(h.schema.Name)
	}

	where, whereArgs, err := h.searchCondition(false, true)
	if err != nil {
		return nil, err
	}
	for k, v := range whereArgs {
		args[k] = v
	}

	returning, selection, err := h.returningClause()
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("UPDATE %s SET %s%s%s",
		h.schema.Table(), strings.Join(assignments, ", "), where, returning)

	return &Statement{SQL: sql, Args: args, Selection: selection}, nil
}

func (h *updateHandler) validateStoreParams() error {
	var denied []string
	for _, name := range sortedKeys(h.op.StoreParams) {
		if _, ok := h.schema.Property(name); !ok {
			return foundry.NewValidationError(
				fmt.Sprintf("Invalid store parameter, property not found. schema object: %s, property: %s", h.schema.Name, name)).
				WithEntity(h.schema.Name).WithField(name)
		}
		if name == h.schema.ConcurrencyProperty {
			return foundry.NewValidationError(
				fmt.Sprintf("Versioned properties can not be supplied as store parameters. schema object: %s, property: %s", h.schema.Name, name)).
				WithEntity(h.schema.Name).WithField(name)
		}
		if !h.schema.AllowsProperty(h.op.Roles(), "write", name) {
			denied = append(denied, name)
		}
	}
	if len(denied) > 0 {
		return foundry.NewPermissionError(
			fmt.Sprintf("Subject does not have permission to update properties: %s", strings.Join(denied, ", "))).
			WithEntity(h.schema.Name)
	}
	return nil
}

// checkConcurrency enforces the optimistic concurrency contract: the
// caller must name the current stamp, and multi-record selection is
// prohibited so a stale stamp can never touch more than one row.
func (h *updateHandler) checkConcurrency() error {
	cc := h.schema.ConcurrencyProp()
	if cc == nil {
		return nil
	}
	if _, ok := h.op.QueryParams[cc.Name]; !ok {
		return foundry.NewValidationError(
			fmt.Sprintf("Missing required concurrency management property. schema object: %s, property: %s", h.schema.Name, cc.Name)).
			WithEntity(h.schema.Name).WithField(cc.Name)
	}
	for _, name := range sortedKeys(h.op.QueryParams) {
		if s, ok := h.op.QueryParams[name].(string); ok {
			op, _, found := strings.Cut(s, operatorSeparator)
			if found && (op == "in" || op == "not-in") {
				return foundry.NewValidationError(
					fmt.Sprintf("Concurrency settings prohibit multi-record updates %s, property: %s", h.schema.Name, name)).
					WithEntity(h.schema.Name).WithField(name)
			}
		}
	}
	return nil
}
