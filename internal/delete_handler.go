package internal

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/foundry"
)

// deleteHandler generates DELETE statements, or the UPDATE a soft
// delete configuration rewrites them into.
type deleteHandler struct {
	queryHandler
}

func newDeleteHandler(op *foundry.Operation, schema *foundry.SchemaObject) *deleteHandler {
	return &deleteHandler{queryHandler{op: op, schema: schema}}
}

func (h *deleteHandler) Statement() (*Statement, error) {
	if !h.schema.AllowsEntityAction(h.op.Roles(), "delete") {
		return nil, foundry.NewPermissionError(
			"Subject is not allowed to delete "+h.schema.Name).WithEntity(h.schema.Name)
	}
	if err := checkDeleteConcurrency(&h.queryHandler); err != nil {
		return nil, err
	}

	if h.schema.HasSoftDelete() {
		return h.softDeleteStatement()
	}

	where, args, err := h.searchCondition(false, true)
	if err != nil {
		return nil, err
	}
	returning, selection, err := h.returningClause()
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("DELETE FROM %s%s%s", h.schema.Table(), where, returning)
	return &Statement{SQL: sql, Args: args, Selection: selection}, nil
}

// softDeleteStatement renders the UPDATE that marks rows deleted: every
// marker property moves to its deleted-state value and audit fields
// record who performed the delete.
func (h *deleteHandler) softDeleteStatement() (*Statement, error) {
	args := make(map[string]any)
	var assignments []string

	for _, prop := range h.schema.SoftDeleteProperties() {
		sd := prop.SoftDelete
		switch sd.Strategy {
		case foundry.SoftDeleteNullCheck:
			assignments = append(assignments, prop.Column()+" = CURRENT_TIMESTAMP")
		case foundry.SoftDeleteBooleanFlag:
			assignments = append(assignments, fmt.Sprintf("%s = %s", prop.Column(), sqlLiteral(inactiveValue(prop))))
		case foundry.SoftDeleteExcludeValues:
			assignments = append(assignments, fmt.Sprintf("%s = %s", prop.Column(), sqlLiteral(deletedValue(sd))))
		case foundry.SoftDeleteAuditField:
			if sd.Action != foundry.AuditActionDelete {
				continue
			}
			value, err := resolveInjectValue(sd.Source, h.op.Claims)
			if err != nil {
				return nil, err
			}
			key := injectPlaceholderPrefix + prop.Name
			assignments = append(assignments, fmt.Sprintf("%s = @%s", prop.Column(), key))
			args[key] = value
		}
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

func inactiveValue(prop *foundry.Property) any {
	active := activeValue(prop)
	if b, ok := active.(bool); ok {
		return !b
	}
	return false
}

func deletedValue(sd *foundry.SoftDeleteSpec) any {
	if sd.DeleteValue != nil {
		return sd.DeleteValue
	}
	return sd.Values[0]
}

// checkDeleteConcurrency mirrors the update contract: a declared
// concurrency property must be matched and multi-record selection via
// list operators is prohibited.
func checkDeleteConcurrency(h *queryHandler) error {
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
