package internal

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/foundry"
)

// restoreHandler generates the UPDATE that brings soft-deleted rows
// back: markers return to their active-state values and the WHERE
// clause only matches rows currently in the deleted state.
type restoreHandler struct {
	queryHandler
}

func newRestoreHandler(op *foundry.Operation, schema *foundry.SchemaObject) *restoreHandler {
	return &restoreHandler{queryHandler{op: op, schema: schema}}
}

func (h *restoreHandler) Statement() (*Statement, error) {
	if !h.schema.HasSoftDelete() {
		return nil, foundry.NewValidationError(
			fmt.Sprintf("Restore requires a soft delete configuration. schema object: %s", h.schema.Name)).
			WithEntity(h.schema.Name)
	}
	if !h.schema.AllowsEntityAction(h.op.Roles(), string(foundry.ActionRestore)) {
		return nil, foundry.NewPermissionError(
			"Subject is not allowed to restore "+h.schema.Name).WithEntity(h.schema.Name)
	}
	if err := checkDeleteConcurrency(&h.queryHandler); err != nil {
		return nil, err
	}

	args := make(map[string]any)
	var assignments []string

	for _, prop := range h.schema.SoftDeleteProperties() {
		sd := prop.SoftDelete
		switch sd.Strategy {
		case foundry.SoftDeleteNullCheck:
			assignments = append(assignments, prop.Column()+" = NULL")
		case foundry.SoftDeleteBooleanFlag:
			assignments = append(assignments, fmt.Sprintf("%s = %s", prop.Column(), sqlLiteral(activeValue(prop))))
		case foundry.SoftDeleteExcludeValues:
			if sd.RestoreValue == nil {
				continue
			}
			assignments = append(assignments, fmt.Sprintf("%s = %s", prop.Column(), sqlLiteral(sd.RestoreValue)))
		case foundry.SoftDeleteAuditField:
			if sd.Action != foundry.AuditActionRestore {
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

	where, whereArgs, err := h.searchCondition(false, false)
	if err != nil {
		return nil, err
	}
	for k, v := range whereArgs {
		args[k] = v
	}
	where = h.appendDeletedStateFilters(where)

	returning, selection, err := h.returningClause()
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("UPDATE %s SET %s%s%s",
		h.schema.Table(), strings.Join(assignments, ", "), where, returning)
	return &Statement{SQL: sql, Args: args, Selection: selection}, nil
}

// appendDeletedStateFilters adds the inverted marker predicates so a
// restore never touches active rows.
func (h *restoreHandler) appendDeletedStateFilters(where string) string {
	var filters []string
	for _, prop := range h.schema.SoftDeleteProperties() {
		if _, ok := h.op.QueryParams[prop.Name]; ok {
			continue
		}
		switch prop.SoftDelete.Strategy {
		case foundry.SoftDeleteNullCheck:
			filters = append(filters, prop.Column()+" IS NOT NULL")
		case foundry.SoftDeleteBooleanFlag:
			filters = append(filters, fmt.Sprintf("%s = %s", prop.Column(), sqlLiteral(inactiveValue(prop))))
		case foundry.SoftDeleteExcludeValues:
			filters = append(filters, fmt.Sprintf("%s IN (%s)", prop.Column(), excludedValueList(prop.SoftDelete)))
		}
	}
	if len(filters) == 0 {
		return where
	}
	if where == "" {
		return " WHERE " + strings.Join(filters, " AND ")
	}
	return where + " AND " + strings.Join(filters, " AND ")
}
