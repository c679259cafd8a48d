package internal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lychee-technology/foundry"
)

// OperationExecutor plans and runs a single operation: it selects the
// handler for the action, executes the generated statement, converts
// result rows to API values and expands array relations.
type OperationExecutor struct {
	model  *foundry.Model
	conn   *Connector
	limits foundry.QueryConfig
}

func NewOperationExecutor(model *foundry.Model, conn *Connector, limits foundry.QueryConfig) *OperationExecutor {
	return &OperationExecutor{model: model, conn: conn, limits: limits}
}

// Plan generates the statement for an operation without executing it
func (e *OperationExecutor) Plan(op *foundry.Operation) (*Statement, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if e.model.HasPathOperation(op.Entity) {
		path, err := e.model.GetPathOperation(op.Entity)
		if err != nil {
			return nil, err
		}
		return newCustomHandler(op, path).Statement()
	}
	schema, err := e.model.GetSchemaObject(op.Entity)
	if err != nil {
		return nil, err
	}
	switch op.Action {
	case foundry.ActionRead:
		return newSelectHandler(op, schema, e.model, e.limits).Statement()
	case foundry.ActionCreate:
		return newInsertHandler(op, schema).Statement()
	case foundry.ActionUpdate:
		return newUpdateHandler(op, schema).Statement()
	case foundry.ActionDelete:
		return newDeleteHandler(op, schema).Statement()
	case foundry.ActionRestore:
		return newRestoreHandler(op, schema).Statement()
	}
	return nil, foundry.NewValidationError(fmt.Sprintf("unknown action '%s'", op.Action))
}

// Execute runs an operation. A nil querier executes directly on the
// pool; batch execution passes its transaction.
func (e *OperationExecutor) Execute(ctx context.Context, q querier, op *foundry.Operation) ([]map[string]any, error) {
	stmt, err := e.Plan(op)
	if err != nil {
		return nil, err
	}

	rows, err := e.conn.Execute(ctx, q, stmt)
	if err != nil {
		zap.S().Warnw("operation failed", "entity", op.Entity, "action", op.Action, "error", err)
		return nil, err
	}

	if stmt.Selection == nil {
		// count queries return the raw row
		return rows, nil
	}

	results := make([]map[string]any, len(rows))
	for i, row := range rows {
		results[i] = convertRow(row, stmt.Selection)
	}

	if op.Action == foundry.ActionRead && !e.model.HasPathOperation(op.Entity) {
		if err := e.attachArrayRelations(ctx, q, op, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// convertRow maps column-keyed database values to property-keyed API
// values, nesting joined relation columns under their relation name.
func convertRow(row map[string]any, selection map[string]*SelectionField) map[string]any {
	out := make(map[string]any, len(row))
	for col, value := range row {
		field, ok := selection[col]
		if !ok {
			out[col] = value
			continue
		}
		converted := foundry.ToAPIValue(field.Property, value)
		if field.Relation == "" {
			out[field.Property.Name] = converted
			continue
		}
		nested, ok := out[field.Relation].(map[string]any)
		if !ok {
			nested = make(map[string]any)
			out[field.Relation] = nested
		}
		nested[field.Property.Name] = converted
	}
	return out
}

// attachArrayRelations runs the subselect for each requested many
// relation and groups child rows onto their parents.
func (e *OperationExecutor) attachArrayRelations(ctx context.Context, q querier, op *foundry.Operation, parents []map[string]any) error {
	schema, err := e.model.GetSchemaObject(op.Entity)
	if err != nil {
		return err
	}
	sh := newSelectHandler(op, schema, e.model, e.limits)
	rels, patterns, err := sh.arrayRelations()
	if err != nil {
		return err
	}
	for i, rel := range rels {
		child, err := e.model.GetSchemaObject(rel.Schema)
		if err != nil {
			return err
		}
		var pats []string
		if patterns[i] != "" {
			pats = strings.Fields(patterns[i])
		}
		stmt, err := newSubselectHandler(op, schema, rel, child, pats).Statement()
		if err != nil {
			return err
		}
		rows, err := e.conn.Execute(ctx, q, stmt)
		if err != nil {
			return err
		}

		childProp, _ := child.Property(rel.ChildProperty)
		grouped := make(map[any][]map[string]any)
		for _, row := range rows {
			converted := convertRow(row, stmt.Selection)
			key := fmt.Sprintf("%v", converted[childProp.Name])
			grouped[key] = append(grouped[key], converted)
		}
		for _, parent := range parents {
			key := fmt.Sprintf("%v", parent[rel.ParentProperty])
			children := grouped[key]
			if children == nil {
				children = []map[string]any{}
			}
			parent[rel.Name] = children
		}
	}
	return nil
}
