package internal

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/foundry"
)

// insertHandler generates INSERT statements. Key columns, concurrency
// stamps and injected values render as expressions; caller values bind
// through named placeholders.
type insertHandler struct {
	queryHandler
}

func newInsertHandler(op *foundry.Operation, schema *foundry.SchemaObject) *insertHandler {
	return &insertHandler{queryHandler{op: op, schema: schema}}
}

func (h *insertHandler) Statement() (*Statement, error) {
	if err := rejectInjectedStoreParams(h.schema, foundry.ActionCreate, h.op.StoreParams); err != nil {
		return nil, err
	}
	if err := h.validateStoreParams(); err != nil {
		return nil, err
	}
	if err := h.schema.ValidateStoreParams(h.op.StoreParams); err != nil {
		return nil, err
	}

	injected, err := injectedAssignments(h.schema, foundry.ActionCreate, h.op.Claims)
	if err != nil {
		return nil, err
	}
	injectedByName := make(map[string]*injectedValue, len(injected))
	for _, iv := range injected {
		injectedByName[iv.prop.Name] = iv
	}

	args := make(map[string]any)
	var columns, values []string

	for _, name := range h.schema.PropertyNames() {
		prop, _ := h.schema.Property(name)
		storeValue, supplied := h.op.StoreParams[name]

		if iv, ok := injectedByName[name]; ok {
			columns = append(columns, prop.Column())
			values = append(values, "@"+iv.key)
			args[iv.key] = iv.value
			continue
		}

		if name == h.schema.ConcurrencyProperty {
			columns = append(columns, prop.Column())
			values = append(values, h.concurrencyGenerator(prop, false))
			continue
		}

		if prop.IsKey() {
			expr, err := h.keyExpression(prop, supplied)
			if err != nil {
				return nil, err
			}
			if expr == "" {
				if !supplied {
					continue
				}
				// required key, bound like any other value
			} else {
				columns = append(columns, prop.Column())
				values = append(values, expr)
				continue
			}
		}

		if !supplied {
			if prop.Required {
				return nil, foundry.NewValidationError(
					fmt.Sprintf("Missing required property. schema object: %s, property: %s", h.schema.Name, name)).
					WithEntity(h.schema.Name).WithField(name)
			}
			continue
		}

		v, err := foundry.ToStoreValue(prop, storeValue)
		if err != nil {
			return nil, err
		}
		columns = append(columns, prop.Column())
		values = append(values, "@"+name)
		args[name] = v
	}

	returning, selection, err := h.returningClause()
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("INSERT INTO %s ( %s ) VALUES ( %s )%s",
		h.schema.Table(), strings.Join(columns, ", "), strings.Join(values, ", "), returning)

	return &Statement{SQL: sql, Args: args, Selection: selection}, nil
}

// keyExpression decides how the primary key renders. An empty result
// with nil error means the key behaves like an ordinary bound value.
func (h *insertHandler) keyExpression(prop *foundry.Property, supplied bool) (string, error) {
	switch prop.KeyType {
	case foundry.KeyTypeAuto:
		if supplied {
			return "", foundry.NewValidationError(
				fmt.Sprintf("Primary key values cannot be inserted when key type is auto. schema object: %s", h.schema.Name)).
				WithEntity(h.schema.Name).WithField(prop.Name)
		}
		return "", nil
	case foundry.KeyTypeUUID:
		if supplied {
			return "", foundry.NewValidationError(
				fmt.Sprintf("Primary key values cannot be inserted when key type is uuid. schema object: %s", h.schema.Name)).
				WithEntity(h.schema.Name).WithField(prop.Name)
		}
		return "gen_random_uuid()", nil
	case foundry.KeyTypeSequence:
		if supplied {
			return "", foundry.NewValidationError(
				fmt.Sprintf("Primary key values cannot be inserted when key type is sequence. schema object: %s", h.schema.Name)).
				WithEntity(h.schema.Name).WithField(prop.Name)
		}
		return fmt.Sprintf("nextval('%s')", prop.SequenceName), nil
	case foundry.KeyTypeRequired:
		if !supplied {
			return "", foundry.NewValidationError(
				fmt.Sprintf("Missing required primary key. schema object: %s, property: %s", h.schema.Name, prop.Name)).
				WithEntity(h.schema.Name).WithField(prop.Name)
		}
		return "", nil
	}
	return "", nil
}

// validateStoreParams rejects unknown properties, versioned properties
// and write-permission violations before any SQL is assembled.
func (h *insertHandler) validateStoreParams() error {
	names := sortedKeys(h.op.StoreParams)
	var denied []string
	for _, name := range names {
		_, ok := h.schema.Property(name)
		if !ok {
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
			fmt.Sprintf("Subject is not allowed to create with property: %s", strings.Join(denied, ", "))).
			WithEntity(h.schema.Name)
	}
	return nil
}
