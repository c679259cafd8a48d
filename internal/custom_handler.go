package internal

import (
	"fmt"
	"sort"

	"github.com/lychee-technology/foundry"
)

// customHandler executes pre-authored SQL path operations. Inputs bind
// by name, missing ones fall back to their declared defaults, and the
// outputs map drives result conversion.
type customHandler struct {
	op   *foundry.Operation
	path *foundry.PathOperation
}

func newCustomHandler(op *foundry.Operation, path *foundry.PathOperation) *customHandler {
	return &customHandler{op: op, path: path}
}

func (h *customHandler) Statement() (*Statement, error) {
	args := make(map[string]any)

	names := make([]string, 0, len(h.path.Inputs))
	for name := range h.path.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		input := h.path.Inputs[name]
		if v, ok := h.op.QueryParams[name]; ok {
			args[name] = v
			continue
		}
		if v, ok := h.op.StoreParams[name]; ok {
			args[name] = v
			continue
		}
		if input.Default != nil {
			// defaults bind as authored, no type coercion
			args[name] = input.Default
			continue
		}
		return nil, foundry.NewValidationError(
			fmt.Sprintf("Missing required input. path operation: %s, input: %s", h.path.Name, name)).
			WithEntity(h.path.Name).WithField(name)
	}

	selection := make(map[string]*SelectionField, len(h.path.Outputs))
	for name, apiType := range h.path.Outputs {
		selection[name] = &SelectionField{Property: &foundry.Property{Name: name, APIType: apiType}}
	}

	return &Statement{SQL: h.path.SQL, Args: args, Selection: selection}, nil
}
