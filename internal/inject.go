package internal

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lychee-technology/foundry"
)

// injectPlaceholderPrefix keeps injected bindings from colliding with
// caller-supplied parameter names
const injectPlaceholderPrefix = "__inject_"

// injectedValue is one server-populated property assignment
type injectedValue struct {
	prop  *foundry.Property
	key   string
	value any
}

// resolveInjectValue produces the value for an inject source. Missing
// claims and environment variables resolve to nil so the column is set
// to NULL rather than failing the write.
func resolveInjectValue(source string, claims *foundry.Claims) (any, error) {
	switch {
	case strings.HasPrefix(source, "claim:"):
		name := strings.TrimPrefix(source, "claim:")
		if v, ok := claims.Get(name); ok {
			return v, nil
		}
		return nil, nil
	case source == "timestamp":
		return time.Now().UTC().Format(time.RFC3339), nil
	case source == "date":
		return time.Now().UTC().Format("2006-01-02"), nil
	case source == "uuid":
		return uuid.NewString(), nil
	case strings.HasPrefix(source, "env:"):
		name := strings.TrimPrefix(source, "env:")
		if v, ok := os.LookupEnv(name); ok {
			return v, nil
		}
		return nil, nil
	}
	return nil, foundry.NewValidationError("Unknown inject value source: " + source)
}

// injectedAssignments resolves every injection that applies to the
// action, in property order. Caller-supplied values for injected
// properties must have been rejected before this runs.
func injectedAssignments(schema *foundry.SchemaObject, action foundry.Action, claims *foundry.Claims) ([]*injectedValue, error) {
	var out []*injectedValue
	for _, name := range schema.PropertyNames() {
		prop, _ := schema.Property(name)
		if prop.Inject == nil || !prop.Inject.AppliesTo(action) {
			continue
		}
		value, err := resolveInjectValue(prop.Inject.Source, claims)
		if err != nil {
			return nil, err
		}
		out = append(out, &injectedValue{
			prop:  prop,
			key:   injectPlaceholderPrefix + prop.Name,
			value: value,
		})
	}
	return out, nil
}

// rejectInjectedStoreParams fails when the caller supplies a value for a
// property the server injects on this action.
func rejectInjectedStoreParams(schema *foundry.SchemaObject, action foundry.Action, storeParams map[string]any) error {
	for name := range storeParams {
		prop, ok := schema.Property(name)
		if !ok || prop.Inject == nil {
			continue
		}
		if prop.Inject.AppliesTo(action) {
			return foundry.NewForbiddenError(
				fmt.Sprintf("Property '%s' is auto-injected and cannot be supplied. schema object: %s", name, schema.Name)).
				WithEntity(schema.Name).WithField(name)
		}
	}
	return nil
}
