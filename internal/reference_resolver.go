package internal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lychee-technology/foundry"
)

// refPattern matches $ref:opId.path expressions. The path is a dotted
// chain of map keys and numeric array indices.
var refPattern = regexp.MustCompile(`\$ref:([A-Za-z0-9_-]+)\.([A-Za-z0-9_.-]+)`)

// ReferenceResolver substitutes $ref expressions in operation
// parameters with values from completed operation results.
type ReferenceResolver struct {
	results map[string]*foundry.OperationResult
}

func NewReferenceResolver(results map[string]*foundry.OperationResult) *ReferenceResolver {
	return &ReferenceResolver{results: results}
}

// ResolveParams returns a copy of params with every reference
// substituted. A string that is exactly one reference keeps the
// referenced value's type; references embedded in larger strings
// stringify.
func (r *ReferenceResolver) ResolveParams(params map[string]any) (map[string]any, error) {
	if len(params) == 0 {
		return params, nil
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		resolved, err := r.resolveValue(value)
		if err != nil {
			return nil, err
		}
		out[key] = resolved
	}
	return out, nil
}

func (r *ReferenceResolver) resolveValue(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return r.resolveString(v)
	case map[string]any:
		return r.ResolveParams(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := r.resolveValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	}
	return value, nil
}

func (r *ReferenceResolver) resolveString(s string) (any, error) {
	matches := refPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	// a string that is exactly one reference keeps the value's type
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		opID := s[matches[0][2]:matches[0][3]]
		path := s[matches[0][4]:matches[0][5]]
		return r.lookup(opID, path)
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		value, err := r.lookup(s[m[2]:m[3]], s[m[4]:m[5]])
		if err != nil {
			return nil, err
		}
		b.WriteString(fmt.Sprintf("%v", value))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

func (r *ReferenceResolver) lookup(opID, path string) (any, error) {
	result, ok := r.results[opID]
	if !ok {
		return nil, foundry.NewReferenceError(
			fmt.Sprintf("Reference to unknown operation '%s'", opID))
	}
	if result.Status != foundry.StatusCompleted {
		return nil, foundry.NewReferenceError(
			fmt.Sprintf("Reference to operation '%s' which has not completed", opID))
	}

	current := result.Data
	for _, segment := range strings.Split(path, ".") {
		switch c := current.(type) {
		case map[string]any:
			v, ok := c[segment]
			if !ok {
				return nil, foundry.NewReferenceError(
					fmt.Sprintf("Reference path '%s' not found in operation '%s' result", path, opID))
			}
			current = v
		case []map[string]any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, foundry.NewReferenceError(
					fmt.Sprintf("Reference path '%s' not found in operation '%s' result", path, opID))
			}
			current = c[idx]
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, foundry.NewReferenceError(
					fmt.Sprintf("Reference path '%s' not found in operation '%s' result", path, opID))
			}
			current = c[idx]
		default:
			return nil, foundry.NewReferenceError(
				fmt.Sprintf("Reference path '%s' not found in operation '%s' result", path, opID))
		}
	}
	return current, nil
}

// ValidateReferences returns the distinct operation IDs referenced
// anywhere in params, in first-seen order.
func ValidateReferences(params map[string]any) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(any)
	walk = func(value any) {
		switch v := value.(type) {
		case string:
			for _, m := range refPattern.FindAllStringSubmatch(v, -1) {
				if !seen[m[1]] {
					seen[m[1]] = true
					out = append(out, m[1])
				}
			}
		case map[string]any:
			for _, k := range sortedKeys(v) {
				walk(v[k])
			}
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}
	walk(params)
	return out
}
