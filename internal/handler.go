package internal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lychee-technology/foundry"
)

// operatorPrefix separates a relational operator from its operand in
// query parameter values, e.g. "gt::100" or "in::1,2,3".
const operatorSeparator = "::"

var relationalOperators = map[string]string{
	"eq": "=",
	"gt": ">",
	"ge": ">=",
	"lt": "<",
	"le": "<=",
}

// SelectionField maps one result column back to the property that
// produced it. Relation is set for columns pulled in through a join.
type SelectionField struct {
	Property *foundry.Property
	Relation string
}

// Statement is a generated SQL string with its named bindings and the
// selection map used to convert result rows back to API values.
type Statement struct {
	SQL       string
	Args      map[string]any
	Selection map[string]*SelectionField
}

// queryHandler carries the state shared by all SQL generators: the
// operation being planned and the schema object it targets.
type queryHandler struct {
	op     *foundry.Operation
	schema *foundry.SchemaObject
}

func (h *queryHandler) alias() string {
	return h.schema.Table()[:1]
}

func (h *queryHandler) tableExpression() string {
	return fmt.Sprintf("%s AS %s", h.schema.Table(), h.alias())
}

// readableProperties returns the property names the caller may read,
// failing when permissions leave nothing to return.
func (h *queryHandler) readableProperties() ([]string, error) {
	allowed := h.schema.AllowedProperties(h.op.Roles(), "read")
	if len(allowed) == 0 {
		return nil, foundry.NewPermissionError(
			"After applying permissions there are no properties returned in response").
			WithEntity(h.schema.Name)
	}
	return allowed, nil
}

// selectedProperties intersects the readable set with the _properties
// metadata selection when one is present.
func (h *queryHandler) selectedProperties(metadataKey string) ([]string, error) {
	readable, err := h.readableProperties()
	if err != nil {
		return nil, err
	}
	spec, ok := h.op.MetadataString(metadataKey)
	if !ok || strings.TrimSpace(spec) == "" {
		return readable, nil
	}
	requested := parsePropertySelection(spec).base
	if len(requested) == 0 {
		return readable, nil
	}
	var out []string
	for _, name := range readable {
		if matchesAny(requested, name) {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil, foundry.NewPermissionError(
			"After applying permissions there are no properties returned in response").
			WithEntity(h.schema.Name)
	}
	return out, nil
}

// propertySelection is a parsed _properties / properties metadata value:
// base patterns apply to the root object, relation patterns to a named
// relation ("customer:.*").
type propertySelection struct {
	base      []string
	relations map[string][]string
}

func parsePropertySelection(spec string) *propertySelection {
	sel := &propertySelection{relations: make(map[string][]string)}
	for _, token := range strings.Fields(spec) {
		if rel, pattern, ok := strings.Cut(token, ":"); ok {
			sel.relations[rel] = append(sel.relations[rel], pattern)
			continue
		}
		sel.base = append(sel.base, token)
	}
	return sel
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if matchPattern(pattern, name) {
			return true
		}
	}
	return false
}

// matchPattern supports the glob-ish selection grammar: ".*" selects
// everything, anything else matches the property name exactly.
func matchPattern(pattern, name string) bool {
	if pattern == ".*" || pattern == "*" {
		return true
	}
	return pattern == name
}

// searchCondition renders the WHERE clause from the operation's query
// parameters. Columns are alias-prefixed when aliased is true; the soft
// delete filters are appended for read paths.
func (h *queryHandler) searchCondition(aliased, withSoftDeleteFilters bool) (string, map[string]any, error) {
	args := make(map[string]any)
	var predicates []string

	names := make([]string, 0, len(h.op.QueryParams))
	for name := range h.op.QueryParams {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, ok := h.schema.Property(name)
		if !ok {
			return "", nil, foundry.NewPropertyLookupError(h.schema.Name, name)
		}
		pred, err := h.searchValueAssignment(prop, h.op.QueryParams[name], aliased, args)
		if err != nil {
			return "", nil, err
		}
		predicates = append(predicates, pred)
	}

	if withSoftDeleteFilters {
		predicates = append(predicates, h.softDeleteFilters(aliased)...)
	}

	if len(predicates) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(predicates, " AND "), args, nil
}

func (h *queryHandler) columnRef(prop *foundry.Property, aliased bool) string {
	if aliased {
		return h.alias() + "." + prop.Column()
	}
	return prop.Column()
}

func (h *queryHandler) placeholderKey(prop *foundry.Property, aliased bool) string {
	if aliased {
		return h.alias() + "_" + prop.Name
	}
	return prop.Name
}

// searchValueAssignment renders one predicate, splitting off a leading
// relational operator ("gt::", "between::", "in::", ...) when the value
// is a string.
func (h *queryHandler) searchValueAssignment(prop *foundry.Property, raw any, aliased bool, args map[string]any) (string, error) {
	column := h.columnRef(prop, aliased)
	key := h.placeholderKey(prop, aliased)

	operator := "eq"
	operand := raw
	if s, ok := raw.(string); ok {
		if op, rest, found := strings.Cut(s, operatorSeparator); found {
			operator = op
			operand = rest
		}
	}

	switch operator {
	case "between", "not-between":
		parts := strings.SplitN(fmt.Sprintf("%v", operand), ",", 2)
		if len(parts) != 2 {
			return "", foundry.NewValidationError(
				fmt.Sprintf("between operator requires two comma separated values, property: %s", prop.Name)).
				WithEntity(h.schema.Name).WithField(prop.Name)
		}
		low, err := foundry.ToStoreValue(prop, strings.TrimSpace(parts[0]))
		if err != nil {
			return "", err
		}
		high, err := foundry.ToStoreValue(prop, strings.TrimSpace(parts[1]))
		if err != nil {
			return "", err
		}
		args[key+"_1"] = low
		args[key+"_2"] = high
		keyword := "BETWEEN"
		if operator == "not-between" {
			keyword = "NOT BETWEEN"
		}
		return fmt.Sprintf("%s %s @%s_1 AND @%s_2", column, keyword, key, key), nil

	case "in", "not-in":
		parts := strings.Split(fmt.Sprintf("%v", operand), ",")
		placeholders := make([]string, len(parts))
		for i, part := range parts {
			v, err := foundry.ToStoreValue(prop, strings.TrimSpace(part))
			if err != nil {
				return "", err
			}
			indexed := fmt.Sprintf("%s_%d", key, i)
			args[indexed] = v
			placeholders[i] = "@" + indexed
		}
		keyword := "IN"
		if operator == "not-in" {
			keyword = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", column, keyword, strings.Join(placeholders, ", ")), nil

	default:
		sqlOp, ok := relationalOperators[operator]
		if !ok {
			return "", foundry.NewValidationError(
				fmt.Sprintf("unknown relational operator '%s', property: %s", operator, prop.Name)).
				WithEntity(h.schema.Name).WithField(prop.Name)
		}
		v, err := foundry.ToStoreValue(prop, operand)
		if err != nil {
			return "", err
		}
		args[key] = v
		return fmt.Sprintf("%s %s @%s", column, sqlOp, key), nil
	}
}

// softDeleteFilters renders the active-record predicates. A caller
// filter on a marker property takes precedence over the automatic one.
func (h *queryHandler) softDeleteFilters(aliased bool) []string {
	var filters []string
	for _, prop := range h.schema.SoftDeleteProperties() {
		if _, ok := h.op.QueryParams[prop.Name]; ok {
			continue
		}
		column := h.columnRef(prop, aliased)
		switch prop.SoftDelete.Strategy {
		case foundry.SoftDeleteNullCheck:
			filters = append(filters, column+" IS NULL")
		case foundry.SoftDeleteBooleanFlag:
			filters = append(filters, fmt.Sprintf("%s = %s", column, sqlLiteral(activeValue(prop))))
		case foundry.SoftDeleteExcludeValues:
			filters = append(filters, fmt.Sprintf("%s NOT IN (%s)", column, excludedValueList(prop.SoftDelete)))
		}
	}
	return filters
}

// excludedValueList renders the deleted-state values of an
// exclude_values marker, folding in an explicit delete_value that is
// not already listed.
func excludedValueList(sd *foundry.SoftDeleteSpec) string {
	values := sd.Values
	if sd.DeleteValue != nil {
		present := false
		for _, v := range values {
			if v == sd.DeleteValue {
				present = true
				break
			}
		}
		if !present {
			values = append(append([]any{}, values...), sd.DeleteValue)
		}
	}
	literals := make([]string, len(values))
	for i, v := range values {
		literals[i] = sqlLiteral(v)
	}
	return strings.Join(literals, ", ")
}

func activeValue(prop *foundry.Property) any {
	if prop.SoftDelete.ActiveValue != nil {
		return prop.SoftDelete.ActiveValue
	}
	return true
}

// sqlLiteral renders a value as an inline SQL literal. Only used for
// model-supplied marker values, never for caller input.
func sqlLiteral(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "true"
		}
		return "false"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// concurrencyGenerator renders the expression that produces the next
// concurrency stamp for the property.
func (h *queryHandler) concurrencyGenerator(prop *foundry.Property, forUpdate bool) string {
	switch prop.APIType {
	case "date-time", "timestamp":
		return "CURRENT_TIMESTAMP"
	case "integer", "serial":
		if forUpdate {
			return prop.Column() + " + 1"
		}
		return "1"
	default:
		return "gen_random_uuid()"
	}
}

// returningClause renders RETURNING over the caller's readable
// properties, honoring a _properties metadata restriction.
func (h *queryHandler) returningClause() (string, map[string]*SelectionField, error) {
	props, err := h.selectedProperties("_properties")
	if err != nil {
		return "", nil, err
	}
	selection := make(map[string]*SelectionField, len(props))
	cols := make([]string, len(props))
	for i, name := range props {
		prop, _ := h.schema.Property(name)
		cols[i] = prop.Column()
		selection[prop.Column()] = &SelectionField{Property: prop}
	}
	return " RETURNING " + strings.Join(cols, ", "), selection, nil
}
