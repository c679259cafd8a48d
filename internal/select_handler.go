package internal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lychee-technology/foundry"
)

// selectHandler generates SELECT statements, including count queries,
// pagination, ordering and scalar relation joins.
type selectHandler struct {
	queryHandler
	model  *foundry.Model
	limits foundry.QueryConfig
}

func newSelectHandler(op *foundry.Operation, schema *foundry.SchemaObject, model *foundry.Model, limits foundry.QueryConfig) *selectHandler {
	return &selectHandler{queryHandler: queryHandler{op: op, schema: schema}, model: model, limits: limits}
}

// joinedRelation is a scalar relation expanded into the main query
type joinedRelation struct {
	relation *foundry.Relation
	schema   *foundry.SchemaObject
	alias    string
	patterns []string
}

// Statement renders the SELECT for the operation
func (h *selectHandler) Statement() (*Statement, error) {
	where, args, err := h.searchCondition(true, true)
	if err != nil {
		return nil, err
	}

	if h.op.MetadataBool("count") {
		// counting still requires read access to the schema object
		if _, err := h.readableProperties(); err != nil {
			return nil, err
		}
		return &Statement{
			SQL:  fmt.Sprintf("SELECT count(*) FROM %s%s", h.tableExpression(), where),
			Args: args,
		}, nil
	}

	props, err := h.selectedProperties("properties")
	if err != nil {
		return nil, err
	}

	selection := make(map[string]*SelectionField)
	var columns []string
	for _, name := range props {
		prop, _ := h.schema.Property(name)
		columns = append(columns, h.alias()+"."+prop.Column())
		selection[prop.Column()] = &SelectionField{Property: prop}
	}

	joins, err := h.scalarRelations()
	if err != nil {
		return nil, err
	}
	var joinClauses []string
	for _, jr := range joins {
		parentProp, _ := h.schema.Property(jr.relation.ParentProperty)
		childProp, ok := jr.schema.Property(jr.relation.ChildProperty)
		if !ok {
			return nil, foundry.NewSchemaInvalidError(h.schema.Name,
				fmt.Sprintf("relation '%s' child property '%s' not found", jr.relation.Name, jr.relation.ChildProperty))
		}
		joinClauses = append(joinClauses, fmt.Sprintf(" INNER JOIN %s AS %s ON %s.%s = %s.%s",
			jr.schema.Table(), jr.alias,
			h.alias(), parentProp.Column(),
			jr.alias, childProp.Column()))

		for _, childName := range jr.schema.AllowedProperties(h.op.Roles(), "read") {
			if !matchesAny(jr.patterns, childName) {
				continue
			}
			childProp, _ := jr.schema.Property(childName)
			resultCol := jr.relation.Name + "__" + childProp.Column()
			columns = append(columns, fmt.Sprintf("%s.%s AS %s", jr.alias, childProp.Column(), resultCol))
			selection[resultCol] = &SelectionField{Property: childProp, Relation: jr.relation.Name}
		}
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s%s",
		strings.Join(columns, ", "), h.tableExpression(), strings.Join(joinClauses, ""), where)

	orderBy, err := h.orderByClause()
	if err != nil {
		return nil, err
	}
	sql += orderBy

	limit, hasLimit := h.op.MetadataInt("limit")
	if !hasLimit && h.limits.DefaultPageSize > 0 {
		limit, hasLimit = h.limits.DefaultPageSize, true
	}
	if hasLimit {
		if h.limits.MaxPageSize > 0 && limit > h.limits.MaxPageSize {
			limit = h.limits.MaxPageSize
		}
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset, ok := h.op.MetadataInt("offset"); ok {
		sql += fmt.Sprintf(" OFFSET %d", offset)
	}

	return &Statement{SQL: sql, Args: args, Selection: selection}, nil
}

// scalarRelations resolves the one-relations named in the properties
// metadata, assigning each a join alias distinct from the ones in use.
func (h *selectHandler) scalarRelations() ([]*joinedRelation, error) {
	spec, ok := h.op.MetadataString("properties")
	if !ok {
		return nil, nil
	}
	sel := parsePropertySelection(spec)
	if len(sel.relations) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(sel.relations))
	for name := range sel.relations {
		names = append(names, name)
	}
	sort.Strings(names)

	used := map[string]bool{h.alias(): true}
	var joins []*joinedRelation
	for _, name := range names {
		rel, ok := h.schema.Relation(name)
		if !ok {
			return nil, foundry.NewPropertyLookupError(h.schema.Name, name)
		}
		if rel.Type != foundry.RelationOne {
			continue
		}
		childSchema, err := h.model.GetSchemaObject(rel.Schema)
		if err != nil {
			return nil, err
		}
		alias := childSchema.Table()[:1]
		for i := 2; used[alias]; i++ {
			alias = fmt.Sprintf("%s%d", childSchema.Table()[:1], i)
		}
		used[alias] = true
		joins = append(joins, &joinedRelation{
			relation: rel,
			schema:   childSchema,
			alias:    alias,
			patterns: sel.relations[name],
		})
	}
	return joins, nil
}

// arrayRelations returns the many-relations named in the properties
// metadata; these run as separate subselects after the main query.
func (h *selectHandler) arrayRelations() ([]*foundry.Relation, []string, error) {
	spec, ok := h.op.MetadataString("properties")
	if !ok {
		return nil, nil, nil
	}
	sel := parsePropertySelection(spec)
	names := make([]string, 0, len(sel.relations))
	for name := range sel.relations {
		names = append(names, name)
	}
	sort.Strings(names)

	var rels []*foundry.Relation
	var patterns []string
	for _, name := range names {
		rel, ok := h.schema.Relation(name)
		if !ok || rel.Type != foundry.RelationMany {
			continue
		}
		rels = append(rels, rel)
		patterns = append(patterns, strings.Join(sel.relations[name], " "))
	}
	return rels, patterns, nil
}

func (h *selectHandler) orderByClause() (string, error) {
	spec, ok := h.op.MetadataString("sort")
	if !ok || strings.TrimSpace(spec) == "" {
		return "", nil
	}
	var terms []string
	for _, token := range strings.Split(spec, ",") {
		name, direction, _ := strings.Cut(strings.TrimSpace(token), ":")
		prop, ok := h.schema.Property(name)
		if !ok {
			return "", foundry.NewPropertyLookupError(h.schema.Name, name)
		}
		term := h.alias() + "." + prop.Column()
		switch strings.ToLower(direction) {
		case "", "asc":
		case "desc":
			term += " DESC"
		default:
			return "", foundry.NewValidationError(
				fmt.Sprintf("invalid sort direction '%s', property: %s", direction, name)).
				WithEntity(h.schema.Name).WithField(name)
		}
		terms = append(terms, term)
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}
