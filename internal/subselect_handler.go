package internal

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/foundry"
)

// subselectHandler generates the child-side query for a many relation:
// child rows are selected where the join column falls inside the parent
// selection, so the child query inherits the parent's filters.
type subselectHandler struct {
	parent   queryHandler
	relation *foundry.Relation
	child    *foundry.SchemaObject
	patterns []string
}

func newSubselectHandler(op *foundry.Operation, parent *foundry.SchemaObject, rel *foundry.Relation, child *foundry.SchemaObject, patterns []string) *subselectHandler {
	return &subselectHandler{
		parent:   queryHandler{op: op, schema: parent},
		relation: rel,
		child:    child,
		patterns: patterns,
	}
}

func (h *subselectHandler) childAlias() string {
	alias := h.child.Table()[:1]
	if alias == h.parent.alias() {
		alias += "2"
	}
	return alias
}

// Statement renders the child query. The join column is always selected
// so results can be attached to their parent rows.
func (h *subselectHandler) Statement() (*Statement, error) {
	childProp, ok := h.child.Property(h.relation.ChildProperty)
	if !ok {
		return nil, foundry.NewSchemaInvalidError(h.parent.schema.Name,
			fmt.Sprintf("relation '%s' child property '%s' not found", h.relation.Name, h.relation.ChildProperty))
	}
	parentProp, ok := h.parent.schema.Property(h.relation.ParentProperty)
	if !ok {
		return nil, foundry.NewSchemaInvalidError(h.parent.schema.Name,
			fmt.Sprintf("relation '%s' parent property '%s' not found", h.relation.Name, h.relation.ParentProperty))
	}

	roles := h.parent.op.Roles()
	readable := h.child.AllowedProperties(roles, "read")
	if len(readable) == 0 {
		return nil, foundry.NewPermissionError(
			"After applying permissions there are no properties returned in response").
			WithEntity(h.child.Name)
	}

	alias := h.childAlias()
	selection := make(map[string]*SelectionField)
	var columns []string
	includeJoinColumn := true
	for _, name := range readable {
		if len(h.patterns) > 0 && !matchesAny(h.patterns, name) && name != childProp.Name {
			continue
		}
		prop, _ := h.child.Property(name)
		columns = append(columns, alias+"."+prop.Column())
		selection[prop.Column()] = &SelectionField{Property: prop}
		if name == childProp.Name {
			includeJoinColumn = false
		}
	}
	if includeJoinColumn {
		columns = append(columns, alias+"."+childProp.Column())
		selection[childProp.Column()] = &SelectionField{Property: childProp}
	}

	where, args, err := h.parent.searchCondition(true, true)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s AS %s WHERE %s.%s IN (SELECT %s.%s FROM %s%s)",
		strings.Join(columns, ", "),
		h.child.Table(), alias,
		alias, childProp.Column(),
		h.parent.alias(), parentProp.Column(),
		h.parent.tableExpression(), where)

	return &Statement{SQL: sql, Args: args, Selection: selection}, nil
}
