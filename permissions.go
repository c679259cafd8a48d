package foundry

import (
	"fmt"
	"regexp"
	"sort"
)

// Permissions maps role name to action grants. Read and write grants are
// regex patterns over property names; delete and restore grants are
// booleans (an object value also counts as a grant). The wildcard role
// "*" applies to every caller.
type Permissions map[string]map[string]any

// WildcardRole matches any caller role
const WildcardRole = "*"

type compiledGrant struct {
	pattern *regexp.Regexp
	boolVal bool
	isBool  bool
}

// permissionCache holds per-(role, action) compiled grants so request
// handling never recompiles patterns
type permissionCache struct {
	byRole    map[string]map[string]*compiledGrant
	hasAction map[string]bool
}

func compilePermissions(schemaName string, perms Permissions) (*permissionCache, error) {
	cache := &permissionCache{
		byRole:    make(map[string]map[string]*compiledGrant),
		hasAction: make(map[string]bool),
	}
	for role, actions := range perms {
		compiled := make(map[string]*compiledGrant, len(actions))
		for action, grant := range actions {
			cache.hasAction[action] = true
			switch g := grant.(type) {
			case string:
				re, err := regexp.Compile("^(?:" + g + ")$")
				if err != nil {
					return nil, NewSchemaInvalidError(schemaName,
						fmt.Sprintf("invalid permission pattern for role '%s' action '%s': %s", role, action, g)).WithCause(err)
				}
				compiled[action] = &compiledGrant{pattern: re}
			case bool:
				compiled[action] = &compiledGrant{boolVal: g, isBool: true}
			case map[string]any:
				// object-valued grants allow the action
				compiled[action] = &compiledGrant{boolVal: true, isBool: true}
			default:
				return nil, NewSchemaInvalidError(schemaName,
					fmt.Sprintf("unsupported permission grant for role '%s' action '%s'", role, action))
			}
		}
		cache.byRole[role] = compiled
	}
	return cache, nil
}

func (c *permissionCache) grants(roles []string, action string) []*compiledGrant {
	var out []*compiledGrant
	if g, ok := c.byRole[WildcardRole][action]; ok {
		out = append(out, g)
	}
	for _, role := range roles {
		if g, ok := c.byRole[role][action]; ok {
			out = append(out, g)
		}
	}
	return out
}

// Unrestricted reports whether the schema object declares no permissions
func (s *SchemaObject) Unrestricted() bool {
	return len(s.Permissions) == 0
}

// AllowedProperties returns the property names the given roles may use
// for the given action, alphabetically ordered. Without a permissions
// block every property is allowed; with one, any role may grant.
func (s *SchemaObject) AllowedProperties(roles []string, action string) []string {
	if s.Unrestricted() {
		return s.PropertyNames()
	}
	grants := s.permissionCache.grants(roles, action)
	var allowed []string
	for _, name := range s.PropertyNames() {
		for _, g := range grants {
			if g.isBool {
				if g.boolVal {
					allowed = append(allowed, name)
					break
				}
				continue
			}
			if g.pattern.MatchString(name) {
				allowed = append(allowed, name)
				break
			}
		}
	}
	sort.Strings(allowed)
	return allowed
}

// AllowsProperty reports whether any role grants the action on a property
func (s *SchemaObject) AllowsProperty(roles []string, action, property string) bool {
	if s.Unrestricted() {
		return true
	}
	for _, g := range s.permissionCache.grants(roles, action) {
		if g.isBool {
			if g.boolVal {
				return true
			}
			continue
		}
		if g.pattern.MatchString(property) {
			return true
		}
	}
	return false
}

// AllowsEntityAction reports whether any role grants a whole-entity
// action such as delete. Restore falls back to the write grant when no
// role declares restore at all.
func (s *SchemaObject) AllowsEntityAction(roles []string, action string) bool {
	if s.Unrestricted() {
		return true
	}
	if action == string(ActionRestore) && !s.permissionCache.hasAction[action] {
		action = "write"
	}
	for _, g := range s.permissionCache.grants(roles, action) {
		if g.isBool {
			if g.boolVal {
				return true
			}
			continue
		}
		// a pattern grant for the action counts as permission
		return true
	}
	return false
}
