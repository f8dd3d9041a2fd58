package registry

import (
	"fmt"
	"strings"

	"osops-utils/pkg/model"
)

// Query fields understood by every backend.
const (
	FieldRoles       = "roles"
	FieldRecipes     = "recipes"
	FieldTags        = "tags"
	FieldEnvironment = "environment"
	FieldName        = "name"

	Wildcard = "*"
)

// Term is a single field:value clause.
type Term struct {
	Field string
	Value string
}

// Query is a conjunction of terms, rendered as "roles:api AND environment:prod".
// A query with no terms matches every node.
type Query struct {
	Terms []Term
}

// NewQuery starts a query with a single term.
func NewQuery(field, value string) Query {
	return Query{Terms: []Term{{Field: field, Value: value}}}
}

// And appends a term.
func (q Query) And(field, value string) Query {
	terms := append(append([]Term(nil), q.Terms...), Term{Field: field, Value: value})
	return Query{Terms: terms}
}

// Environment returns the value of the environment term, if any.
func (q Query) Environment() (string, bool) {
	for _, t := range q.Terms {
		if t.Field == FieldEnvironment && t.Value != Wildcard {
			return t.Value, true
		}
	}
	return "", false
}

func (q Query) String() string {
	if len(q.Terms) == 0 {
		return Wildcard + ":" + Wildcard
	}
	parts := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		parts = append(parts, t.Field+":"+Escape(t.Value))
	}
	return strings.Join(parts, " AND ")
}

// Escape protects the colons in a value (recipe names like "nova::api") from
// being read as field separators.
func Escape(v string) string {
	return strings.ReplaceAll(v, ":", `\:`)
}

// Unescape reverses Escape.
func Unescape(v string) string {
	return strings.ReplaceAll(v, `\:`, ":")
}

// ParseQuery parses the "field:value AND field:value" form. "*:*" matches all.
func ParseQuery(s string) (Query, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Query{}, fmt.Errorf("empty query")
	}
	var q Query
	for _, clause := range strings.Split(s, " AND ") {
		clause = strings.TrimSpace(clause)
		idx := separator(clause)
		if idx <= 0 {
			return Query{}, fmt.Errorf("invalid clause %q", clause)
		}
		field, value := clause[:idx], Unescape(clause[idx+1:])
		if field == Wildcard && value == Wildcard {
			continue
		}
		switch field {
		case FieldRoles, FieldRecipes, FieldTags, FieldEnvironment, FieldName:
		default:
			return Query{}, fmt.Errorf("unknown field %q", field)
		}
		q.Terms = append(q.Terms, Term{Field: field, Value: value})
	}
	return q, nil
}

// separator returns the index of the first unescaped colon.
func separator(clause string) int {
	for i := 0; i < len(clause); i++ {
		switch clause[i] {
		case '\\':
			i++
		case ':':
			return i
		}
	}
	return -1
}

// Match reports whether n satisfies every term of q.
func (q Query) Match(n *model.Node) bool {
	for _, t := range q.Terms {
		if !t.match(n) {
			return false
		}
	}
	return true
}

func (t Term) match(n *model.Node) bool {
	switch t.Field {
	case FieldRoles:
		return matchAny(n.Roles, t.Value)
	case FieldRecipes:
		return matchAny(n.Recipes, t.Value)
	case FieldTags:
		return matchAny(n.Tags, t.Value)
	case FieldEnvironment:
		return t.Value == Wildcard || n.Environment == t.Value
	case FieldName:
		return t.Value == Wildcard || n.Name == t.Value
	}
	return false
}

func matchAny(xs []string, v string) bool {
	if v == Wildcard {
		return len(xs) > 0
	}
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
