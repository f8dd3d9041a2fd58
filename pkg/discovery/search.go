package discovery

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"osops-utils/pkg/model"
	"osops-utils/pkg/registry"
)

// Kind is a membership classification a node can be searched by.
type Kind string

const (
	KindRole   Kind = "role"
	KindRecipe Kind = "recipe"
	KindTag    Kind = "tag"
)

// DefaultKinds is the priority used by the convenience resolvers.
var DefaultKinds = []Kind{KindRole, KindRecipe}

func (k Kind) field() (string, error) {
	switch k {
	case KindRole:
		return registry.FieldRoles, nil
	case KindRecipe:
		return registry.FieldRecipes, nil
	case KindTag:
		return registry.FieldTags, nil
	}
	return "", fmt.Errorf("unknown search kind %q", string(k))
}

func (k Kind) heldBy(n *model.Node, term string) bool {
	switch k {
	case KindRole:
		return n.HasRole(term)
	case KindRecipe:
		return n.HasRecipe(term)
	case KindTag:
		return n.HasTag(term)
	}
	return false
}

// Mode selects whether a search stops at the first hit.
type Mode int

const (
	All Mode = iota
	One
)

// SearchOptions controls a registry search. Kinds is required and ordered by
// priority.
type SearchOptions struct {
	Kinds       []Kind
	Mode        Mode
	IncludeSelf bool
}

// Search finds nodes holding term, trying each kind in priority order.
// Results are deduplicated by name; a node matched by several kinds keeps the
// position of the first kind that matched it. In One mode at most one node is
// returned.
func (r *Resolver) Search(ctx context.Context, term string, opts SearchOptions) ([]*model.Node, error) {
	if len(opts.Kinds) == 0 {
		return nil, fmt.Errorf("search for %q: no search kinds given", term)
	}
	log := r.log().WithFields(logrus.Fields{"term": term, "environment": r.Environment})

	me := r.self()
	buckets := make([][]*model.Node, 0, len(opts.Kinds))
	found := false
	for _, kind := range opts.Kinds {
		if opts.Mode == One && found {
			break
		}
		field, err := kind.field()
		if err != nil {
			return nil, err
		}

		var bucket []*model.Node
		held := opts.IncludeSelf && kind.heldBy(me, term)
		if held {
			log.WithField("kind", kind).Debug("current node holds the search term")
			bucket = append(bucket, me)
		}
		if !held || opts.Mode == All {
			nodes, err := r.query(ctx, field, term)
			if err != nil {
				return nil, err
			}
			bucket = append(bucket, nodes...)
		}
		if len(bucket) > 0 {
			found = true
		}
		buckets = append(buckets, bucket)
	}

	seen := make(map[string]struct{})
	var out []*model.Node
	for _, bucket := range buckets {
		for _, n := range bucket {
			if _, dup := seen[n.Name]; dup {
				continue
			}
			seen[n.Name] = struct{}{}
			if !opts.IncludeSelf && n.Name == me.Name {
				continue
			}
			out = append(out, n)
		}
	}
	if opts.Mode == One && len(out) > 1 {
		out = out[:1]
	}
	log.WithField("results", len(out)).Debug("search finished")
	return out, nil
}

// query runs one environment-scoped registry query. A record carrying the
// current node's name is swapped for the live current node.
func (r *Resolver) query(ctx context.Context, field, term string) ([]*model.Node, error) {
	if r.Registry == nil {
		if r.Solo {
			return nil, nil
		}
		return nil, fmt.Errorf("search %s:%s: no registry configured", field, term)
	}
	if r.Environment == "" {
		if r.Solo {
			return nil, nil
		}
		return nil, fmt.Errorf("search %s:%s: no environment to scope the search to", field, term)
	}
	q := registry.NewQuery(field, term).And(registry.FieldEnvironment, r.Environment)
	nodes, err := r.Registry.Search(ctx, q.String())
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q, err)
	}
	self := r.self()
	out := make([]*model.Node, 0, len(nodes))
	for i := range nodes {
		if self.Name != "" && nodes[i].Name == self.Name {
			out = append(out, self)
			continue
		}
		out = append(out, &nodes[i])
	}
	return out, nil
}

// SearchSettings runs Search and maps every result to the value at the dotted
// path in its attributes. Nodes without the setting are dropped.
func (r *Resolver) SearchSettings(ctx context.Context, term string, opts SearchOptions, path string) ([]interface{}, error) {
	nodes, err := r.Search(ctx, term, opts)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	for _, n := range nodes {
		if v := n.Setting(path); v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// SearchNodesByRole returns every node in the environment holding role.
func (r *Resolver) SearchNodesByRole(ctx context.Context, role string, includeSelf bool) ([]*model.Node, error) {
	return r.Search(ctx, role, SearchOptions{Kinds: []Kind{KindRole}, Mode: All, IncludeSelf: includeSelf})
}

// SearchNodesByRecipe returns every node in the environment running recipe.
func (r *Resolver) SearchNodesByRecipe(ctx context.Context, recipe string, includeSelf bool) ([]*model.Node, error) {
	return r.Search(ctx, recipe, SearchOptions{Kinds: []Kind{KindRecipe}, Mode: All, IncludeSelf: includeSelf})
}

// SearchNodesByTag returns every node in the environment carrying tag.
func (r *Resolver) SearchNodesByTag(ctx context.Context, tag string, includeSelf bool) ([]*model.Node, error) {
	return r.Search(ctx, tag, SearchOptions{Kinds: []Kind{KindTag}, Mode: All, IncludeSelf: includeSelf})
}

// CountNodesByRole counts the nodes in the environment holding role.
func (r *Resolver) CountNodesByRole(ctx context.Context, role string, includeSelf bool) (int, error) {
	nodes, err := r.SearchNodesByRole(ctx, role, includeSelf)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// ParseKinds converts names such as "role" or "recipe" into Kinds.
func ParseKinds(names []string) ([]Kind, error) {
	out := make([]Kind, 0, len(names))
	for _, name := range names {
		k := Kind(name)
		if _, err := k.field(); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
