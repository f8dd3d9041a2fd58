package discovery

import (
	"context"
)

// ResolveSettingsByRole returns the value at path on the first node holding
// role. The current node answers for itself when it holds the role.
func (r *Resolver) ResolveSettingsByRole(ctx context.Context, role, path string) (interface{}, error) {
	return r.firstSetting(ctx, role, KindRole, path, false)
}

// ResolveSettingsByRecipe is ResolveSettingsByRole for recipes.
func (r *Resolver) ResolveSettingsByRecipe(ctx context.Context, recipe, path string) (interface{}, error) {
	return r.firstSetting(ctx, recipe, KindRecipe, path, true)
}

// ResolveSettingsByTag is ResolveSettingsByRole for tags.
func (r *Resolver) ResolveSettingsByTag(ctx context.Context, tag, path string) (interface{}, error) {
	return r.firstSetting(ctx, tag, KindTag, path, true)
}

func (r *Resolver) firstSetting(ctx context.Context, term string, kind Kind, path string, warn bool) (interface{}, error) {
	nodes, err := r.Search(ctx, term, SearchOptions{Kinds: []Kind{kind}, Mode: One, IncludeSelf: true})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		if warn {
			r.log().WithField(string(kind), term).Warnf("can't find node with %s %s", kind, term)
		}
		return nil, nil
	}
	return nodes[0].Setting(path), nil
}
