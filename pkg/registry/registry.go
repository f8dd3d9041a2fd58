// Package registry is the searchable store of node records.
package registry

import (
	"context"
	"errors"
	"sort"

	"osops-utils/pkg/model"
)

// ErrNodeNotFound is returned by DeleteNode for unknown names.
var ErrNodeNotFound = errors.New("node not found")

// Searcher is the registry query service: it evaluates a query string
// (see Query) and returns the matching node records ordered by name.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.Node, error)
}

// Store is a Searcher that also owns the node records.
type Store interface {
	Searcher
	UpsertNode(ctx context.Context, n model.Node) (model.Node, error)
	GetNode(ctx context.Context, name string) (model.Node, bool, error)
	ListNodes(ctx context.Context) ([]model.Node, error)
	DeleteNode(ctx context.Context, name string) error
	Close() error
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string) ([]model.Node, error)

func (f SearcherFunc) Search(ctx context.Context, query string) ([]model.Node, error) {
	return f(ctx, query)
}

// Filter applies q to nodes and returns the matches sorted by name.
func Filter(nodes []model.Node, q Query) []model.Node {
	out := make([]model.Node, 0, len(nodes))
	for i := range nodes {
		if q.Match(&nodes[i]) {
			out = append(out, nodes[i])
		}
	}
	sortByName(out)
	return out
}

func sortByName(nodes []model.Node) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
}
