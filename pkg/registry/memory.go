package registry

import (
	"context"
	"fmt"
	"sync"

	"osops-utils/pkg/model"
)

// MemoryStore is a simple in-memory implementation, intended for dev/tests.
type MemoryStore struct {
	mu       sync.RWMutex
	nodes    map[string]model.Node
	revision map[string]int64
}

func NewMemoryStore(nodes ...model.Node) *MemoryStore {
	m := &MemoryStore{
		nodes:    make(map[string]model.Node),
		revision: make(map[string]int64),
	}
	for _, n := range nodes {
		_, _ = m.UpsertNode(context.Background(), n)
	}
	return m
}

func (m *MemoryStore) UpsertNode(_ context.Context, n model.Node) (model.Node, error) {
	if n.Name == "" {
		return n, fmt.Errorf("node name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.revision[n.Name] + 1
	n = n.Clone()
	n.Revision = next
	m.nodes[n.Name] = n
	m.revision[n.Name] = next
	return n.Clone(), nil
}

func (m *MemoryStore) GetNode(_ context.Context, name string) (model.Node, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[name]
	if !ok {
		return model.Node{}, false, nil
	}
	return n.Clone(), true, nil
}

func (m *MemoryStore) ListNodes(_ context.Context) ([]model.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n.Clone())
	}
	sortByName(out)
	return out, nil
}

func (m *MemoryStore) DeleteNode(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[name]; !ok {
		return ErrNodeNotFound
	}
	delete(m.nodes, name)
	return nil
}

func (m *MemoryStore) Search(ctx context.Context, query string) ([]model.Node, error) {
	q, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	nodes, err := m.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(nodes, q), nil
}

func (m *MemoryStore) Close() error { return nil }
