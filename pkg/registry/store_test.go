package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osops-utils/pkg/model"
)

func sampleNodes() []model.Node {
	return []model.Node{
		{Name: "db1", Environment: "prod", Roles: []string{"mysql-master"}},
		{Name: "api2", Environment: "prod", Roles: []string{"api"}, Recipes: []string{"nova::api"}},
		{Name: "api1", Environment: "prod", Roles: []string{"api"}},
		{Name: "api3", Environment: "dev", Roles: []string{"api"}},
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	for _, n := range sampleNodes() {
		saved, err := s.UpsertNode(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, int64(1), saved.Revision)
	}

	again, err := s.UpsertNode(ctx, sampleNodes()[0])
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Revision)

	got, ok, err := s.GetNode(ctx, "db1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"mysql-master"}, got.Roles)
	assert.Equal(t, int64(2), got.Revision)

	_, ok, err = s.GetNode(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := s.ListNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api1", "api2", "api3", "db1"}, names(all))

	found, err := s.Search(ctx, NewQuery(FieldRoles, "api").And(FieldEnvironment, "prod").String())
	require.NoError(t, err)
	assert.Equal(t, []string{"api1", "api2"}, names(found))

	found, err = s.Search(ctx, NewQuery(FieldRecipes, "nova::api").String())
	require.NoError(t, err)
	assert.Equal(t, []string{"api2"}, names(found))

	_, err = s.Search(ctx, "bogus")
	assert.Error(t, err)

	require.NoError(t, s.DeleteNode(ctx, "api3"))
	assert.ErrorIs(t, s.DeleteNode(ctx, "api3"), ErrNodeNotFound)
}

func names(nodes []model.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(model.Node{Name: "a", Roles: []string{"api"}})
	n, _, err := s.GetNode(ctx, "a")
	require.NoError(t, err)
	n.Roles[0] = "mutated"

	again, _, err := s.GetNode(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, again.Roles)

	_, err = s.UpsertNode(ctx, model.Node{})
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "registry", "nodes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Backend: BackendHTTP, URL: "http://127.0.0.1:8080"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPStore{}, s)

	for _, cfg := range []Config{
		{Backend: BackendMySQL},
		{Backend: BackendSQLite},
		{Backend: BackendHTTP},
		{Backend: "etcd"},
	} {
		_, err := Open(ctx, cfg)
		assert.Error(t, err, cfg.Backend)
	}
}
