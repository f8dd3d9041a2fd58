package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osops-utils/pkg/model"
)

// fakeController serves the controller node routes from a MemoryStore.
func fakeController(t *testing.T, token string) *httptest.Server {
	t.Helper()
	backing := NewMemoryStore()
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		nodes, err := backing.Search(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		write(w, nodes)
	})
	mux.HandleFunc("/api/v1/nodes", func(w http.ResponseWriter, r *http.Request) {
		nodes, _ := backing.ListNodes(r.Context())
		write(w, nodes)
	})
	mux.HandleFunc("/api/v1/nodes/register", func(w http.ResponseWriter, r *http.Request) {
		var n model.Node
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		saved, err := backing.UpsertNode(r.Context(), n)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		write(w, saved)
	})
	mux.HandleFunc("/api/v1/nodes/get", func(w http.ResponseWriter, r *http.Request) {
		n, ok, _ := backing.GetNode(r.Context(), r.URL.Query().Get("name"))
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		write(w, n)
	})
	mux.HandleFunc("/api/v1/nodes/delete", func(w http.ResponseWriter, r *http.Request) {
		if err := backing.DeleteNode(r.Context(), r.URL.Query().Get("name")); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPStore(t *testing.T) {
	t.Parallel()

	srv := fakeController(t, "s3cret")
	s := NewHTTPStore(srv.URL+"/", "s3cret", srv.Client())
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestHTTPStoreStatusError(t *testing.T) {
	t.Parallel()

	srv := fakeController(t, "s3cret")
	s := NewHTTPStore(srv.URL, "wrong", srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	_, err := s.ListNodes(ctx)
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "unauthorized", se.Body)
}
