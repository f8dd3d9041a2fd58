package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	consulapi "github.com/hashicorp/consul/api"

	"osops-utils/pkg/model"
)

// DefaultConsulPrefix is the KV prefix node records live under.
const DefaultConsulPrefix = "osops/nodes/"

// ConsulStore keeps node records as JSON documents in Consul KV.
type ConsulStore struct {
	cli    *consulapi.Client
	prefix string
}

// ConsulConfig configures NewConsulStore.
type ConsulConfig struct {
	Address string
	Token   string
	Prefix  string
}

func NewConsulStore(cfg ConsulConfig) (*ConsulStore, error) {
	apiCfg := consulapi.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	if cfg.Token != "" {
		apiCfg.Token = cfg.Token
	}
	cli, err := consulapi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultConsulPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ConsulStore{cli: cli, prefix: prefix}, nil
}

func (s *ConsulStore) key(name string) string { return s.prefix + name }

func (s *ConsulStore) UpsertNode(ctx context.Context, n model.Node) (model.Node, error) {
	if n.Name == "" {
		return n, fmt.Errorf("node name is required")
	}
	current, ok, err := s.GetNode(ctx, n.Name)
	if err != nil {
		return n, err
	}
	n.Revision = 1
	if ok {
		n.Revision = current.Revision + 1
	}
	b, err := json.Marshal(n)
	if err != nil {
		return n, err
	}
	w := (&consulapi.WriteOptions{}).WithContext(ctx)
	if _, err := s.cli.KV().Put(&consulapi.KVPair{Key: s.key(n.Name), Value: b}, w); err != nil {
		return n, fmt.Errorf("consul put %s: %w", n.Name, err)
	}
	return n, nil
}

func (s *ConsulStore) GetNode(ctx context.Context, name string) (model.Node, bool, error) {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	kv, _, err := s.cli.KV().Get(s.key(name), q)
	if err != nil {
		return model.Node{}, false, fmt.Errorf("consul get %s: %w", name, err)
	}
	if kv == nil {
		return model.Node{}, false, nil
	}
	var n model.Node
	if err := json.Unmarshal(kv.Value, &n); err != nil {
		return model.Node{}, false, fmt.Errorf("decode node %s: %w", name, err)
	}
	return n, true, nil
}

// ListNodes returns every decodable record; corrupt entries are skipped.
func (s *ConsulStore) ListNodes(ctx context.Context) ([]model.Node, error) {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	pairs, _, err := s.cli.KV().List(s.prefix, q)
	if err != nil {
		return nil, fmt.Errorf("consul list %s: %w", s.prefix, err)
	}
	out := make([]model.Node, 0, len(pairs))
	for _, p := range pairs {
		var n model.Node
		if err := json.Unmarshal(p.Value, &n); err == nil {
			out = append(out, n)
		}
	}
	sortByName(out)
	return out, nil
}

func (s *ConsulStore) DeleteNode(ctx context.Context, name string) error {
	_, ok, err := s.GetNode(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNodeNotFound
	}
	w := (&consulapi.WriteOptions{}).WithContext(ctx)
	if _, err := s.cli.KV().Delete(s.key(name), w); err != nil {
		return fmt.Errorf("consul delete %s: %w", name, err)
	}
	return nil
}

func (s *ConsulStore) Search(ctx context.Context, query string) ([]model.Node, error) {
	q, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	nodes, err := s.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(nodes, q), nil
}

// Client exposes the underlying Consul client.
func (s *ConsulStore) Client() *consulapi.Client {
	return s.cli
}

func (s *ConsulStore) Close() error { return nil }
