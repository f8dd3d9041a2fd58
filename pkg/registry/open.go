package registry

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendConsul = "consul"
	BackendMySQL  = "mysql"
	BackendSQLite = "sqlite"
	BackendHTTP   = "http"
)

// Config selects and configures a registry backend.
type Config struct {
	Backend      string `yaml:"backend"`
	ConsulAddr   string `yaml:"consul_addr"`
	ConsulToken  string `yaml:"consul_token"`
	ConsulPrefix string `yaml:"consul_prefix"`
	MySQLDSN     string `yaml:"mysql_dsn"`
	SQLitePath   string `yaml:"sqlite_path"`
	URL          string `yaml:"url"`   // controller base URL for the http backend
	Token        string `yaml:"token"` // bearer token for the http backend
}

// Open builds the store named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendConsul:
		return NewConsulStore(ConsulConfig{Address: cfg.ConsulAddr, Token: cfg.ConsulToken, Prefix: cfg.ConsulPrefix})
	case BackendMySQL:
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("mysql registry requires a dsn")
		}
		return NewMySQLStore(cfg.MySQLDSN)
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite registry requires a path")
		}
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case BackendHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("http registry requires a controller url")
		}
		return NewHTTPStore(cfg.URL, cfg.Token, nil), nil
	default:
		return nil, fmt.Errorf("unsupported registry backend: %s", cfg.Backend)
	}
}
