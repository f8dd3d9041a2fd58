// Package config loads process settings for the controller, the agent and
// the resolve CLI.
//
// Values are layered: built-in defaults, then a .env file in the working
// directory, then the YAML file given to Load, then OSOPS_* environment
// variables. Command flags are applied on top by each binary.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"osops-utils/pkg/registry"
)

const envPrefix = "OSOPS_"

type Config struct {
	Environment string `yaml:"environment"`
	// Solo answers role lookups from the local node only.
	Solo     bool   `yaml:"solo"`
	LogLevel string `yaml:"log_level"`
	// NodeFile is the JSON or YAML record of the node running the process.
	NodeFile string `yaml:"node_file"`

	Listen    string `yaml:"listen"`
	Token     string `yaml:"token"` // bootstrap bearer token for the controller
	TLSCert   string `yaml:"tls_cert"`
	TLSKey    string `yaml:"tls_key"`
	ClientCA  string `yaml:"client_ca"`
	UsersDSN  string `yaml:"users_dsn"` // MySQL holding controller users; empty disables /auth
	JWTSecret string `yaml:"jwt_secret"`

	// Interval is how often the agent re-registers; zero registers once.
	Interval time.Duration `yaml:"interval"`

	Registry registry.Config `yaml:"registry"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel: "info",
		Listen:   ":8080",
		Registry: registry.Config{Backend: registry.BackendMemory},
	}
}

// Load builds the layered configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadDotEnv(); err != nil {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"ENVIRONMENT":      &cfg.Environment,
		"LOG_LEVEL":        &cfg.LogLevel,
		"NODE_FILE":        &cfg.NodeFile,
		"LISTEN":           &cfg.Listen,
		"TOKEN":            &cfg.Token,
		"TLS_CERT":         &cfg.TLSCert,
		"TLS_KEY":          &cfg.TLSKey,
		"CLIENT_CA":        &cfg.ClientCA,
		"USERS_DSN":        &cfg.UsersDSN,
		"JWT_SECRET":       &cfg.JWTSecret,
		"REGISTRY_BACKEND": &cfg.Registry.Backend,
		"REGISTRY_URL":     &cfg.Registry.URL,
		"REGISTRY_TOKEN":   &cfg.Registry.Token,
		"CONSUL_ADDR":      &cfg.Registry.ConsulAddr,
		"CONSUL_TOKEN":     &cfg.Registry.ConsulToken,
		"CONSUL_PREFIX":    &cfg.Registry.ConsulPrefix,
		"MYSQL_DSN":        &cfg.Registry.MySQLDSN,
		"SQLITE_PATH":      &cfg.Registry.SQLitePath,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "SOLO"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSOLO: %w", envPrefix, err)
		}
		cfg.Solo = b
	}
	if v, ok := os.LookupEnv(envPrefix + "INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sINTERVAL: %w", envPrefix, err)
		}
		cfg.Interval = d
	}
	return nil
}
