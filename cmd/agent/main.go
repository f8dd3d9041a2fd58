package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"osops-utils/pkg/api"
	"osops-utils/pkg/config"
	"osops-utils/pkg/inventory"
	"osops-utils/pkg/logging"
	"osops-utils/pkg/model"
	"osops-utils/pkg/registry"
	"osops-utils/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	nodeFile := flag.String("node", "", "node record file, JSON or YAML (overrides config)")
	controller := flag.String("controller", "", "controller base URL (overrides config; implies the http registry)")
	token := flag.String("token", "", "controller bearer token (overrides config)")
	caFile := flag.String("ca", "", "CA file to verify the controller (optional)")
	certFile := flag.String("cert", "", "client certificate for mTLS (optional)")
	keyFile := flag.String("key", "", "client key for mTLS (optional)")
	interval := flag.Duration("interval", 0, "re-register period; 0 registers once (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("osops-agent"))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *nodeFile != "" {
		cfg.NodeFile = *nodeFile
	}
	if *controller != "" {
		cfg.Registry.Backend = registry.BackendHTTP
		cfg.Registry.URL = *controller
	}
	if *token != "" {
		cfg.Registry.Token = *token
	}
	if *interval != 0 {
		cfg.Interval = *interval
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	if cfg.NodeFile == "" {
		log.Fatal("a node file is required (-node or node_file)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, *caFile, *certFile, *keyFile)
	if err != nil {
		log.WithError(err).Fatal("open registry")
	}
	defer store.Close()

	if err := register(ctx, log, store, cfg); err != nil {
		log.WithError(err).Fatal("register failed")
	}
	if cfg.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("agent stopped")
			return
		case <-ticker.C:
			if err := register(ctx, log, store, cfg); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("re-register failed")
			}
		}
	}
}

func openStore(ctx context.Context, cfg config.Config, caFile, certFile, keyFile string) (registry.Store, error) {
	if cfg.Registry.Backend != registry.BackendHTTP {
		return registry.Open(ctx, cfg.Registry)
	}
	if cfg.Registry.URL == "" {
		return nil, fmt.Errorf("http registry requires a controller url")
	}
	client, err := api.NewHTTPClient(caFile, certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return registry.NewHTTPStore(cfg.Registry.URL, cfg.Registry.Token, client), nil
}

// register publishes the node file merged with the host's interfaces. The
// file is re-read every time so operator edits are picked up.
func register(ctx context.Context, log *logrus.Logger, store registry.Store, cfg config.Config) error {
	n, err := inventory.LoadNode(cfg.NodeFile)
	if err != nil {
		return err
	}
	if cfg.Environment != "" && n.Environment == "" {
		n.Environment = cfg.Environment
	}
	ifaces, err := inventory.Collect()
	if err != nil {
		return err
	}
	inventory.Apply(n, ifaces)

	saved, err := store.UpsertNode(ctx, *n)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", n.Name, err)
	}
	log.WithFields(logrus.Fields{
		"node":       saved.Name,
		"revision":   saved.Revision,
		"interfaces": interfaceNames(saved.Interfaces),
	}).Info("registered")
	return nil
}

func interfaceNames(ifaces []model.Interface) []string {
	out := make([]string, 0, len(ifaces))
	for _, i := range ifaces {
		out = append(out, i.Name)
	}
	return out
}
