package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"osops-utils/pkg/api"
	"osops-utils/pkg/auth"
	"osops-utils/pkg/config"
	"osops-utils/pkg/db"
	"osops-utils/pkg/logging"
	"osops-utils/pkg/registry"
	"osops-utils/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	token := flag.String("token", "", "bootstrap auth token (overrides config)")
	storeType := flag.String("store", "", "registry backend: memory|consul|mysql|sqlite (overrides config)")
	consulAddr := flag.String("consul-addr", "", "consul address (when store=consul)")
	sqlitePath := flag.String("sqlite-path", "", "registry file (when store=sqlite)")
	tlsCert := flag.String("tls-cert", "", "TLS cert path (enables HTTPS if set with --tls-key)")
	tlsKey := flag.String("tls-key", "", "TLS key path (enables HTTPS if set with --tls-cert)")
	clientCA := flag.String("client-ca", "", "require and verify client certs using this CA (optional)")
	withUsers := flag.Bool("users", false, "enable operator accounts in MySQL (users_dsn or MYSQL_*)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("osops-controller"))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	override(&cfg.Listen, *addr)
	override(&cfg.Token, *token)
	override(&cfg.Registry.Backend, *storeType)
	override(&cfg.Registry.ConsulAddr, *consulAddr)
	override(&cfg.Registry.SQLitePath, *sqlitePath)
	override(&cfg.TLSCert, *tlsCert)
	override(&cfg.TLSKey, *tlsKey)
	override(&cfg.ClientCA, *clientCA)

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg, *withUsers); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("controller exited")
	}
	log.Info("controller stopped")
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func run(ctx context.Context, log *logrus.Logger, cfg config.Config, withUsers bool) error {
	if cfg.Registry.Backend == registry.BackendHTTP {
		return fmt.Errorf("the controller cannot use the http registry backend")
	}
	store, err := registry.Open(ctx, cfg.Registry)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer store.Close()

	srv := &api.Server{
		Store:  store,
		Token:  cfg.Token,
		Signer: auth.NewSigner(cfg.JWTSecret),
		Solo:   cfg.Solo,
		Log:    log,
	}
	if withUsers || cfg.UsersDSN != "" {
		users, err := db.Init(cfg.UsersDSN)
		if err != nil {
			return fmt.Errorf("init user db: %w", err)
		}
		srv.Users = users
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		tlsCfg, err := api.ServerTLSConfig(cfg.TLSCert, cfg.TLSKey, cfg.ClientCA)
		if err != nil {
			return fmt.Errorf("build TLS config: %w", err)
		}
		httpSrv.TLSConfig = tlsCfg
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":     cfg.Listen,
			"registry": cfg.Registry.Backend,
			"tls":      httpSrv.TLSConfig != nil,
		}).Info("controller listening")
		var err error
		if httpSrv.TLSConfig != nil {
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
