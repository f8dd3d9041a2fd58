// Command osops-resolve answers discovery questions from the command line
// on behalf of the node described by the node file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"osops-utils/pkg/api"
	"osops-utils/pkg/config"
	"osops-utils/pkg/db"
	"osops-utils/pkg/discovery"
	"osops-utils/pkg/inventory"
	"osops-utils/pkg/logging"
	"osops-utils/pkg/registry"
	"osops-utils/pkg/version"
)

const usage = `usage: osops-resolve [flags] <command> [args]

commands:
  local-address NETWORK            address of this node on NETWORK
  interface NETWORK                interface of this node on NETWORK
  config SERVER SERVICE            configured endpoint of this node
  bind SERVER SERVICE              bind endpoint of this node
  access ROLE SERVER SERVICE       where clients reach SERVER/SERVICE
  realservers ROLE SERVER SERVICE  bind endpoints of every holder of ROLE
  lb ROLE SERVER SERVICE           VIP endpoint for SERVER/SERVICE
  access-ip ROLE NETWORK           address clients use for ROLE
  role-ips ROLE NETWORK            addresses of every holder of ROLE
  search TERM                      nodes holding TERM (see -kinds)
  count ROLE                       number of nodes holding ROLE
  settings KIND TERM PATH          setting at PATH on the first holder of TERM
  database VENDOR                  database server connection
  create-db VENDOR DB USER PASS    create a database and its user
  add-index VENDOR DB INDEX TABLE COLUMN
`

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	nodeFile := flag.String("node", "", "node record of the asking node (overrides config)")
	env := flag.String("env", "", "environment to search (defaults to the node's)")
	solo := flag.Bool("solo", false, "answer role lookups from the local node only")
	controller := flag.String("controller", "", "controller base URL (implies the http registry)")
	token := flag.String("token", "", "controller bearer token")
	caFile := flag.String("ca", "", "CA file to verify the controller (optional)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("osops-resolve"))
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *nodeFile != "" {
		cfg.NodeFile = *nodeFile
	}
	if *env != "" {
		cfg.Environment = *env
	}
	if *solo {
		cfg.Solo = true
	}
	if *controller != "" {
		cfg.Registry.Backend = registry.BackendHTTP
		cfg.Registry.URL = *controller
	}
	if *token != "" {
		cfg.Registry.Token = *token
	}
	if cfg.NodeFile == "" {
		fatal(errors.New("a node file is required (-node or node_file)"))
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fatal(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node, err := inventory.LoadNode(cfg.NodeFile)
	if err != nil {
		fatal(err)
	}
	if len(node.Interfaces) == 0 {
		ifaces, err := inventory.Collect()
		if err != nil {
			fatal(err)
		}
		inventory.Apply(node, ifaces)
	}

	var store registry.Store
	if cfg.Registry.Backend == registry.BackendHTTP {
		client, err := api.NewHTTPClient(*caFile, "", "")
		if err != nil {
			fatal(err)
		}
		store = registry.NewHTTPStore(cfg.Registry.URL, cfg.Registry.Token, client)
	} else if store, err = registry.Open(ctx, cfg.Registry); err != nil {
		fatal(err)
	}
	defer store.Close()

	opts := []discovery.Option{discovery.WithLogger(log), discovery.WithSolo(cfg.Solo)}
	if cfg.Environment != "" {
		opts = append(opts, discovery.WithEnvironment(cfg.Environment))
	}
	res := discovery.New(node, store, opts...)
	a := &app{
		res:    res,
		prov:   &db.Provisioner{Resolver: res, Log: log},
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	err = a.run(ctx, flag.Arg(0), flag.Args()[1:])
	switch {
	case errors.Is(err, errNoResult):
		os.Exit(3)
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	case err != nil:
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "osops-resolve: %v\n", err)
	os.Exit(1)
}
