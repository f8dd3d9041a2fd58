package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"osops-utils/pkg/db"
	"osops-utils/pkg/discovery"
	"osops-utils/pkg/model"
)

var (
	errNoResult = errors.New("no result")
	errUsage    = errors.New("usage")
)

type app struct {
	res    *discovery.Resolver
	prov   *db.Provisioner
	out    io.Writer
	errOut io.Writer
}

func usageErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	quiet := fs.Bool("quiet", false, "do not log expected misses")
	partial := fs.Bool("partial", false, "config: print an empty endpoint instead of failing")
	kinds := fs.String("kinds", "role,recipe", "search priority, comma separated (role, recipe, tag)")
	one := fs.Bool("one", false, "search: stop at the first hit")
	noSelf := fs.Bool("no-self", false, "search/count: leave the asking node out")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	args = fs.Args()
	need := func(n int, names string) error {
		if len(args) != n {
			return usageErr("%s %s", cmd, names)
		}
		return nil
	}
	searchKinds := func() ([]discovery.Kind, error) {
		return discovery.ParseKinds(strings.Split(*kinds, ","))
	}

	switch cmd {
	case "local-address", "interface":
		if err := need(1, "NETWORK"); err != nil {
			return err
		}
		iface, addr, err := a.res.LocalInterfaceAndAddress(args[0], *quiet)
		if err != nil {
			return err
		}
		if cmd == "interface" && iface != "" {
			return a.println(iface)
		}
		return a.println(addr)

	case "config":
		if err := need(2, "SERVER SERVICE"); err != nil {
			return err
		}
		ep, err := a.res.ResolveConfigEndpoint(args[0], args[1], nil, *partial)
		return a.endpoint(ep, err)

	case "bind":
		if err := need(2, "SERVER SERVICE"); err != nil {
			return err
		}
		ep, err := a.res.ResolveBindEndpoint(args[0], args[1], nil)
		return a.endpoint(ep, err)

	case "access", "realservers", "lb":
		if err := need(3, "ROLE SERVER SERVICE"); err != nil {
			return err
		}
		ks, err := searchKinds()
		if err != nil {
			return usageErr("%v", err)
		}
		opt := discovery.WithKinds(ks...)
		switch cmd {
		case "access":
			ep, err := a.res.ResolveAccessEndpoint(ctx, args[0], args[1], args[2], opt)
			return a.endpoint(ep, err)
		case "lb":
			ep, err := a.res.ResolveLBEndpoint(ctx, args[0], args[1], args[2], opt)
			return a.endpoint(ep, err)
		}
		eps, err := a.res.ResolveRealserverEndpoints(ctx, args[0], args[1], args[2], opt)
		if err != nil {
			return err
		}
		return a.json(eps)

	case "access-ip":
		if err := need(2, "ROLE NETWORK"); err != nil {
			return err
		}
		ip, err := a.res.ResolveAccessIPForRole(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return a.println(ip)

	case "role-ips":
		if err := need(2, "ROLE NETWORK"); err != nil {
			return err
		}
		ips, err := a.res.ResolveIPsForRole(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return a.println(strings.Join(ips, "\n"))

	case "search":
		if err := need(1, "TERM"); err != nil {
			return err
		}
		ks, err := searchKinds()
		if err != nil {
			return usageErr("%v", err)
		}
		opts := discovery.SearchOptions{Kinds: ks, Mode: discovery.All, IncludeSelf: !*noSelf}
		if *one {
			opts.Mode = discovery.One
		}
		nodes, err := a.res.Search(ctx, args[0], opts)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(nodes))
		for _, n := range nodes {
			names = append(names, n.Name)
		}
		if len(names) == 0 {
			return errNoResult
		}
		return a.println(strings.Join(names, "\n"))

	case "count":
		if err := need(1, "ROLE"); err != nil {
			return err
		}
		n, err := a.res.CountNodesByRole(ctx, args[0], !*noSelf)
		if err != nil {
			return err
		}
		return a.println(fmt.Sprint(n))

	case "settings":
		if err := need(3, "KIND TERM PATH"); err != nil {
			return err
		}
		var (
			v   interface{}
			err error
		)
		switch discovery.Kind(args[0]) {
		case discovery.KindRole:
			v, err = a.res.ResolveSettingsByRole(ctx, args[1], args[2])
		case discovery.KindRecipe:
			v, err = a.res.ResolveSettingsByRecipe(ctx, args[1], args[2])
		case discovery.KindTag:
			v, err = a.res.ResolveSettingsByTag(ctx, args[1], args[2])
		default:
			return usageErr("unknown kind %q", args[0])
		}
		if err != nil {
			return err
		}
		if v == nil {
			return errNoResult
		}
		return a.json(jsonable(v))

	case "database":
		if err := need(1, "VENDOR"); err != nil {
			return err
		}
		conn, err := a.res.ResolveDatabaseConnection(ctx, args[0])
		if err != nil {
			return err
		}
		if conn == nil {
			return errNoResult
		}
		return a.json(conn)

	case "create-db":
		if err := need(4, "VENDOR DB USER PASSWORD"); err != nil {
			return err
		}
		conn, err := a.prov.CreateDBAndUser(ctx, args[0], args[1], args[2], args[3])
		if err != nil {
			return err
		}
		if conn == nil {
			return errNoResult
		}
		return a.json(conn)

	case "add-index":
		if err := need(5, "VENDOR DB INDEX TABLE COLUMN"); err != nil {
			return err
		}
		return a.prov.AddIndex(ctx, args[0], args[1], args[2], args[3], args[4])
	}
	return usageErr("unknown command %q", cmd)
}

func (a *app) endpoint(ep *model.Endpoint, err error) error {
	if err != nil {
		return err
	}
	if ep == nil {
		return errNoResult
	}
	return a.json(ep)
}

func (a *app) println(s string) error {
	_, err := fmt.Fprintln(a.out, s)
	return err
}

func (a *app) json(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// jsonable converts yaml.v2 style maps so that settings read from YAML node
// files can be printed as JSON.
func jsonable(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = jsonable(vv)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = jsonable(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = jsonable(vv)
		}
		return out
	}
	return v
}
