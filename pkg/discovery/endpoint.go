package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"osops-utils/pkg/model"
)

const (
	defaultPath   = "/"
	defaultScheme = "http"
	defaultPort   = 80
)

// percentMark stands in for '%' while a uri is parsed so that escapes in the
// path come through verbatim.
const percentMark = "_pct25_"

var schemePorts = map[string]int{
	"http":  80,
	"https": 443,
}

// ResolveConfigEndpoint reads the endpoint node declares for server/service.
// A missing entry gives an empty endpoint when partial is set and nil
// otherwise. When the entry carries a uri, it is authoritative over every
// other field.
func (r *Resolver) ResolveConfigEndpoint(server, service string, node *model.Node, partial bool) (*model.Endpoint, error) {
	if node == nil {
		node = r.self()
	}
	svc, ok := node.Service(server, service)
	if !ok {
		r.log().Infof("no configured endpoint for %s/%s", server, service)
		if partial {
			return &model.Endpoint{}, nil
		}
		return nil, nil
	}

	ep := &model.Endpoint{
		Network: svc.Network,
		Name:    svc.Name,
		Path:    svc.Path,
		Scheme:  svc.Scheme,
		Port:    svc.Port,
	}
	if ep.Path == "" {
		ep.Path = defaultPath
	}
	if ep.Scheme == "" {
		ep.Scheme = defaultScheme
	}
	if ep.Port == 0 {
		ep.Port = defaultPort
	}

	switch {
	case svc.URI != "":
		if err := applyURI(ep, svc.URI); err != nil {
			return nil, fmt.Errorf("endpoint %s/%s on %s: %w", server, service, node.Name, err)
		}
	case svc.Host != "":
		ep.Host = svc.Host
		ep.URI = ep.ComposeURI()
	}
	return ep, nil
}

func applyURI(ep *model.Endpoint, raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "%", percentMark))
	if err != nil {
		return fmt.Errorf("parse uri %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("parse uri %q: scheme and host required", raw)
	}
	ep.Scheme = u.Scheme
	ep.Host = u.Hostname()
	ep.Path = strings.ReplaceAll(u.Path, percentMark, "%")
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("parse uri %q: bad port %q", raw, p)
		}
		ep.Port = port
	} else if port, ok := schemePorts[u.Scheme]; ok {
		ep.Port = port
	} else {
		ep.Port = defaultPort
	}
	return nil
}

// ResolveBindEndpoint returns where server/service listens on node. The host
// is derived from the service's network when not configured. A node without
// the service yields nil.
func (r *Resolver) ResolveBindEndpoint(server, service string, node *model.Node) (*model.Endpoint, error) {
	if node == nil {
		node = r.self()
	}
	ep, err := r.ResolveConfigEndpoint(server, service, node, true)
	if err != nil {
		return nil, err
	}
	if ep.IsEmpty() {
		r.log().Warnf("cannot find server/service %s/%s", server, service)
		return nil, nil
	}
	if ep.Host == "" {
		addr, err := r.addressOf(ep.Network, node, false)
		if err != nil {
			return nil, err
		}
		ep.Host = addr
	}
	if ep.URI == "" {
		ep.URI = ep.ComposeURI()
	}
	return ep, nil
}

// AccessOption tunes ResolveAccessEndpoint.
type AccessOption func(*SearchOptions)

// WithKinds replaces the default role, recipe search priority.
func WithKinds(kinds ...Kind) AccessOption {
	return func(o *SearchOptions) { o.Kinds = kinds }
}

func (r *Resolver) candidateOptions(opts []AccessOption) SearchOptions {
	so := SearchOptions{Kinds: DefaultKinds, Mode: All, IncludeSelf: true}
	for _, opt := range opts {
		opt(&so)
	}
	return so
}

// ResolveAccessEndpoint returns where a client should reach server/service
// for role: the single holder's bind endpoint, or the VIP when there are
// several holders. Nil means the service is not deployed yet.
func (r *Resolver) ResolveAccessEndpoint(ctx context.Context, role, server, service string, opts ...AccessOption) (*model.Endpoint, error) {
	nodes, err := r.Search(ctx, role, r.candidateOptions(opts))
	if err != nil {
		return nil, err
	}
	log := r.log().WithFields(logrus.Fields{"role": role, "server": server, "service": service})
	switch len(nodes) {
	case 0:
		log.Warnf("cannot find %s/%s for role %s", server, service, role)
		return nil, nil
	case 1:
		if nodes[0].Name == r.self().Name {
			log.Debug("single candidate is the current node")
		}
		return r.ResolveBindEndpoint(server, service, nodes[0])
	default:
		return r.ResolveLBEndpoint(ctx, role, server, service, opts...)
	}
}

// ResolveRealserverEndpoints returns the bind endpoint of every node holding
// role. Entries are positional; a nil entry is a candidate without the
// service.
func (r *Resolver) ResolveRealserverEndpoints(ctx context.Context, role, server, service string, opts ...AccessOption) ([]*model.Endpoint, error) {
	nodes, err := r.Search(ctx, role, r.candidateOptions(opts))
	if err != nil {
		return nil, err
	}
	out := make([]*model.Endpoint, 0, len(nodes))
	for _, n := range nodes {
		ep, err := r.ResolveBindEndpoint(server, service, n)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}
