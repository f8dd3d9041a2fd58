// Package discovery answers "where is service X running, and how do I reach
// it" from the point of view of a node, by searching the node registry.
//
// Every call re-queries the registry; nothing is cached between calls.
package discovery

import (
	"github.com/sirupsen/logrus"

	"osops-utils/pkg/model"
	"osops-utils/pkg/netloc"
	"osops-utils/pkg/registry"
)

// Resolver carries the context every resolution runs in: the node doing the
// asking, the environment searches are scoped to and the registry to search.
type Resolver struct {
	Node        *model.Node
	Environment string
	Registry    registry.Searcher
	// Solo marks standalone runs with no registry; role lookups answer from
	// the local node only.
	Solo bool
	Log  logrus.FieldLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnvironment overrides the node's own environment.
func WithEnvironment(env string) Option {
	return func(r *Resolver) { r.Environment = env }
}

// WithSolo enables standalone mode.
func WithSolo(solo bool) Option {
	return func(r *Resolver) { r.Solo = solo }
}

// WithLogger sets the logger; the logrus standard logger is used otherwise.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) { r.Log = log }
}

// New builds a Resolver for node. A nil node resolves as an anonymous node
// that holds no roles, networks or services.
func New(node *model.Node, reg registry.Searcher, opts ...Option) *Resolver {
	if node == nil {
		node = &model.Node{}
	}
	r := &Resolver{
		Node:        node,
		Environment: node.Environment,
		Registry:    reg,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Log == nil {
		r.Log = logrus.StandardLogger()
	}
	return r
}

// self is the asking node. A Resolver built as a literal without one
// resolves as the anonymous node New would have given it.
func (r *Resolver) self() *model.Node {
	if r.Node == nil {
		return &model.Node{}
	}
	return r.Node
}

func (r *Resolver) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

// LocalAddress resolves the current node's address on network.
func (r *Resolver) LocalAddress(network string, quiet bool) (string, error) {
	return netloc.Address(network, r.self(), r.netOpts(quiet))
}

// LocalInterfaceAndAddress resolves the current node's interface and address on network.
func (r *Resolver) LocalInterfaceAndAddress(network string, quiet bool) (string, string, error) {
	return netloc.InterfaceAndAddress(network, r.self(), r.netOpts(quiet))
}

func (r *Resolver) netOpts(quiet bool) netloc.Options {
	return netloc.Options{Log: r.log(), Quiet: quiet}
}
