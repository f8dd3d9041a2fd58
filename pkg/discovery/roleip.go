package discovery

import (
	"context"

	"github.com/sirupsen/logrus"

	"osops-utils/pkg/errs"
	"osops-utils/pkg/model"
	"osops-utils/pkg/netloc"
)

func (r *Resolver) addressOf(network string, node *model.Node, quiet bool) (string, error) {
	return netloc.Address(network, node, r.netOpts(quiet))
}

func (r *Resolver) roleCandidates(ctx context.Context, role string) ([]*model.Node, error) {
	return r.Search(ctx, role, SearchOptions{Kinds: []Kind{KindRole}, Mode: All, IncludeSelf: true})
}

// ResolveAccessIPForRole returns the address clients should use for role on
// network: the single holder's address, or the role's VIP from
// networks.vips when several nodes hold it. In solo mode the current node
// answers for itself.
func (r *Resolver) ResolveAccessIPForRole(ctx context.Context, role, network string) (string, error) {
	if r.Solo {
		return r.addressOf(network, r.self(), false)
	}
	log := r.log().WithFields(logrus.Fields{"role": role, "network": network})

	nodes, err := r.roleCandidates(ctx, role)
	if err != nil {
		return "", err
	}
	switch len(nodes) {
	case 0:
		return "", errs.Raise(log, errs.New(errs.ErrNoCandidates, false,
			"can't find any candidates for role %s in environment %s", role, r.Environment))
	case 1:
		return r.addressOf(network, nodes[0], false)
	}
	if vip, ok := r.self().Networks.VIP(role); ok {
		return vip, nil
	}
	return "", errs.Raise(log, errs.New(errs.ErrVIPNotConfigured, false,
		"can't find lb vip for %s (networks.vips.%s) in environment %s, with %d %s nodes",
		role, role, r.Environment, len(nodes), role))
}

// ResolveIPsForRole returns the address on network of every node holding
// role, in search order.
func (r *Resolver) ResolveIPsForRole(ctx context.Context, role, network string) ([]string, error) {
	if r.Solo {
		addr, err := r.addressOf(network, r.self(), false)
		if err != nil {
			return nil, err
		}
		return []string{addr}, nil
	}

	nodes, err := r.roleCandidates(ctx, role)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, errs.Raise(r.log().WithField("role", role), errs.New(errs.ErrNoCandidates, false,
			"can't find any candidates for role %s in environment %s", role, r.Environment))
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		addr, err := r.addressOf(network, n, false)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}
