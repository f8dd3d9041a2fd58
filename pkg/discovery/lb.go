package discovery

import (
	"context"

	"github.com/sirupsen/logrus"

	"osops-utils/pkg/errs"
	"osops-utils/pkg/model"
)

// ResolveLBEndpoint fronts the holders of role with the VIP configured for
// server/service on the current node. The first realserver endpoint supplies
// scheme, port and path. Missing VIP configuration is fatal.
func (r *Resolver) ResolveLBEndpoint(ctx context.Context, role, server, service string, opts ...AccessOption) (*model.Endpoint, error) {
	key := server + "-" + service
	log := r.log().WithFields(logrus.Fields{"role": role, "server": server, "service": service})

	vip, ok := r.self().VIPs[key]
	if ok && vip != "" {
		log.Infof("vip provided for %s/%s", server, service)
	} else if vip, ok = r.self().ExternalVIPs[key]; ok && vip != "" {
		log.Infof("external vip provided for %s/%s", server, service)
	} else {
		return nil, errs.Raise(log, errs.New(errs.ErrVIPNotConfigured, false,
			"found more than 1 %s/%s but vips.%s is not defined", server, service, key))
	}

	servers, err := r.ResolveRealserverEndpoints(ctx, role, server, service, opts...)
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 || servers[0].IsEmpty() {
		log.Warnf("cannot find server/service %s/%s", server, service)
		return nil, nil
	}
	ep := *servers[0]
	ep.Host = vip
	ep.URI = ep.ComposeURI()
	return &ep, nil
}
