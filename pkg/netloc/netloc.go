// Package netloc finds the address a node holds on a named network.
package netloc

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/sirupsen/logrus"

	"osops-utils/pkg/errs"
	"osops-utils/pkg/model"
)

// Reserved network names that resolve without looking at the node.
const (
	NetworkAll       = "all"
	NetworkLocalhost = "localhost"

	AnyAddress      = "0.0.0.0"
	LoopbackAddress = "127.0.0.1"
)

// Options tunes a lookup. Quiet suppresses the error log for expected misses.
type Options struct {
	Log   logrus.FieldLogger
	Quiet bool
}

func (o Options) logger() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}

// InterfaceAndAddress returns the first interface/address pair of node that
// falls inside the CIDR of network. Interfaces and their addresses are tried
// in stored order; addresses bound with a host mask (/32, /128) never match.
func InterfaceAndAddress(network string, node *model.Node, opts Options) (string, string, error) {
	switch network {
	case NetworkAll:
		return "", AnyAddress, nil
	case NetworkLocalhost:
		return "", LoopbackAddress, nil
	}
	log := opts.logger().WithField("network", network)

	var networks model.Networks
	if node != nil {
		networks = node.Networks
	}
	name := networks.Canonical(network)
	cidr, ok := networks.CIDR(name)
	if !ok {
		return "", "", errs.Raise(log, errs.New(errs.ErrNetworkNotFound, opts.Quiet, "can't find network %s", name))
	}
	prefix, err := ParsePrefix(cidr)
	if err != nil {
		return "", "", fmt.Errorf("network %s: %w", name, err)
	}

	for _, iface := range node.Interfaces {
		for _, a := range iface.Addresses {
			if a.Family != model.FamilyInet && a.Family != model.FamilyInet6 {
				continue
			}
			if a.HostMask() {
				continue
			}
			addr, err := netip.ParseAddr(a.Address)
			if err != nil {
				log.WithField("address", a.Address).Debug("skipping unparsable interface address")
				continue
			}
			if prefix.Contains(addr.WithZone("").Unmap()) {
				return iface.Name, a.Address, nil
			}
		}
	}
	return "", "", errs.Raise(log, errs.New(errs.ErrAddressNotFound, opts.Quiet,
		"can't find address on network %s for node %s", name, node.Name))
}

// Address returns only the address component of InterfaceAndAddress.
func Address(network string, node *model.Node, opts Options) (string, error) {
	_, addr, err := InterfaceAndAddress(network, node, opts)
	return addr, err
}

// Interface returns only the interface component of InterfaceAndAddress.
// The reserved networks have no interface and yield their address instead.
func Interface(network string, node *model.Node, opts Options) (string, error) {
	iface, addr, err := InterfaceAndAddress(network, node, opts)
	if err != nil {
		return "", err
	}
	if iface == "" {
		return addr, nil
	}
	return iface, nil
}

// ParsePrefix parses a network definition. A bare address is treated as a
// single-host network.
func ParsePrefix(cidr string) (netip.Prefix, error) {
	cidr = strings.TrimSpace(cidr)
	if !strings.Contains(cidr, "/") {
		addr, err := netip.ParseAddr(cidr)
		if err != nil {
			return netip.Prefix{}, err
		}
		addr = addr.Unmap()
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return netip.Prefix{}, err
	}
	return p.Masked(), nil
}
