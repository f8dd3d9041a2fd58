// Package inventory builds the record a node publishes to the registry: the
// operator-maintained node file plus the interfaces found on the host.
package inventory

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"osops-utils/pkg/model"
)

// LoadNode reads a node record. Files ending in .yaml or .yml are YAML, all
// others JSON.
func LoadNode(path string) (*model.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read node file: %w", err)
	}
	var n model.Node
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &n)
	default:
		err = json.Unmarshal(data, &n)
	}
	if err != nil {
		return nil, fmt.Errorf("parse node file %s: %w", path, err)
	}
	if n.Name == "" {
		return nil, fmt.Errorf("node file %s: name is required", path)
	}
	return &n, nil
}

// Collect lists the host's interfaces that are up, loopback excluded, with
// their addresses in the order the kernel reports them.
func Collect() ([]model.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	var out []model.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, fmt.Errorf("addresses of %s: %w", iface.Name, err)
		}
		out = append(out, model.Interface{Name: iface.Name, Addresses: Addresses(addrs)})
	}
	return out, nil
}

// Addresses converts interface addresses into registry form.
func Addresses(addrs []net.Addr) []model.InterfaceAddress {
	var out []model.InterfaceAddress
	for _, a := range addrs {
		var (
			ip   net.IP
			ones int
		)
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
			ones, _ = v.Mask.Size()
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		if ip == nil {
			continue
		}
		family := model.FamilyInet6
		if ip4 := ip.To4(); ip4 != nil {
			ip = ip4
			family = model.FamilyInet
		}
		if ones == 0 && a.Network() == "ip" {
			ones = len(ip) * 8
		}
		out = append(out, model.InterfaceAddress{Address: ip.String(), Family: family, PrefixLen: ones})
	}
	return out
}

// Apply fills the parts of n that come from the host: interfaces when the
// node file lists none, and the hostname.
func Apply(n *model.Node, ifaces []model.Interface) {
	if len(n.Interfaces) == 0 {
		n.Interfaces = ifaces
	}
	if n.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			n.Hostname = h
		}
	}
}
