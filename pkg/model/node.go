package model

// Address families recognised on interface addresses.
const (
	FamilyInet  = "inet"
	FamilyInet6 = "inet6"
)

// Node captures one managed host as published to the registry.
type Node struct {
	Name         string                              `json:"name" yaml:"name"`
	Environment  string                              `json:"environment" yaml:"environment"`
	Roles        []string                            `json:"roles,omitempty" yaml:"roles,omitempty"`
	Recipes      []string                            `json:"recipes,omitempty" yaml:"recipes,omitempty"`
	Tags         []string                            `json:"tags,omitempty" yaml:"tags,omitempty"`
	FQDN         string                              `json:"fqdn,omitempty" yaml:"fqdn,omitempty"`
	Hostname     string                              `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	IPAddress    string                              `json:"ipaddress,omitempty" yaml:"ipaddress,omitempty"`
	Platform     string                              `json:"platform,omitempty" yaml:"platform,omitempty"`
	Networks     Networks                            `json:"networks,omitempty" yaml:"networks,omitempty"`
	Interfaces   []Interface                         `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Services     map[string]map[string]ServiceConfig `json:"services,omitempty" yaml:"services,omitempty"`
	VIPs         map[string]string                   `json:"vips,omitempty" yaml:"vips,omitempty"`                   // "server-service" -> vip
	ExternalVIPs map[string]string                   `json:"external-vips,omitempty" yaml:"external-vips,omitempty"` // "server-service" -> vip
	Unmanaged    map[string]DatabaseOverride         `json:"unmanaged,omitempty" yaml:"unmanaged,omitempty"`         // vendor -> externally managed database
	Attributes   map[string]interface{}              `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Revision     int64                               `json:"revision,omitempty" yaml:"revision,omitempty"` // bumped by the registry on upsert
}

// Interface is a named network interface with its addresses in registration order.
type Interface struct {
	Name      string             `json:"name" yaml:"name"`
	Addresses []InterfaceAddress `json:"addresses,omitempty" yaml:"addresses,omitempty"`
}

// InterfaceAddress is a single address bound to an interface.
type InterfaceAddress struct {
	Address   string `json:"address" yaml:"address"`
	Family    string `json:"family" yaml:"family"` // inet/inet6
	PrefixLen int    `json:"prefixlen,omitempty" yaml:"prefixlen,omitempty"`
}

// HostMask reports whether the address is bound with a single-host mask
// (/32 for inet, /128 for inet6).
func (a InterfaceAddress) HostMask() bool {
	switch a.Family {
	case FamilyInet:
		return a.PrefixLen == 32
	case FamilyInet6:
		return a.PrefixLen == 128
	}
	return false
}

// DatabaseOverride points at a database that is managed outside the registry.
type DatabaseOverride struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"server_root_password,omitempty" yaml:"server_root_password,omitempty"`
}

// HasRole reports whether the node carries role.
func (n *Node) HasRole(role string) bool { return contains(n.Roles, role) }

// HasRecipe reports whether the node carries recipe.
func (n *Node) HasRecipe(recipe string) bool { return contains(n.Recipes, recipe) }

// HasTag reports whether the node carries tag.
func (n *Node) HasTag(tag string) bool { return contains(n.Tags, tag) }

// Service returns the service entry declared for server/service.
func (n *Node) Service(server, service string) (ServiceConfig, bool) {
	if n == nil || n.Services == nil {
		return ServiceConfig{}, false
	}
	svc, ok := n.Services[server][service]
	return svc, ok
}

// Clone returns a copy that shares no maps or slices with n.
func (n Node) Clone() Node {
	out := n
	out.Roles = append([]string(nil), n.Roles...)
	out.Recipes = append([]string(nil), n.Recipes...)
	out.Tags = append([]string(nil), n.Tags...)
	out.Networks = n.Networks.Clone()
	if n.Interfaces != nil {
		out.Interfaces = make([]Interface, len(n.Interfaces))
		for i, iface := range n.Interfaces {
			out.Interfaces[i] = Interface{
				Name:      iface.Name,
				Addresses: append([]InterfaceAddress(nil), iface.Addresses...),
			}
		}
	}
	if n.Services != nil {
		out.Services = make(map[string]map[string]ServiceConfig, len(n.Services))
		for server, svcs := range n.Services {
			m := make(map[string]ServiceConfig, len(svcs))
			for k, v := range svcs {
				m[k] = v
			}
			out.Services[server] = m
		}
	}
	out.VIPs = copyStrings(n.VIPs)
	out.ExternalVIPs = copyStrings(n.ExternalVIPs)
	if n.Unmanaged != nil {
		out.Unmanaged = make(map[string]DatabaseOverride, len(n.Unmanaged))
		for k, v := range n.Unmanaged {
			out.Unmanaged[k] = v
		}
	}
	out.Attributes = copyTree(n.Attributes)
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func copyStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyTree(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyTree(t)
	case map[interface{}]interface{}:
		out := make(map[interface{}]interface{}, len(t))
		for k, vv := range t {
			out[k] = copyValue(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = copyValue(vv)
		}
		return out
	}
	return v
}
