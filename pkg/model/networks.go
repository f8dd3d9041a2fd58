package model

import (
	"encoding/json"
	"fmt"
)

const (
	networksMappingKey = "mapping"
	networksVIPsKey    = "vips"
)

// Networks maps network names to CIDRs, plus optional alias mapping and
// per-role VIPs. On the wire it is a single flat object where every string
// value is a network and the "mapping"/"vips" keys hold nested objects:
//
//	{"management": "172.16.0.0/16", "mapping": {"public": "management"}, "vips": {"api": "172.16.0.10"}}
type Networks struct {
	CIDRs   map[string]string
	Mapping map[string]string
	VIPs    map[string]string
}

// Canonical applies one level of alias mapping to name.
func (n Networks) Canonical(name string) string {
	if mapped, ok := n.Mapping[name]; ok && mapped != "" {
		return mapped
	}
	return name
}

// CIDR returns the CIDR configured for name (without alias mapping).
func (n Networks) CIDR(name string) (string, bool) {
	cidr, ok := n.CIDRs[name]
	return cidr, ok
}

// VIP returns the VIP configured for role.
func (n Networks) VIP(role string) (string, bool) {
	vip, ok := n.VIPs[role]
	return vip, ok && vip != ""
}

// IsZero reports whether nothing is configured.
func (n Networks) IsZero() bool {
	return len(n.CIDRs) == 0 && len(n.Mapping) == 0 && len(n.VIPs) == 0
}

func (n Networks) Clone() Networks {
	return Networks{
		CIDRs:   copyStrings(n.CIDRs),
		Mapping: copyStrings(n.Mapping),
		VIPs:    copyStrings(n.VIPs),
	}
}

func (n Networks) flatten() map[string]interface{} {
	out := make(map[string]interface{}, len(n.CIDRs)+2)
	for k, v := range n.CIDRs {
		out[k] = v
	}
	if len(n.Mapping) > 0 {
		out[networksMappingKey] = n.Mapping
	}
	if len(n.VIPs) > 0 {
		out[networksVIPsKey] = n.VIPs
	}
	return out
}

func (n Networks) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.flatten())
}

func (n *Networks) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*n = Networks{}
	for k, v := range raw {
		switch k {
		case networksMappingKey:
			if err := json.Unmarshal(v, &n.Mapping); err != nil {
				return fmt.Errorf("networks.%s: %w", k, err)
			}
		case networksVIPsKey:
			if err := json.Unmarshal(v, &n.VIPs); err != nil {
				return fmt.Errorf("networks.%s: %w", k, err)
			}
		default:
			var cidr string
			if err := json.Unmarshal(v, &cidr); err != nil {
				return fmt.Errorf("networks.%s: %w", k, err)
			}
			if n.CIDRs == nil {
				n.CIDRs = make(map[string]string)
			}
			n.CIDRs[k] = cidr
		}
	}
	return nil
}

func (n Networks) MarshalYAML() (interface{}, error) {
	return n.flatten(), nil
}

func (n *Networks) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw map[string]interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*n = Networks{}
	for k, v := range raw {
		switch k {
		case networksMappingKey, networksVIPsKey:
			m, err := stringMap(v)
			if err != nil {
				return fmt.Errorf("networks.%s: %w", k, err)
			}
			if k == networksMappingKey {
				n.Mapping = m
			} else {
				n.VIPs = m
			}
		default:
			cidr, ok := v.(string)
			if !ok {
				return fmt.Errorf("networks.%s: expected a CIDR string, got %T", k, v)
			}
			if n.CIDRs == nil {
				n.CIDRs = make(map[string]string)
			}
			n.CIDRs[k] = cidr
		}
	}
	return nil
}

// stringMap converts a decoded yaml.v2 mapping into map[string]string.
func stringMap(v interface{}) (map[string]string, error) {
	out := map[string]string{}
	switch t := v.(type) {
	case nil:
		return out, nil
	case map[interface{}]interface{}:
		for k, vv := range t {
			out[fmt.Sprint(k)] = fmt.Sprint(vv)
		}
	case map[string]interface{}:
		for k, vv := range t {
			out[k] = fmt.Sprint(vv)
		}
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", v)
	}
	return out, nil
}
