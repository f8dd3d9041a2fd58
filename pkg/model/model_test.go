package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

const nodeJSON = `{
  "name": "ks1",
  "environment": "prod",
  "roles": ["keystone"],
  "networks": {
    "management": "172.16.0.0/16",
    "mapping": {"admin": "management"},
    "vips": {"keystone": "172.16.0.10"}
  },
  "interfaces": [{"name": "eth0", "addresses": [{"address": "172.16.10.1", "family": "inet", "prefixlen": 24}]}],
  "services": {"keystone": {"admin": {"network": "management", "port": 35357}}},
  "external-vips": {"keystone-admin": "203.0.113.5"},
  "attributes": {"mysql": {"server_root_password": "pw"}}
}`

const nodeYAML = `
name: ks1
environment: prod
roles: [keystone]
networks:
  management: 172.16.0.0/16
  mapping:
    admin: management
  vips:
    keystone: 172.16.0.10
interfaces:
  - name: eth0
    addresses:
      - {address: 172.16.10.1, family: inet, prefixlen: 24}
services:
  keystone:
    admin: {network: management, port: 35357}
external-vips:
  keystone-admin: 203.0.113.5
attributes:
  mysql:
    server_root_password: pw
`

func checkDecodedNode(t *testing.T, n *Node) {
	t.Helper()
	assert.Equal(t, "ks1", n.Name)
	assert.True(t, n.HasRole("keystone"))
	assert.False(t, n.HasRecipe("keystone"))
	assert.Equal(t, map[string]string{"management": "172.16.0.0/16"}, n.Networks.CIDRs)
	assert.Equal(t, "management", n.Networks.Canonical("admin"))
	assert.Equal(t, "public", n.Networks.Canonical("public"))
	vip, ok := n.Networks.VIP("keystone")
	assert.True(t, ok)
	assert.Equal(t, "172.16.0.10", vip)
	svc, ok := n.Service("keystone", "admin")
	require.True(t, ok)
	assert.Equal(t, 35357, svc.Port)
	assert.Equal(t, "203.0.113.5", n.ExternalVIPs["keystone-admin"])
	assert.Equal(t, "pw", n.Setting("mysql.server_root_password"))
}

func TestNodeJSON(t *testing.T) {
	t.Parallel()

	var n Node
	require.NoError(t, json.Unmarshal([]byte(nodeJSON), &n))
	checkDecodedNode(t, &n)

	b, err := json.Marshal(n)
	require.NoError(t, err)
	var again Node
	require.NoError(t, json.Unmarshal(b, &again))
	assert.Equal(t, n.Networks, again.Networks)
}

func TestNodeYAML(t *testing.T) {
	t.Parallel()

	var n Node
	require.NoError(t, yaml.Unmarshal([]byte(nodeYAML), &n))
	checkDecodedNode(t, &n)

	var bad Node
	assert.Error(t, yaml.Unmarshal([]byte("networks: {management: [1, 2]}"), &bad))
}

func TestGetPath(t *testing.T) {
	t.Parallel()

	doc := map[string]interface{}{
		"a": map[string]interface{}{"b": map[interface{}]interface{}{"c": 3}},
		"s": "leaf",
	}
	assert.Equal(t, 3, GetPath(doc, []string{"a", "b", "c"}))
	assert.Nil(t, GetPath(doc, []string{"a", "x"}))
	assert.Nil(t, GetPath(doc, []string{"s", "deeper"}))
	assert.Equal(t, doc, GetPath(doc, nil))
	assert.Nil(t, (*Node)(nil).Setting("a"))
}

func TestCloneSharesNothing(t *testing.T) {
	t.Parallel()

	var n Node
	require.NoError(t, json.Unmarshal([]byte(nodeJSON), &n))
	c := n.Clone()

	c.Roles[0] = "changed"
	c.Networks.CIDRs["management"] = "10.0.0.0/8"
	c.Interfaces[0].Addresses[0].Address = "10.0.0.1"
	c.Services["keystone"]["admin"] = ServiceConfig{}
	c.ExternalVIPs["keystone-admin"] = "x"
	c.Attributes["mysql"].(map[string]interface{})["server_root_password"] = "x"

	checkDecodedNode(t, &n)
	assert.Equal(t, "172.16.10.1", n.Interfaces[0].Addresses[0].Address)
}

func TestHostMask(t *testing.T) {
	t.Parallel()

	assert.True(t, InterfaceAddress{Family: FamilyInet, PrefixLen: 32}.HostMask())
	assert.True(t, InterfaceAddress{Family: FamilyInet6, PrefixLen: 128}.HostMask())
	assert.False(t, InterfaceAddress{Family: FamilyInet, PrefixLen: 24}.HostMask())
	assert.False(t, InterfaceAddress{Family: "lladdr", PrefixLen: 32}.HostMask())
}

func TestEndpointComposeURI(t *testing.T) {
	t.Parallel()

	ep := &Endpoint{Scheme: "http", Host: "2001:db8::1", Port: 8774, Path: "/v2"}
	assert.Equal(t, "http://[2001:db8::1]:8774/v2", ep.ComposeURI())
	assert.True(t, (*Endpoint)(nil).IsEmpty())
	assert.True(t, (&Endpoint{}).IsEmpty())
	assert.False(t, ep.IsEmpty())
}
