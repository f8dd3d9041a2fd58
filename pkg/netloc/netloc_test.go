package netloc

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osops-utils/pkg/errs"
	"osops-utils/pkg/model"
)

func testNode() *model.Node {
	return &model.Node{
		Name: "node1",
		Interfaces: []model.Interface{{
			Name: "eth0",
			Addresses: []model.InterfaceAddress{
				{Address: "172.16.10.1", Family: model.FamilyInet, PrefixLen: 24},
				{Address: "21DA:00D3:0000:2F3B:02AA:00FF:FE28:9C5A", Family: model.FamilyInet6, PrefixLen: 64},
			},
		}},
	}
}

func TestReservedNetworks(t *testing.T) {
	t.Parallel()

	for _, node := range []*model.Node{nil, {}, testNode()} {
		iface, addr, err := InterfaceAndAddress("all", node, Options{})
		require.NoError(t, err)
		assert.Equal(t, "", iface)
		assert.Equal(t, "0.0.0.0", addr)

		addr, err = Address("localhost", node, Options{})
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", addr)

		iface, err = Interface("all", node, Options{})
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", iface)
	}
}

func TestInterfaceAndAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		networks  model.Networks
		network   string
		wantIface string
		wantAddr  string
	}{
		{
			name:      "inet4 network",
			networks:  model.Networks{CIDRs: map[string]string{"management": "172.16.0.0/16"}},
			network:   "management",
			wantIface: "eth0",
			wantAddr:  "172.16.10.1",
		},
		{
			name:      "inet6 network",
			networks:  model.Networks{CIDRs: map[string]string{"network": "21DA:00D3:0000:2F3B:02AA:00FF::/32"}},
			network:   "network",
			wantIface: "eth0",
			wantAddr:  "21DA:00D3:0000:2F3B:02AA:00FF:FE28:9C5A",
		},
		{
			name: "mapped network",
			networks: model.Networks{
				CIDRs:   map[string]string{"management": "172.16.0.0/16"},
				Mapping: map[string]string{"nova": "management"},
			},
			network:   "nova",
			wantIface: "eth0",
			wantAddr:  "172.16.10.1",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			node := testNode()
			node.Networks = tc.networks

			iface, addr, err := InterfaceAndAddress(tc.network, node, Options{})
			require.NoError(t, err)
			assert.Equal(t, tc.wantIface, iface)
			assert.Equal(t, tc.wantAddr, addr)
		})
	}
}

func TestMappingIsSingleLevel(t *testing.T) {
	t.Parallel()

	node := testNode()
	node.Networks = model.Networks{
		CIDRs:   map[string]string{"management": "172.16.0.0/16"},
		Mapping: map[string]string{"public": "nova", "nova": "management"},
	}
	_, _, err := InterfaceAndAddress("public", node, Options{Quiet: true})
	assert.True(t, errors.Is(err, errs.ErrNetworkNotFound))
}

func TestFirstMatchInStoredOrder(t *testing.T) {
	t.Parallel()

	node := &model.Node{
		Name:     "node1",
		Networks: model.Networks{CIDRs: map[string]string{"management": "10.0.0.0/8"}},
		Interfaces: []model.Interface{
			{Name: "lo", Addresses: []model.InterfaceAddress{{Address: "127.0.0.1", Family: model.FamilyInet, PrefixLen: 8}}},
			{Name: "eth1", Addresses: []model.InterfaceAddress{
				{Address: "fe80::1%eth1", Family: model.FamilyInet6, PrefixLen: 64},
				{Address: "10.2.0.5", Family: model.FamilyInet, PrefixLen: 16},
			}},
			{Name: "eth0", Addresses: []model.InterfaceAddress{{Address: "10.1.0.5", Family: model.FamilyInet, PrefixLen: 16}}},
		},
	}
	iface, addr, err := InterfaceAndAddress("management", node, Options{})
	require.NoError(t, err)
	assert.Equal(t, "eth1", iface)
	assert.Equal(t, "10.2.0.5", addr)
}

func TestHostMaskAddressesAreExcluded(t *testing.T) {
	t.Parallel()

	node := &model.Node{
		Name: "node1",
		Networks: model.Networks{CIDRs: map[string]string{
			"v4": "172.16.0.0/16",
			"v6": "2001:db8::/32",
		}},
		Interfaces: []model.Interface{{
			Name: "lo",
			Addresses: []model.InterfaceAddress{
				{Address: "172.16.10.1", Family: model.FamilyInet, PrefixLen: 32},
				{Address: "2001:db8::1", Family: model.FamilyInet6, PrefixLen: 128},
				{Address: "172.16.10.2", Family: "lladdr", PrefixLen: 24},
			},
		}},
	}
	for _, network := range []string{"v4", "v6"} {
		_, _, err := InterfaceAndAddress(network, node, Options{Quiet: true})
		assert.True(t, errors.Is(err, errs.ErrAddressNotFound), network)
	}
}

func TestMissingNetworkIsLogged(t *testing.T) {
	t.Parallel()

	log, hook := test.NewNullLogger()

	_, _, err := InterfaceAndAddress("nonet", &model.Node{Name: "bare"}, Options{Log: log})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNetworkNotFound))
	assert.Contains(t, err.Error(), "can't find network nonet")
	require.Len(t, hook.AllEntries(), 1)
	assert.Contains(t, hook.LastEntry().Message, "nonet")

	hook.Reset()
	_, _, err = InterfaceAndAddress("nonet", &model.Node{Name: "bare"}, Options{Log: log, Quiet: true})
	assert.True(t, errors.Is(err, errs.ErrNetworkNotFound))
	assert.Empty(t, hook.AllEntries())
}

func TestNoAddressOnNetwork(t *testing.T) {
	t.Parallel()

	log, hook := test.NewNullLogger()

	node := testNode()
	node.Networks = model.Networks{CIDRs: map[string]string{"network": "10.10.0.0/16"}}
	_, err := Address("network", node, Options{Log: log})
	assert.True(t, errors.Is(err, errs.ErrAddressNotFound))
	assert.Contains(t, err.Error(), "can't find address on network network")
	require.Len(t, hook.AllEntries(), 1)

	node.Interfaces = []model.Interface{{Name: "eth0"}}
	_, err = Address("network", node, Options{Quiet: true})
	assert.True(t, errors.Is(err, errs.ErrAddressNotFound))
}

func TestInvalidCIDR(t *testing.T) {
	t.Parallel()

	node := testNode()
	node.Networks = model.Networks{CIDRs: map[string]string{"broken": "not-a-cidr"}}
	_, _, err := InterfaceAndAddress("broken", node, Options{})
	require.Error(t, err)
	assert.False(t, errs.Resolution(err))
}

func TestParsePrefix(t *testing.T) {
	t.Parallel()

	p, err := ParsePrefix("172.16.10.7/16")
	require.NoError(t, err)
	assert.Equal(t, "172.16.0.0/16", p.String())

	p, err = ParsePrefix("10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3/32", p.String())
}
