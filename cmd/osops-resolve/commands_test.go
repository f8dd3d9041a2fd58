package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osops-utils/pkg/db"
	"osops-utils/pkg/discovery"
	"osops-utils/pkg/errs"
	"osops-utils/pkg/model"
	"osops-utils/pkg/registry"
)

func holder(name, addr string) model.Node {
	return model.Node{
		Name:        name,
		Environment: "prod",
		Roles:       []string{"keystone"},
		Networks:    model.Networks{CIDRs: map[string]string{"management": "172.16.0.0/16"}},
		Interfaces: []model.Interface{{
			Name:      "eth0",
			Addresses: []model.InterfaceAddress{{Address: addr, Family: model.FamilyInet, PrefixLen: 24}},
		}},
		Services: map[string]map[string]model.ServiceConfig{
			"keystone": {"admin": {Network: "management", Port: 35357, Path: "/v2.0"}},
		},
		Attributes: map[string]interface{}{"keystone": map[interface{}]interface{}{"region": "RegionOne"}},
	}
}

func newApp(t *testing.T, self model.Node, others ...model.Node) (*app, *bytes.Buffer) {
	t.Helper()
	log, _ := test.NewNullLogger()
	res := discovery.New(&self, registry.NewMemoryStore(others...), discovery.WithLogger(log))
	var out bytes.Buffer
	return &app{res: res, prov: &db.Provisioner{Resolver: res, Log: log}, out: &out, errOut: &bytes.Buffer{}}, &out
}

func TestLocalAddressCommands(t *testing.T) {
	t.Parallel()

	a, out := newApp(t, holder("ks1", "172.16.10.1"))
	require.NoError(t, a.run(context.Background(), "local-address", []string{"management"}))
	require.NoError(t, a.run(context.Background(), "interface", []string{"management"}))
	require.NoError(t, a.run(context.Background(), "interface", []string{"localhost"}))
	assert.Equal(t, "172.16.10.1\neth0\n127.0.0.1\n", out.String())

	err := a.run(context.Background(), "local-address", []string{"-quiet", "nonet"})
	assert.ErrorIs(t, err, errs.ErrNetworkNotFound)
}

func TestAccessCommand(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	self := model.Node{Name: "client", Environment: "prod", VIPs: map[string]string{"keystone-admin": "172.16.10.10"}}
	a, out := newApp(t, self, holder("ks1", "172.16.10.1"), holder("ks2", "172.16.10.2"))
	require.NoError(t, a.run(ctx, "access", []string{"keystone", "keystone", "admin"}))
	var ep model.Endpoint
	require.NoError(t, json.Unmarshal(out.Bytes(), &ep))
	assert.Equal(t, "http://172.16.10.10:35357/v2.0", ep.URI)

	out.Reset()
	require.NoError(t, a.run(ctx, "search", []string{"-kinds", "role", "keystone"}))
	assert.Equal(t, "ks1\nks2\n", out.String())

	out.Reset()
	require.NoError(t, a.run(ctx, "count", []string{"keystone"}))
	assert.Equal(t, "2\n", out.String())

	out.Reset()
	require.NoError(t, a.run(ctx, "role-ips", []string{"keystone", "management"}))
	assert.Equal(t, "172.16.10.1\n172.16.10.2\n", out.String())

	out.Reset()
	require.NoError(t, a.run(ctx, "settings", []string{"role", "keystone", "keystone"}))
	assert.JSONEq(t, `{"region":"RegionOne"}`, out.String())

	assert.ErrorIs(t, a.run(ctx, "access", []string{"glance", "glance", "api"}), errNoResult)
	assert.ErrorIs(t, a.run(ctx, "access", []string{"keystone", "keystone"}), errUsage)
	assert.ErrorIs(t, a.run(ctx, "access", []string{"-kinds", "flavor", "keystone", "keystone", "admin"}), errUsage)
	assert.ErrorIs(t, a.run(ctx, "settings", []string{"flavor", "x", "y"}), errUsage)
	assert.ErrorIs(t, a.run(ctx, "nope", nil), errUsage)
	assert.ErrorIs(t, a.run(ctx, "database", []string{"mysql"}), errNoResult)
	assert.ErrorIs(t, a.run(ctx, "create-db", []string{"postgresql", "nova", "nova", "pw"}), errNoResult)
}
