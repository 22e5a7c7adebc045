package netcfg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/profzeller/p16-server-setup/internal/system"
)

func validConfig() StaticConfig {
	return StaticConfig{
		Interface:   "enp3s0",
		Address:     "192.168.1.50/24",
		Gateway:     "192.168.1.1",
		Nameservers: []string{"1.1.1.1", "8.8.8.8"},
	}
}

func TestStaticConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*StaticConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*StaticConfig) {}},
		{
			name:    "missing interface",
			mutate:  func(c *StaticConfig) { c.Interface = "" },
			wantErr: "interface",
		},
		{
			name:    "address without mask",
			mutate:  func(c *StaticConfig) { c.Address = "192.168.1.50" },
			wantErr: "invalid address",
		},
		{
			name:    "garbage gateway",
			mutate:  func(c *StaticConfig) { c.Gateway = "not-an-ip" },
			wantErr: "invalid gateway",
		},
		{
			name:    "gateway outside network",
			mutate:  func(c *StaticConfig) { c.Gateway = "10.0.0.1" },
			wantErr: "outside the 192.168.1.0/24 network",
		},
		{
			name:    "no nameservers",
			mutate:  func(c *StaticConfig) { c.Nameservers = nil },
			wantErr: "nameserver",
		},
		{
			name:    "bad nameserver",
			mutate:  func(c *StaticConfig) { c.Nameservers = []string{"1.1.1.1", "dns.example"} },
			wantErr: "invalid nameserver",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestGenerateNetplanYAML(t *testing.T) {
	data, err := Generate(validConfig())
	require.NoError(t, err)

	var doc Document
	require.NoError(t, yaml.Unmarshal(data, &doc))

	assert.Equal(t, 2, doc.Network.Version)
	assert.Equal(t, "networkd", doc.Network.Renderer)

	eth, ok := doc.Network.Ethernets["enp3s0"]
	require.True(t, ok, "interface key missing: %s", data)
	assert.False(t, eth.DHCP4)
	assert.Equal(t, []string{"192.168.1.50/24"}, eth.Addresses)
	require.Len(t, eth.Routes, 1)
	assert.Equal(t, Route{To: "default", Via: "192.168.1.1"}, eth.Routes[0])
	require.NotNil(t, eth.Nameservers)
	assert.Equal(t, []string{"1.1.1.1", "8.8.8.8"}, eth.Nameservers.Addresses)
}

func TestGenerateRejectsInvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway = "10.0.0.1"

	_, err := Generate(cfg)
	assert.Error(t, err)
}

func TestApplyStaticWritesFileAndApplies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00-static-config.yaml")

	r := new(system.MockRunner)
	r.On("Run", "netplan", []string{"apply"}).Return(nil)

	require.NoError(t, ApplyStatic(context.Background(), r, path, validConfig()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	// netplan refuses world-readable config files.
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	assert.True(t, StaticConfigured(path))
	r.AssertExpectations(t)
}

func TestApplyStaticRejectsBadConfigBeforeWriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00-static-config.yaml")

	r := new(system.MockRunner)
	cfg := validConfig()
	cfg.Address = "not-a-cidr"

	err := ApplyStatic(context.Background(), r, path, cfg)
	require.Error(t, err)
	assert.NoFileExists(t, path)
	assert.Empty(t, r.CommandLines())
}

func TestRevertToDHCP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00-static-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network: {}\n"), 0600))

	r := new(system.MockRunner)
	r.On("Run", "netplan", []string{"apply"}).Return(nil)

	require.NoError(t, RevertToDHCP(context.Background(), r, path))
	assert.NoFileExists(t, path)
	assert.False(t, StaticConfigured(path))
}

func TestRevertToDHCPMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00-static-config.yaml")

	r := new(system.MockRunner)
	r.On("Run", "netplan", []string{"apply"}).Return(nil)

	assert.NoError(t, RevertToDHCP(context.Background(), r, path), "reverting twice must not fail")
	r.AssertExpectations(t)
}
