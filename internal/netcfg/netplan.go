// Package netcfg generates the server's netplan configuration and verifies
// connectivity after it is applied. It writes YAML for netplan to consume,
// it does not program interfaces itself.
package netcfg

import (
	"context"
	"fmt"
	"net/netip"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/profzeller/p16-server-setup/internal/system"
)

// DefaultNetplanPath is the file owned by this tool. The 00- prefix makes it
// sort before Ubuntu's installer-generated config.
const DefaultNetplanPath = "/etc/netplan/00-static-config.yaml"

// StaticConfig is the user's answer set for a static IP assignment.
type StaticConfig struct {
	Interface   string
	Address     string // CIDR, e.g. 192.168.1.50/24
	Gateway     string
	Nameservers []string
}

// Validate checks the addresses semantically, not just by shape.
func (c *StaticConfig) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("interface cannot be empty")
	}

	prefix, err := netip.ParsePrefix(c.Address)
	if err != nil {
		return fmt.Errorf("invalid address '%s' (want CIDR like 192.168.1.50/24): %w", c.Address, err)
	}

	gw, err := netip.ParseAddr(c.Gateway)
	if err != nil {
		return fmt.Errorf("invalid gateway '%s': %w", c.Gateway, err)
	}
	if !prefix.Masked().Contains(gw) {
		return fmt.Errorf("gateway %s is outside the %s network", gw, prefix.Masked())
	}

	if len(c.Nameservers) == 0 {
		return fmt.Errorf("at least one nameserver is required")
	}
	for _, ns := range c.Nameservers {
		if _, err := netip.ParseAddr(ns); err != nil {
			return fmt.Errorf("invalid nameserver '%s': %w", ns, err)
		}
	}
	return nil
}

// Document mirrors netplan's YAML schema for the subset we generate.
type Document struct {
	Network Network `yaml:"network"`
}

type Network struct {
	Version   int                 `yaml:"version"`
	Renderer  string              `yaml:"renderer,omitempty"`
	Ethernets map[string]Ethernet `yaml:"ethernets"`
}

type Ethernet struct {
	DHCP4       bool         `yaml:"dhcp4"`
	Addresses   []string     `yaml:"addresses,omitempty"`
	Routes      []Route      `yaml:"routes,omitempty"`
	Nameservers *Nameservers `yaml:"nameservers,omitempty"`
}

type Route struct {
	To  string `yaml:"to"`
	Via string `yaml:"via"`
}

type Nameservers struct {
	Addresses []string `yaml:"addresses"`
}

// Generate renders the netplan YAML for a static configuration.
func Generate(cfg StaticConfig) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	doc := Document{
		Network: Network{
			Version:  2,
			Renderer: "networkd",
			Ethernets: map[string]Ethernet{
				cfg.Interface: {
					DHCP4:     false,
					Addresses: []string{cfg.Address},
					Routes: []Route{
						{To: "default", Via: cfg.Gateway},
					},
					Nameservers: &Nameservers{Addresses: cfg.Nameservers},
				},
			},
		},
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal netplan config: %w", err)
	}
	return data, nil
}

// ApplyStatic writes the generated YAML and runs netplan apply. netplan
// refuses world-readable config, hence 0600.
func ApplyStatic(ctx context.Context, r system.Runner, path string, cfg StaticConfig) error {
	data, err := Generate(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := r.Run(ctx, "netplan", "apply"); err != nil {
		return fmt.Errorf("netplan apply failed: %w", err)
	}
	return nil
}

// RevertToDHCP removes the static config file and re-applies netplan so the
// installer-generated DHCP config takes over again. A missing file is fine.
func RevertToDHCP(ctx context.Context, r system.Runner, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	if err := r.Run(ctx, "netplan", "apply"); err != nil {
		return fmt.Errorf("netplan apply failed: %w", err)
	}
	return nil
}

// StaticConfigured reports whether the tool's netplan file exists.
func StaticConfigured(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
