// Package autoinstall builds unattended Ubuntu Server install media: a
// cloud-init NoCloud seed plus a repacked ISO that boots straight into the
// installer.
package autoinstall

import (
	"fmt"
	"net/netip"

	"gopkg.in/yaml.v3"
)

// Document is the top-level user-data structure. Subiquity expects the
// whole configuration under an "autoinstall" key.
type Document struct {
	Autoinstall UserData `yaml:"autoinstall"`
}

// UserData mirrors the subset of the subiquity autoinstall schema we
// generate.
type UserData struct {
	Version      int      `yaml:"version"`
	Locale       string   `yaml:"locale,omitempty"`
	Keyboard     Keyboard `yaml:"keyboard"`
	Identity     Identity `yaml:"identity"`
	SSH          SSH      `yaml:"ssh"`
	Packages     []string `yaml:"packages,omitempty"`
	Storage      Storage  `yaml:"storage"`
	LateCommands []string `yaml:"late-commands,omitempty"`
}

type Keyboard struct {
	Layout string `yaml:"layout"`
}

type Identity struct {
	Hostname string `yaml:"hostname"`
	Username string `yaml:"username"`
	// Password is a crypt(3) hash, never plaintext.
	Password string `yaml:"password"`
}

type SSH struct {
	InstallServer  bool     `yaml:"install-server"`
	AuthorizedKeys []string `yaml:"authorized-keys,omitempty"`
	AllowPW        bool     `yaml:"allow-pw"`
}

type Storage struct {
	Layout StorageLayout `yaml:"layout"`
}

type StorageLayout struct {
	Name string `yaml:"name"`
}

// Seed describes the unattended install to generate.
type Seed struct {
	Hostname      string
	Username      string
	PasswordHash  string
	AuthorizedKey string
	// AllowedIPs are preseeded into the firewall allowlist so the first
	// setup run opens the right doors.
	AllowedIPs []netip.Prefix
}

// Validate checks the seed for the fields subiquity refuses to work
// without.
func (s Seed) Validate() error {
	if s.Hostname == "" {
		return fmt.Errorf("hostname cannot be empty")
	}
	if s.Username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if s.PasswordHash == "" {
		return fmt.Errorf("password hash cannot be empty")
	}
	if s.AuthorizedKey == "" && s.PasswordHash == lockedPasswordHash {
		return fmt.Errorf("a locked password requires an SSH authorized key")
	}
	return nil
}

// lockedPasswordHash is the crypt value that disables password login.
const lockedPasswordHash = "!"

// seedPackages are installed by subiquity so the first boot does not need
// network access for the basics.
var seedPackages = []string{"curl", "git", "openssh-server"}

// GenerateUserData renders the #cloud-config user-data for the seed.
func GenerateUserData(seed Seed) (string, error) {
	if err := seed.Validate(); err != nil {
		return "", err
	}

	doc := Document{
		Autoinstall: UserData{
			Version:  1,
			Locale:   "en_US.UTF-8",
			Keyboard: Keyboard{Layout: "us"},
			Identity: Identity{
				Hostname: seed.Hostname,
				Username: seed.Username,
				Password: seed.PasswordHash,
			},
			SSH: SSH{
				InstallServer: true,
				AllowPW:       seed.AuthorizedKey == "",
			},
			Packages:     seedPackages,
			Storage:      Storage{Layout: StorageLayout{Name: "lvm"}},
			LateCommands: lateCommands(seed.AllowedIPs),
		},
	}
	if seed.AuthorizedKey != "" {
		doc.Autoinstall.SSH.AuthorizedKeys = []string{seed.AuthorizedKey}
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data: %w", err)
	}

	return "#cloud-config\n" + string(data), nil
}

// lateCommands preseed the state directory of the installed system. They
// run in the installer environment where /target is the new root.
func lateCommands(allowed []netip.Prefix) []string {
	cmds := []string{"mkdir -p /target/etc/gpu-server"}
	for _, p := range allowed {
		cmds = append(cmds, fmt.Sprintf("echo '%s' >> /target/etc/gpu-server/allowed-ips.conf", p))
	}
	return cmds
}
