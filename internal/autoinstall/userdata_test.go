package autoinstall

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testSeed() Seed {
	return Seed{
		Hostname:     "gpu-server",
		Username:     "admin",
		PasswordHash: "$6$rounds=4096$saltsalt$hashhashhash",
	}
}

func TestGenerateUserData(t *testing.T) {
	seed := testSeed()
	seed.AllowedIPs = []netip.Prefix{
		netip.MustParsePrefix("203.0.113.0/24"),
		netip.MustParsePrefix("198.51.100.7/32"),
	}

	out, err := GenerateUserData(seed)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "#cloud-config\n"), "cloud-init requires the header comment")

	var doc Document
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))

	ai := doc.Autoinstall
	assert.Equal(t, 1, ai.Version)
	assert.Equal(t, "en_US.UTF-8", ai.Locale)
	assert.Equal(t, "us", ai.Keyboard.Layout)
	assert.Equal(t, "gpu-server", ai.Identity.Hostname)
	assert.Equal(t, "admin", ai.Identity.Username)
	assert.Equal(t, seed.PasswordHash, ai.Identity.Password)
	assert.True(t, ai.SSH.InstallServer)
	assert.Equal(t, "lvm", ai.Storage.Layout.Name)
	assert.Contains(t, ai.Packages, "openssh-server")

	require.Len(t, ai.LateCommands, 3)
	assert.Equal(t, "mkdir -p /target/etc/gpu-server", ai.LateCommands[0])
	assert.Equal(t, "echo '203.0.113.0/24' >> /target/etc/gpu-server/allowed-ips.conf", ai.LateCommands[1])
	assert.Equal(t, "echo '198.51.100.7/32' >> /target/etc/gpu-server/allowed-ips.conf", ai.LateCommands[2])
}

func TestGenerateUserDataPasswordLogin(t *testing.T) {
	out, err := GenerateUserData(testSeed())
	require.NoError(t, err)

	var doc Document
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))

	assert.True(t, doc.Autoinstall.SSH.AllowPW, "no key on the seed means password SSH stays possible")
	assert.Empty(t, doc.Autoinstall.SSH.AuthorizedKeys)
}

func TestGenerateUserDataKeyDisablesPasswordSSH(t *testing.T) {
	seed := testSeed()
	seed.AuthorizedKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAA admin@laptop"

	out, err := GenerateUserData(seed)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))

	assert.False(t, doc.Autoinstall.SSH.AllowPW)
	assert.Equal(t, []string{seed.AuthorizedKey}, doc.Autoinstall.SSH.AuthorizedKeys)
}

func TestGenerateUserDataNoAllowedIPs(t *testing.T) {
	out, err := GenerateUserData(testSeed())
	require.NoError(t, err)

	var doc Document
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))

	// The state directory is still created so the first setup run finds it.
	assert.Equal(t, []string{"mkdir -p /target/etc/gpu-server"}, doc.Autoinstall.LateCommands)
}

func TestSeedValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Seed)
		wantErr string
	}{
		{name: "valid", mutate: func(*Seed) {}},
		{name: "no hostname", mutate: func(s *Seed) { s.Hostname = "" }, wantErr: "hostname"},
		{name: "no username", mutate: func(s *Seed) { s.Username = "" }, wantErr: "username"},
		{name: "no password hash", mutate: func(s *Seed) { s.PasswordHash = "" }, wantErr: "password hash"},
		{
			name:    "locked password without key",
			mutate:  func(s *Seed) { s.PasswordHash = "!" },
			wantErr: "locked password requires an SSH authorized key",
		},
		{
			name: "locked password with key",
			mutate: func(s *Seed) {
				s.PasswordHash = "!"
				s.AuthorizedKey = "ssh-ed25519 AAAA admin@laptop"
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seed := testSeed()
			tc.mutate(&seed)

			err := seed.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestGenerateUserDataRejectsBadSeed(t *testing.T) {
	seed := testSeed()
	seed.Hostname = ""

	_, err := GenerateUserData(seed)
	assert.Error(t, err)
}
