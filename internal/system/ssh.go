package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const sshDropInPath = "/etc/ssh/sshd_config.d/60-gpu-server.conf"

// SSHSettings controls the hardening drop-in written for sshd.
type SSHSettings struct {
	Port                   int
	PasswordAuthentication bool
}

// renderSSHDropIn produces the sshd_config drop-in content.
func renderSSHDropIn(set SSHSettings) string {
	passwordAuth := "no"
	if set.PasswordAuthentication {
		passwordAuth = "yes"
	}

	return fmt.Sprintf(`# Managed by p16ctl. Edits will be overwritten on the next setup run.
Port %d
PermitRootLogin no
PasswordAuthentication %s
X11Forwarding no
ClientAliveInterval 120
ClientAliveCountMax 3
`, set.Port, passwordAuth)
}

// HardenSSH writes an sshd drop-in with the server's access policy and
// reloads sshd. Root login is always disabled; everything else in
// sshd_config stays untouched.
func HardenSSH(ctx context.Context, r Runner, set SSHSettings) error {
	if err := os.MkdirAll(filepath.Dir(sshDropInPath), 0755); err != nil {
		return fmt.Errorf("failed to create sshd_config.d: %w", err)
	}

	if err := os.WriteFile(sshDropInPath, []byte(renderSSHDropIn(set)), 0644); err != nil {
		return fmt.Errorf("failed to write sshd drop-in: %w", err)
	}

	// Ubuntu ships the daemon as "ssh"; reload keeps existing sessions alive.
	if err := ReloadUnit(ctx, r, "ssh"); err != nil {
		return fmt.Errorf("failed to reload sshd: %w", err)
	}
	return nil
}

// SSHDropInPath exposes the drop-in location for status output.
func SSHDropInPath() string {
	return sshDropInPath
}
