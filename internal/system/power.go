package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const logindDropInPath = "/etc/systemd/logind.conf.d/60-gpu-server.conf"

// sleepTargets are masked so a headless box never suspends under us.
var sleepTargets = []string{
	"sleep.target",
	"suspend.target",
	"hibernate.target",
	"hybrid-sleep.target",
}

// DisableSleep configures logind to ignore lid and idle events and masks the
// systemd sleep targets. Meant for headless servers that must stay up.
func DisableSleep(ctx context.Context, r Runner) error {
	if err := os.MkdirAll(filepath.Dir(logindDropInPath), 0755); err != nil {
		return fmt.Errorf("failed to create logind.conf.d: %w", err)
	}

	content := `# Managed by p16ctl. Keep the server awake when headless.
[Login]
HandleLidSwitch=ignore
HandleLidSwitchExternalPower=ignore
HandleLidSwitchDocked=ignore
IdleAction=ignore
`
	if err := os.WriteFile(logindDropInPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write logind drop-in: %w", err)
	}

	args := append([]string{"mask"}, sleepTargets...)
	if err := r.Run(ctx, "systemctl", args...); err != nil {
		return fmt.Errorf("failed to mask sleep targets: %w", err)
	}

	if err := RestartUnit(ctx, r, "systemd-logind"); err != nil {
		// Restarting logind can briefly drop the session on some desktops;
		// the new settings still apply on next login, so warn and continue.
		fmt.Printf("⚠️  Warning: failed to restart systemd-logind: %v\n", err)
	}
	return nil
}

// SleepDisabled reports whether the sleep targets are masked. A masked unit
// is a /dev/null symlink under /etc/systemd/system, so no systemctl call is
// needed.
func SleepDisabled() bool {
	target, err := os.Readlink("/etc/systemd/system/sleep.target")
	if err != nil {
		return false
	}
	return target == "/dev/null"
}
