package system

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// unitData holds data for the boot unit template.
type unitData struct {
	Name       string // service name from the catalog
	ServiceDir string // directory holding the compose file
}

var unitTmpl = template.Must(template.New("unit").Parse(`[Unit]
Description=GPU service {{.Name}} (docker compose)
Requires=docker.service
After=docker.service network-online.target
Wants=network-online.target

[Service]
Type=oneshot
RemainAfterExit=yes
WorkingDirectory={{.ServiceDir}}
ExecStart=/usr/bin/docker compose up -d
ExecStop=/usr/bin/docker compose down
TimeoutStartSec=0

[Install]
WantedBy=multi-user.target
`))

// BootUnitPath returns the systemd unit path for a named service.
func BootUnitPath(name string) string {
	return filepath.Join("/etc/systemd/system", fmt.Sprintf("gpu-service-%s.service", name))
}

// RenderBootUnit renders the systemd unit that brings a service's compose
// stack up at boot.
func RenderBootUnit(name, serviceDir string) (string, error) {
	var buf bytes.Buffer
	if err := unitTmpl.Execute(&buf, unitData{Name: name, ServiceDir: serviceDir}); err != nil {
		return "", fmt.Errorf("failed to render unit for %s: %w", name, err)
	}
	return buf.String(), nil
}

// InstallBootUnit writes the boot unit for a service and enables it.
func InstallBootUnit(ctx context.Context, r Runner, name, serviceDir string) error {
	unit, err := RenderBootUnit(name, serviceDir)
	if err != nil {
		return err
	}

	path := BootUnitPath(name)
	if err := os.WriteFile(path, []byte(unit), 0644); err != nil {
		return fmt.Errorf("failed to write unit file %s: %w", path, err)
	}

	if err := DaemonReload(ctx, r); err != nil {
		return err
	}
	return EnableUnit(ctx, r, filepath.Base(path))
}

// RemoveBootUnit disables and deletes the boot unit for a service. A missing
// unit is not an error.
func RemoveBootUnit(ctx context.Context, r Runner, name string) error {
	path := BootUnitPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	// Disable before delete so systemd drops the WantedBy symlink.
	if err := r.Run(ctx, "systemctl", "disable", "--now", filepath.Base(path)); err != nil {
		fmt.Printf("⚠️  Warning: failed to disable %s: %v\n", filepath.Base(path), err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove unit file %s: %w", path, err)
	}
	return DaemonReload(ctx, r)
}

// DaemonReload asks systemd to re-read unit files.
func DaemonReload(ctx context.Context, r Runner) error {
	return r.Run(ctx, "systemctl", "daemon-reload")
}

// EnableUnit enables and starts a unit.
func EnableUnit(ctx context.Context, r Runner, unit string) error {
	return r.Run(ctx, "systemctl", "enable", "--now", unit)
}

// RestartUnit restarts a unit.
func RestartUnit(ctx context.Context, r Runner, unit string) error {
	return r.Run(ctx, "systemctl", "restart", unit)
}

// ReloadUnit reloads a unit's configuration without a full restart.
func ReloadUnit(ctx context.Context, r Runner, unit string) error {
	return r.Run(ctx, "systemctl", "reload", unit)
}

// UnitActive reports whether a unit is currently active.
func UnitActive(ctx context.Context, r Runner, unit string) bool {
	out, err := r.Output(ctx, "systemctl", "is-active", unit)
	if err != nil {
		return false
	}
	return bytes.Equal(bytes.TrimSpace([]byte(out)), []byte("active"))
}
