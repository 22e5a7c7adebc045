// Package sysinfo collects the host-level facts shown by status views:
// memory, load, uptime, disk and OS release.
package sysinfo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/procfs"

	"github.com/profzeller/p16-server-setup/internal/system"
)

// HostInfo is the host summary rendered by `p16ctl status`.
type HostInfo struct {
	Hostname       string
	OSRelease      string
	Kernel         string
	Uptime         time.Duration
	Load1          float64
	Load5          float64
	Load15         float64
	MemTotalKiB    uint64
	MemAvailKiB    uint64
	RootDiskUsage  string // e.g. "312G/916G (36%)"
	DockerActive   bool
	UFWActive      bool
	SSHActive      bool
}

// Collect gathers the host summary. Individual probes that fail leave their
// fields zeroed rather than failing the whole status view.
func Collect(ctx context.Context, r system.Runner) HostInfo {
	info := HostInfo{}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	info.OSRelease = osRelease()
	info.Kernel = kernelVersion()

	if fs, err := procfs.NewDefaultFS(); err == nil {
		if load, err := fs.LoadAvg(); err == nil {
			info.Load1 = load.Load1
			info.Load5 = load.Load5
			info.Load15 = load.Load15
		}

		if mem, err := fs.Meminfo(); err == nil {
			if mem.MemTotal != nil {
				info.MemTotalKiB = *mem.MemTotal
			}
			if mem.MemAvailable != nil {
				info.MemAvailKiB = *mem.MemAvailable
			}
		}

		if stat, err := fs.Stat(); err == nil && stat.BootTime > 0 {
			info.Uptime = time.Since(time.Unix(int64(stat.BootTime), 0)).Truncate(time.Second)
		}
	}

	info.RootDiskUsage = rootDiskUsage(ctx, r)
	info.DockerActive = system.UnitActive(ctx, r, "docker")
	info.UFWActive = system.UnitActive(ctx, r, "ufw")
	info.SSHActive = system.UnitActive(ctx, r, "ssh")

	return info
}

// osRelease reads PRETTY_NAME from /etc/os-release.
func osRelease() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return "unknown"
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "PRETTY_NAME=") {
			return strings.Trim(strings.TrimPrefix(line, "PRETTY_NAME="), `"`)
		}
	}
	return "unknown"
}

// kernelVersion reads /proc/sys/kernel/osrelease, which needs no exec.
func kernelVersion() string {
	data, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(data))
}

// rootDiskUsage shells out to df for the root filesystem, the same numbers an
// operator would see.
func rootDiskUsage(ctx context.Context, r system.Runner) string {
	out, err := r.Output(ctx, "df", "-h", "/")
	if err != nil {
		return "unknown"
	}
	return ParseDfOutput(out)
}

// ParseDfOutput extracts "used/size (pct)" from `df -h` output for the first
// data row.
func ParseDfOutput(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return "unknown"
	}

	// Filesystem Size Used Avail Use% Mounted
	fields := strings.Fields(lines[1])
	if len(fields) < 5 {
		return "unknown"
	}
	return fmt.Sprintf("%s/%s (%s)", fields[2], fields[1], fields[4])
}

// FormatMemory renders KiB totals as "avail GiB free of total GiB".
func FormatMemory(availKiB, totalKiB uint64) string {
	if totalKiB == 0 {
		return "unknown"
	}
	toGiB := func(kib uint64) float64 { return float64(kib) / (1024 * 1024) }
	return fmt.Sprintf("%.1f GiB free of %.1f GiB", toGiB(availKiB), toGiB(totalKiB))
}

// FormatUptime renders a duration as "3d 4h 12m".
func FormatUptime(d time.Duration) string {
	if d <= 0 {
		return "unknown"
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
