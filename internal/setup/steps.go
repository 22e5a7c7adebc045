package setup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/profzeller/p16-server-setup/internal/system"
)

// basePackages are installed before anything else. ubuntu-drivers-common
// is pulled in later only when a driver install is actually needed.
var basePackages = []string{
	"curl",
	"git",
	"ca-certificates",
	"gnupg",
	"ufw",
	"htop",
	"net-tools",
	"openssh-server",
}

// dockerPackages come from Docker's own repository, not Ubuntu's.
var dockerPackages = []string{
	"docker-ce",
	"docker-ce-cli",
	"containerd.io",
	"docker-buildx-plugin",
	"docker-compose-plugin",
}

// Steps returns the provisioning sequence in execution order.
func (s *Setup) Steps() []Step {
	return []Step{
		{
			Name: "Base packages",
			Check: func(ctx context.Context) (bool, string) {
				for _, cmd := range []string{"curl", "git", "ufw", "htop", "sshd"} {
					if !system.CommandExists(cmd) {
						return false, ""
					}
				}
				return true, "Base packages already present"
			},
			Run: func(ctx context.Context) error {
				if err := system.AptUpdate(ctx, s.Runner); err != nil {
					return err
				}
				return system.AptInstall(ctx, s.Runner, basePackages...)
			},
		},
		{
			Name: "NVIDIA driver",
			Check: func(ctx context.Context) (bool, string) {
				if system.DriverWorking(ctx, s.Runner) {
					return true, "NVIDIA driver already answering nvidia-smi"
				}
				return false, ""
			},
			Run: func(ctx context.Context) error {
				if err := system.InstallDriver(ctx, s.Runner); err != nil {
					return err
				}
				s.RebootRequired = true
				fmt.Println("💡 NVIDIA driver installed; reboot before running GPU workloads.")
				return nil
			},
		},
		{
			Name: "Docker engine",
			Check: func(ctx context.Context) (bool, string) {
				if system.CommandExists("docker") && system.UnitActive(ctx, s.Runner, "docker") {
					return true, "Docker already installed and running"
				}
				return false, ""
			},
			Run: func(ctx context.Context) error {
				if err := system.SetupDockerRepository(ctx, s.Runner); err != nil {
					return err
				}
				if err := system.AptInstall(ctx, s.Runner, dockerPackages...); err != nil {
					return err
				}
				return system.EnableUnit(ctx, s.Runner, "docker")
			},
		},
		{
			Name: "NVIDIA container toolkit",
			Check: func(ctx context.Context) (bool, string) {
				if system.CommandExists("nvidia-ctk") {
					return true, "NVIDIA container toolkit already installed"
				}
				return false, ""
			},
			Run: func(ctx context.Context) error {
				if err := system.SetupNvidiaToolkitRepository(ctx, s.Runner); err != nil {
					return err
				}
				return system.InstallContainerToolkit(ctx, s.Runner)
			},
		},
		{
			Name: "SSH hardening",
			Check: func(ctx context.Context) (bool, string) {
				if _, err := os.Stat(system.SSHDropInPath()); err == nil {
					return true, "sshd drop-in already in place"
				}
				return false, ""
			},
			Run: func(ctx context.Context) error {
				return system.HardenSSH(ctx, s.Runner, system.SSHSettings{
					Port:                   s.Config.SSHPort,
					PasswordAuthentication: s.Config.SSHPasswordAuth,
				})
			},
		},
		{
			Name: "Firewall",
			Run: func(ctx context.Context) error {
				m := s.firewallManager()
				if err := m.EnsureBaseline(ctx); err != nil {
					return err
				}
				return m.Apply(ctx)
			},
		},
		{
			Name: "Power settings",
			Check: func(ctx context.Context) (bool, string) {
				if system.SleepDisabled() {
					return true, "Sleep targets already masked"
				}
				return false, ""
			},
			Run: func(ctx context.Context) error {
				return system.DisableSleep(ctx, s.Runner)
			},
		},
		{
			Name: "Clock sync",
			Run: func(ctx context.Context) error {
				status, err := system.CheckClock(s.Config.NTPServer)
				if err != nil {
					// No network or blocked NTP should not abort setup.
					fmt.Printf("⚠️  Warning: clock check failed: %v\n", err)
					return nil
				}
				if !status.Healthy() {
					fmt.Printf("⚠️  Warning: system clock is off by %s (server %s); TLS and apt may misbehave\n",
						status.Offset.Round(time.Millisecond), status.Server)
					return nil
				}
				fmt.Printf("🕐 Clock offset %s against %s\n", status.Offset.Round(time.Millisecond), status.Server)
				return nil
			},
		},
	}
}
