package cmd

import (
	"bufio"
	"fmt"
	"net/netip"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/profzeller/p16-server-setup/internal/config"
	"github.com/profzeller/p16-server-setup/internal/firewall"
	"github.com/profzeller/p16-server-setup/internal/services"
	"github.com/profzeller/p16-server-setup/internal/system"
)

// ensureLinux rejects platforms this tool cannot provision.
func ensureLinux() error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("p16ctl manages Ubuntu servers and only runs on linux (got %s)", runtime.GOOS)
	}
	return nil
}

// requireRoot fails with a hint instead of half-applying changes.
func requireRoot() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("this command needs root privileges; re-run it with sudo")
	}
	return nil
}

// elevateIfNeeded re-executes the current invocation under sudo. On success
// the child's exit code becomes ours and this process never returns.
func elevateIfNeeded() error {
	if os.Geteuid() == 0 {
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("could not get executable path: %w", err)
	}

	fmt.Println("🔐 Root privileges required, re-running with sudo...")
	sudo := exec.Command("sudo", append([]string{exe}, os.Args[1:]...)...)
	sudo.Stdout = os.Stdout
	sudo.Stderr = os.Stderr
	sudo.Stdin = os.Stdin

	if err := sudo.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("failed to re-run with sudo: %w", err)
	}
	os.Exit(0)
	return nil
}

// askForConfirmation prompts the user for a yes/no confirmation
func askForConfirmation(prompt string) (bool, error) {
	fmt.Printf("%s (y/N): ", prompt)

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// confirmOrYes honors a command's --yes flag before prompting.
func confirmOrYes(assumeYes bool, prompt string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	return askForConfirmation(prompt)
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig()
}

func newRunner() system.Runner {
	return system.NewRunner()
}

func newServiceManager(cfg *config.Config) *services.Manager {
	return services.NewManager(newRunner(), cfg.ServicesDir)
}

func newFirewallManager(cfg *config.Config) *firewall.Manager {
	return firewall.NewManager(newRunner(), cfg.AllowlistPath(), cfg.SSHPort, services.Ports())
}

// Form field validators.

func validateCIDR(s string) error {
	if _, err := netip.ParsePrefix(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("enter an address like 192.168.1.50/24")
	}
	return nil
}

func validateIP(s string) error {
	if _, err := netip.ParseAddr(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("enter an IP address like 192.168.1.1")
	}
	return nil
}

// validateAllowEntry accepts what the firewall allowlist accepts: a bare
// IPv4 address or an IPv4 CIDR.
func validateAllowEntry(s string) error {
	if _, err := firewall.ParsePrefix(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("enter an IPv4 address or CIDR like 203.0.113.0/24")
	}
	return nil
}
