package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	dockerKeyringPath = "/etc/apt/keyrings/docker.asc"
	dockerListPath    = "/etc/apt/sources.list.d/docker.list"
	dockerKeyURL      = "https://download.docker.com/linux/ubuntu/gpg"
)

// AptUpdate refreshes the package index.
func AptUpdate(ctx context.Context, r Runner) error {
	return r.Run(ctx, "apt-get", "update")
}

// AptInstall installs packages non-interactively. Already-installed packages
// are a no-op for apt, so the call is safe to repeat.
func AptInstall(ctx context.Context, r Runner, packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	args := append([]string{"install", "-y"}, packages...)
	if err := r.Run(ctx, "apt-get", args...); err != nil {
		return fmt.Errorf("failed to install %s: %w", strings.Join(packages, " "), err)
	}
	return nil
}

// SetupDockerRepository installs Docker's apt keyring and repository entry for
// the running Ubuntu release. It mirrors the steps from the official install
// documentation and overwrites any previous keyring/list files.
func SetupDockerRepository(ctx context.Context, r Runner) error {
	if err := os.MkdirAll(filepath.Dir(dockerKeyringPath), 0755); err != nil {
		return fmt.Errorf("failed to create keyrings directory: %w", err)
	}

	key, err := r.Output(ctx, "curl", "-fsSL", dockerKeyURL)
	if err != nil {
		return fmt.Errorf("failed to download Docker GPG key: %w", err)
	}
	if err := os.WriteFile(dockerKeyringPath, []byte(key), 0644); err != nil {
		return fmt.Errorf("failed to write Docker keyring: %w", err)
	}

	arch, err := r.Output(ctx, "dpkg", "--print-architecture")
	if err != nil {
		return fmt.Errorf("failed to detect architecture: %w", err)
	}

	codename, err := ubuntuCodename()
	if err != nil {
		return err
	}

	entry := fmt.Sprintf("deb [arch=%s signed-by=%s] https://download.docker.com/linux/ubuntu %s stable\n",
		strings.TrimSpace(arch), dockerKeyringPath, codename)
	if err := os.WriteFile(dockerListPath, []byte(entry), 0644); err != nil {
		return fmt.Errorf("failed to write Docker apt source: %w", err)
	}

	return AptUpdate(ctx, r)
}

// ubuntuCodename reads the release codename from /etc/os-release.
func ubuntuCodename() (string, error) {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return "", fmt.Errorf("failed to read /etc/os-release: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "VERSION_CODENAME=") {
			return strings.Trim(strings.TrimPrefix(line, "VERSION_CODENAME="), `"`), nil
		}
	}
	return "", fmt.Errorf("VERSION_CODENAME not found in /etc/os-release")
}
