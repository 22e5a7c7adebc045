package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	nvidiaToolkitKeyURL  = "https://nvidia.github.io/libnvidia-container/gpgkey"
	nvidiaToolkitListURL = "https://nvidia.github.io/libnvidia-container/stable/deb/nvidia-container-toolkit.list"
	nvidiaKeyringPath    = "/etc/apt/keyrings/nvidia-container-toolkit.asc"
	nvidiaListPath       = "/etc/apt/sources.list.d/nvidia-container-toolkit.list"
)

// DriverWorking reports whether the NVIDIA driver is installed and
// answering. Presence of the binary alone is not enough; on a box without
// a loaded kernel module nvidia-smi exits non-zero.
func DriverWorking(ctx context.Context, r Runner) bool {
	if !CommandExists("nvidia-smi") {
		return false
	}
	_, err := r.Output(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
	return err == nil
}

// InstallDriver installs the recommended NVIDIA driver via ubuntu-drivers.
// A reboot is required before the driver becomes usable.
func InstallDriver(ctx context.Context, r Runner) error {
	if err := AptInstall(ctx, r, "ubuntu-drivers-common"); err != nil {
		return err
	}
	if err := r.Run(ctx, "ubuntu-drivers", "autoinstall"); err != nil {
		return fmt.Errorf("failed to install NVIDIA driver: %w", err)
	}
	return nil
}

// SetupNvidiaToolkitRepository configures NVIDIA's apt repository for the
// container toolkit, following the official install documentation.
func SetupNvidiaToolkitRepository(ctx context.Context, r Runner) error {
	if err := os.MkdirAll(filepath.Dir(nvidiaKeyringPath), 0755); err != nil {
		return fmt.Errorf("failed to create keyrings directory: %w", err)
	}

	key, err := r.Output(ctx, "curl", "-fsSL", nvidiaToolkitKeyURL)
	if err != nil {
		return fmt.Errorf("failed to download NVIDIA toolkit GPG key: %w", err)
	}
	if err := os.WriteFile(nvidiaKeyringPath, []byte(key), 0644); err != nil {
		return fmt.Errorf("failed to write NVIDIA toolkit keyring: %w", err)
	}

	list, err := r.Output(ctx, "curl", "-fsSL", nvidiaToolkitListURL)
	if err != nil {
		return fmt.Errorf("failed to download NVIDIA toolkit source list: %w", err)
	}
	entry := strings.ReplaceAll(list, "deb https://",
		fmt.Sprintf("deb [signed-by=%s] https://", nvidiaKeyringPath))
	if err := os.WriteFile(nvidiaListPath, []byte(entry+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write NVIDIA toolkit apt source: %w", err)
	}

	return AptUpdate(ctx, r)
}

// InstallContainerToolkit installs nvidia-container-toolkit and registers
// the NVIDIA runtime with Docker.
func InstallContainerToolkit(ctx context.Context, r Runner) error {
	if err := AptInstall(ctx, r, "nvidia-container-toolkit"); err != nil {
		return err
	}
	if err := r.Run(ctx, "nvidia-ctk", "runtime", "configure", "--runtime=docker"); err != nil {
		return fmt.Errorf("failed to configure Docker NVIDIA runtime: %w", err)
	}
	if err := RestartUnit(ctx, r, "docker"); err != nil {
		return fmt.Errorf("failed to restart docker after runtime configure: %w", err)
	}
	return nil
}

// KernelModuleLoaded reports whether the named module shows up in
// /proc/modules.
func KernelModuleLoaded(module string) (bool, error) {
	data, err := os.ReadFile("/proc/modules")
	if err != nil {
		return false, fmt.Errorf("failed to read /proc/modules: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == module {
			return true, nil
		}
	}
	return false, nil
}
