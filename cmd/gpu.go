package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/profzeller/p16-server-setup/internal/hardware"
	"github.com/profzeller/p16-server-setup/internal/system"
	"github.com/profzeller/p16-server-setup/internal/ui"
)

// cudaTestImage is small and exists for every driver generation we target.
const cudaTestImage = "nvidia/cuda:12.4.1-base-ubuntu22.04"

var gpuCmd = &cobra.Command{
	Use:   "gpu",
	Short: "GPU information and stack validation",
	Long:  `Inspect the installed GPUs and validate that containers can use them.`,
}

var gpuInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show driver version and GPU details",
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, cuda, err := hardware.DriverVersions()
		if err != nil {
			return fmt.Errorf("NVIDIA driver not reachable: %w (run 'p16ctl setup' or reboot after driver installation)", err)
		}
		fmt.Print(ui.KeyValues("",
			ui.KV("Driver", driver),
			ui.KV("CUDA", cuda),
		))
		fmt.Println()

		infos, err := hardware.GetGpuInfo()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println(ui.WarnMsg("no GPUs detected"))
			return nil
		}

		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, []string{
				fmt.Sprintf("%d", info.Index),
				info.Name,
				info.UUID,
				fmt.Sprintf("%d MiB", info.MemoryTotalMiB),
			})
		}
		fmt.Println(ui.Table([]string{"GPU", "Name", "UUID", "Memory"}, rows))
		return nil
	},
}

var gpuTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Validate the full GPU container stack",
	Long: `Check every layer needed to serve models from containers: the NVIDIA
driver, the kernel module, NVML, the container toolkit and Docker, then
run nvidia-smi inside a CUDA container as the end-to-end proof.

Examples:
  p16ctl gpu test`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGpuTest(cmd)
	},
}

func init() {
	gpuCmd.AddCommand(gpuInfoCmd)
	gpuCmd.AddCommand(gpuTestCmd)
}

func runGpuTest(cmd *cobra.Command) error {
	fmt.Println("🔍 Running GPU stack checks...")
	fmt.Println()

	fmt.Println("--- Driver ---")
	if !system.CommandExists("nvidia-smi") {
		return fmt.Errorf("nvidia-smi not found. Run 'p16ctl setup' to install the NVIDIA driver")
	}
	fmt.Println("✅ nvidia-smi found")

	loaded, err := system.KernelModuleLoaded("nvidia")
	if err != nil {
		return err
	}
	if !loaded {
		return fmt.Errorf("nvidia kernel module not loaded. Reboot after driver installation")
	}
	fmt.Println("✅ nvidia kernel module loaded")

	count, err := hardware.GetGpuCount()
	if err != nil {
		return fmt.Errorf("NVML check failed: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("no NVIDIA GPUs detected")
	}
	fmt.Printf("✅ %d GPU(s) detected\n", count)

	fmt.Println()
	fmt.Println("--- Container runtime ---")
	if !system.CommandExists("docker") {
		return fmt.Errorf("docker not found. Run 'p16ctl setup' to install Docker")
	}
	fmt.Println("✅ docker found")

	r := newRunner()
	if !system.UnitActive(cmd.Context(), r, "docker") {
		return fmt.Errorf("docker daemon is not running. Start it with 'systemctl start docker'")
	}
	fmt.Println("✅ docker daemon running")

	if !system.CommandExists("nvidia-ctk") {
		return fmt.Errorf("nvidia-ctk not found. Run 'p16ctl setup' to install the NVIDIA container toolkit")
	}
	fmt.Println("✅ NVIDIA container toolkit found")

	fmt.Println()
	fmt.Println("--- End-to-end ---")
	fmt.Println("📦 Running nvidia-smi in a CUDA container (may pull the image first)...")
	if err := r.Run(cmd.Context(), "docker", "run", "--rm", "--gpus", "all", cudaTestImage, "nvidia-smi"); err != nil {
		return fmt.Errorf("GPU container test failed: %w", err)
	}

	fmt.Println()
	fmt.Println("🎉 GPU stack is ready!")
	fmt.Println()
	fmt.Println("📋 Next Steps:")
	fmt.Println("  • Install a service: p16ctl service install ollama")
	fmt.Println("  • Watch utilization: p16ctl monitor")
	return nil
}
