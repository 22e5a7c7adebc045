package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/profzeller/p16-server-setup/internal/config"
	"github.com/profzeller/p16-server-setup/internal/firewall"
	"github.com/profzeller/p16-server-setup/internal/hardware"
	"github.com/profzeller/p16-server-setup/internal/setup"
	"github.com/profzeller/p16-server-setup/internal/sysinfo"
	"github.com/profzeller/p16-server-setup/internal/system"
	"github.com/profzeller/p16-server-setup/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show host, GPU, service and firewall status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runStatus(cmd.Context(), cfg)
	},
}

func runStatus(ctx context.Context, cfg *config.Config) error {
	info := sysinfo.Collect(ctx, newRunner())

	fmt.Println(ui.Header("Host"))
	pairs := []ui.Pair{
		ui.KV("Hostname", info.Hostname),
		ui.KV("OS", info.OSRelease),
		ui.KV("Kernel", info.Kernel),
		ui.KV("Uptime", sysinfo.FormatUptime(info.Uptime)),
		ui.KV("Load", fmt.Sprintf("%.2f %.2f %.2f", info.Load1, info.Load5, info.Load15)),
		ui.KV("Memory", sysinfo.FormatMemory(info.MemAvailKiB, info.MemTotalKiB)),
		ui.KV("Disk /", info.RootDiskUsage),
	}
	if setup.Done(cfg.MarkerPath()) {
		pairs = append(pairs, ui.KV("Setup", "complete"))
	} else {
		pairs = append(pairs, ui.KV("Setup", ui.Warn("not run yet")))
	}
	fmt.Print(ui.KeyValues("", pairs...))
	fmt.Println()

	fmt.Println(ui.Header("Daemons"))
	fmt.Print(ui.KeyValues("",
		ui.KV("docker", activeLabel(info.DockerActive)),
		ui.KV("ufw", activeLabel(info.UFWActive)),
		ui.KV("ssh", activeLabel(info.SSHActive)),
	))
	fmt.Println()

	fmt.Println(ui.Header("GPUs"))
	if driver, cuda, err := hardware.DriverVersions(); err != nil {
		fmt.Println(ui.WarnMsg("driver not reachable: %v", err))
	} else {
		fmt.Print(ui.KeyValues("", ui.KV("Driver", driver), ui.KV("CUDA", cuda)))
		if samples, err := hardware.SampleGpus(); err == nil {
			for _, g := range samples {
				fmt.Printf("  %d: %s  %d%%  %d/%d MiB  %d°C\n",
					g.Index, g.Name, g.UtilizationPct, g.MemoryUsedMiB, g.MemoryTotalMiB, g.TemperatureC)
			}
		}
	}
	fmt.Println()

	fmt.Println(ui.Header("Services"))
	statuses, err := newServiceManager(cfg).StatusAll(ctx)
	if err != nil {
		fmt.Println(ui.WarnMsg("service status unavailable: %v", err))
	} else {
		fmt.Println(renderServiceTable(statuses))
	}
	fmt.Println()

	fmt.Println(ui.Header("Firewall"))
	if firewall.HasBlock(firewall.DefaultAfterRulesPath) {
		fmt.Println(ui.SuccessMsg("Docker integration block present"))
	} else {
		fmt.Println(ui.ErrorMsg("Docker integration block missing (p16ctl firewall apply)"))
	}
	list, err := firewall.LoadAllowlist(cfg.AllowlistPath())
	if err != nil {
		fmt.Println(ui.WarnMsg("allowlist unreadable: %v", err))
	} else {
		fmt.Println(ui.InfoMsg("%d allowed network(s)", len(list.Entries)))
	}

	if cfg.NTPServer != "" {
		// Clock drift breaks TLS to the model registries, surface it here.
		if status, err := system.CheckClock(cfg.NTPServer); err == nil && !status.Healthy() {
			fmt.Println(ui.WarnMsg("clock offset %s against %s", status.Offset.Round(time.Millisecond), status.Server))
		}
	}
	return nil
}

func activeLabel(active bool) string {
	if active {
		return ui.Success("active")
	}
	return ui.Warn("inactive")
}
