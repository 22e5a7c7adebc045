package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/profzeller/p16-server-setup/internal/config"
	"github.com/profzeller/p16-server-setup/internal/firewall"
	"github.com/profzeller/p16-server-setup/internal/monitor"
	"github.com/profzeller/p16-server-setup/internal/netcfg"
	"github.com/profzeller/p16-server-setup/internal/services"
	"github.com/profzeller/p16-server-setup/internal/system"
	"github.com/profzeller/p16-server-setup/internal/ui"
)

// runMenu is the interactive entry point: a loop of huh selects that call
// the same code paths as the subcommands. Action failures print and return
// to the menu instead of exiting.
func runMenu(ctx context.Context, cfg *config.Config) error {
	fmt.Println()
	fmt.Println(ui.Bold("p16ctl") + " " + ui.Muted(version) + "  —  GPU server menu")

	for {
		var choice string
		form := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("What do you want to do?").
				Options(
					huh.NewOption("Install a service", "install"),
					huh.NewOption("Manage services", "manage"),
					huh.NewOption("Firewall & allowed IPs", "firewall"),
					huh.NewOption("Network configuration", "network"),
					huh.NewOption("GPU info & test", "gpu"),
					huh.NewOption("GPU monitor", "monitor"),
					huh.NewOption("Server status", "status"),
					huh.NewOption("Command cheat sheet", "commands"),
					huh.NewOption("Power settings", "power"),
					huh.NewOption("Exit", "exit"),
				).
				Value(&choice),
		)).WithTheme(huh.ThemeBase16())

		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}

		var err error
		switch choice {
		case "install":
			err = menuInstall(ctx, cfg)
		case "manage":
			err = menuManage(ctx, cfg)
		case "firewall":
			err = menuFirewall(ctx, cfg)
		case "network":
			err = menuNetwork(ctx, cfg)
		case "gpu":
			err = menuGPU(ctx)
		case "monitor":
			err = menuMonitor(ctx, cfg)
		case "status":
			err = runStatus(ctx, cfg)
			pause()
		case "commands":
			printCheatSheet()
			pause()
		case "power":
			err = menuPower(ctx)
		case "exit":
			fmt.Println("👋 Bye")
			return nil
		}

		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				continue
			}
			fmt.Println(ui.ErrorMsg("%v", err))
			pause()
		}
	}
}

// pause waits for Enter so table output is not immediately replaced by the
// next menu screen.
func pause() {
	fmt.Print(ui.Muted("\nPress Enter to return to the menu... "))
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
}

func menuInstall(ctx context.Context, cfg *config.Config) error {
	mgr := newServiceManager(cfg)

	options := make([]huh.Option[string], 0, len(services.Catalog())+1)
	for _, svc := range services.Catalog() {
		label := fmt.Sprintf("%s — %s (port %d)", svc.Name, svc.Description, svc.Port)
		if mgr.Installed(svc.Name) {
			label += "  [installed]"
		}
		options = append(options, huh.NewOption(label, svc.Name))
	}
	options = append(options, huh.NewOption("Back", ""))

	var name string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Which service?").
			Options(options...).
			Value(&name),
	)).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		return err
	}
	if name == "" {
		return nil
	}

	// A second install of the same service switches to managing it.
	if mgr.Installed(name) {
		fmt.Println(ui.InfoMsg("%s is already installed", name))
		return menuServiceActions(ctx, cfg, name)
	}

	svc, err := services.Lookup(name)
	if err != nil {
		return err
	}

	var model string
	if len(svc.ModelOptions) > 0 {
		if model, err = pickModel(svc); err != nil {
			return err
		}
	}

	var confirmed bool
	prompt := fmt.Sprintf("Install %s into %s and start it?", name, cfg.ServiceDir(name))
	confirmForm := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(prompt).Value(&confirmed),
	)).WithTheme(huh.ThemeBase16())
	if err := confirmForm.Run(); err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	err = mgr.Install(ctx, name, services.InstallOptions{Model: model, BootUnit: true})
	if err != nil {
		return err
	}
	fmt.Println(ui.SuccessMsg("%s installed and started on port %d", name, svc.Port))
	pause()
	return nil
}

func menuManage(ctx context.Context, cfg *config.Config) error {
	mgr := newServiceManager(cfg)

	var installed []string
	for _, name := range services.Names() {
		if mgr.Installed(name) {
			installed = append(installed, name)
		}
	}
	if len(installed) == 0 {
		fmt.Println(ui.InfoMsg("no services installed yet"))
		pause()
		return nil
	}

	options := make([]huh.Option[string], 0, len(installed)+1)
	for _, name := range installed {
		options = append(options, huh.NewOption(name, name))
	}
	options = append(options, huh.NewOption("Back", ""))

	var name string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Which service?").
			Options(options...).
			Value(&name),
	)).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	return menuServiceActions(ctx, cfg, name)
}

func menuServiceActions(ctx context.Context, cfg *config.Config, name string) error {
	mgr := newServiceManager(cfg)

	var action string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("%s — action", name)).
			Options(
				huh.NewOption("Status", "status"),
				huh.NewOption("Start", "start"),
				huh.NewOption("Stop", "stop"),
				huh.NewOption("Restart", "restart"),
				huh.NewOption("Update (pull repo and images)", "update"),
				huh.NewOption("Logs (follow)", "logs"),
				huh.NewOption("Remove", "remove"),
				huh.NewOption("Back", ""),
			).
			Value(&action),
	)).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		return err
	}

	switch action {
	case "":
		return nil
	case "status":
		st, err := mgr.Status(ctx, name)
		if err != nil {
			return err
		}
		fmt.Println(renderServiceTable([]services.Status{st}))
		pause()
	case "start":
		if err := mgr.Start(ctx, name); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s started", name))
	case "stop":
		if err := mgr.Stop(ctx, name); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s stopped", name))
	case "restart":
		if err := mgr.Restart(ctx, name); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s restarted", name))
	case "update":
		if err := mgr.Update(ctx, name); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s updated", name))
	case "logs":
		fmt.Println(ui.Muted("Ctrl+C returns to the menu"))
		logCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT)
		err := mgr.Logs(logCtx, name)
		stop()
		if err != nil && logCtx.Err() == nil {
			return err
		}
	case "remove":
		var confirmed bool
		prompt := fmt.Sprintf("Delete %s including downloaded models and volumes?", cfg.ServiceDir(name))
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().Title(prompt).Value(&confirmed),
		)).WithTheme(huh.ThemeBase16())
		if err := form.Run(); err != nil {
			return err
		}
		if !confirmed {
			return nil
		}
		if err := mgr.Remove(ctx, name); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s removed", name))
	}
	return nil
}

func menuFirewall(ctx context.Context, cfg *config.Config) error {
	m := newFirewallManager(cfg)

	var action string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Firewall").
			Options(
				huh.NewOption("Show status", "status"),
				huh.NewOption("Allow an IP or network", "allow"),
				huh.NewOption("Revoke an IP or network", "revoke"),
				huh.NewOption("Check what a source IP gets", "check"),
				huh.NewOption("Re-apply rules", "apply"),
				huh.NewOption("Fix Docker integration", "fix-docker"),
				huh.NewOption("Back", ""),
			).
			Value(&action),
	)).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		return err
	}

	switch action {
	case "":
		return nil
	case "status":
		out, err := m.Status(ctx)
		if err != nil {
			fmt.Println(ui.WarnMsg("ufw not reachable: %v", err))
		} else {
			fmt.Println(out)
		}
		if err := printAllowlist(m.AllowlistPath); err != nil {
			return err
		}
		pause()
	case "allow":
		var entry string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("IP or CIDR to allow").
				Placeholder("203.0.113.0/24").
				Validate(validateAllowEntry).
				Value(&entry),
		)).WithTheme(huh.ThemeBase16())
		if err := form.Run(); err != nil {
			return err
		}
		prefix, err := firewall.ParsePrefix(entry)
		if err != nil {
			return err
		}
		if err := m.Allow(ctx, prefix); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s may now reach the service ports", prefix))
	case "revoke":
		list, err := firewall.LoadAllowlist(m.AllowlistPath)
		if err != nil {
			return err
		}
		if len(list.Entries) == 0 {
			fmt.Println(ui.InfoMsg("allowlist is empty"))
			pause()
			return nil
		}
		options := make([]huh.Option[string], 0, len(list.Entries)+1)
		for _, p := range list.Sorted() {
			options = append(options, huh.NewOption(p.String(), p.String()))
		}
		options = append(options, huh.NewOption("Back", ""))
		var entry string
		form := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Revoke which entry?").
				Options(options...).
				Value(&entry),
		)).WithTheme(huh.ThemeBase16())
		if err := form.Run(); err != nil {
			return err
		}
		if entry == "" {
			return nil
		}
		prefix, err := firewall.ParsePrefix(entry)
		if err != nil {
			return err
		}
		if err := m.Revoke(ctx, prefix); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s revoked", prefix))
	case "check":
		var ip string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Source IP to check").
				Placeholder("203.0.113.7").
				Validate(validateIP).
				Value(&ip),
		)).WithTheme(huh.ThemeBase16())
		if err := form.Run(); err != nil {
			return err
		}
		source, err := netip.ParseAddr(ip)
		if err != nil {
			return err
		}
		verdict, rule, err := m.Check(source)
		if err != nil {
			return err
		}
		if verdict == firewall.Allowed {
			fmt.Println(ui.SuccessMsg("%s would be ALLOWED (%s)", source, describeRule(rule)))
		} else {
			fmt.Println(ui.ErrorMsg("%s would be DROPPED (%s)", source, describeRule(rule)))
		}
		pause()
	case "apply":
		if err := m.Apply(ctx); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("firewall rules applied"))
	case "fix-docker":
		if err := m.FixDocker(ctx); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("Docker firewall integration restored"))
	}
	return nil
}

func menuNetwork(ctx context.Context, cfg *config.Config) error {
	var action string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Network").
			Options(
				huh.NewOption("Show interfaces", "show"),
				huh.NewOption("Set a static address", "static"),
				huh.NewOption("Return to DHCP", "dhcp"),
				huh.NewOption("Back", ""),
			).
			Value(&action),
	)).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		return err
	}

	switch action {
	case "":
		return nil
	case "show":
		if err := networkShowCmd.RunE(networkShowCmd, nil); err != nil {
			return err
		}
		pause()
	case "static":
		var netCfg netcfg.StaticConfig
		if err := staticWizard(&netCfg); err != nil {
			return err
		}
		if err := netCfg.Validate(); err != nil {
			return err
		}
		var confirmed bool
		prompt := fmt.Sprintf("Assign %s to %s (gateway %s)? A wrong address can cut off SSH access.",
			netCfg.Address, netCfg.Interface, netCfg.Gateway)
		confirmForm := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().Title(prompt).Value(&confirmed),
		)).WithTheme(huh.ThemeBase16())
		if err := confirmForm.Run(); err != nil {
			return err
		}
		if !confirmed {
			return nil
		}
		if err := netcfg.ApplyStatic(ctx, newRunner(), netcfg.DefaultNetplanPath, netCfg); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("static address %s applied on %s", netCfg.Address, netCfg.Interface))
		if err := netcfg.VerifyGateway(netCfg.Gateway); err != nil {
			fmt.Println(ui.WarnMsg("gateway %s not answering pings: %v", netCfg.Gateway, err))
		} else {
			fmt.Println(ui.SuccessMsg("gateway %s reachable", netCfg.Gateway))
		}
		pause()
	case "dhcp":
		if !netcfg.StaticConfigured(netcfg.DefaultNetplanPath) {
			fmt.Println(ui.InfoMsg("no static configuration present, nothing to do"))
			pause()
			return nil
		}
		var confirmed bool
		confirmForm := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title("Remove the static address and return to DHCP? The server's IP may change.").
				Value(&confirmed),
		)).WithTheme(huh.ThemeBase16())
		if err := confirmForm.Run(); err != nil {
			return err
		}
		if !confirmed {
			return nil
		}
		if err := netcfg.RevertToDHCP(ctx, newRunner(), netcfg.DefaultNetplanPath); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("reverted to DHCP"))
	}
	return nil
}

func menuGPU(ctx context.Context) error {
	var action string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("GPU").
			Options(
				huh.NewOption("Show GPU info", "info"),
				huh.NewOption("Test the container GPU stack", "test"),
				huh.NewOption("Back", ""),
			).
			Value(&action),
	)).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		return err
	}

	switch action {
	case "":
		return nil
	case "info":
		if err := gpuInfoCmd.RunE(gpuInfoCmd, nil); err != nil {
			return err
		}
		pause()
	case "test":
		gpuTestCmd.SetContext(ctx)
		if err := runGpuTest(gpuTestCmd); err != nil {
			return err
		}
		pause()
	}
	return nil
}

func menuPower(ctx context.Context) error {
	if system.SleepDisabled() {
		fmt.Println(ui.SuccessMsg("sleep and suspend are disabled"))
	} else {
		fmt.Println(ui.WarnMsg("sleep targets are not masked, the server may suspend when idle"))
	}

	var confirmed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Re-apply the power policy (ignore lid and idle, mask sleep targets)?").
			Value(&confirmed),
	)).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	if err := system.DisableSleep(ctx, newRunner()); err != nil {
		return err
	}
	fmt.Println(ui.SuccessMsg("power policy applied"))
	return nil
}

func menuMonitor(ctx context.Context, cfg *config.Config) error {
	var record, web bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Record samples to "+cfg.MonitorLogPath()+"?").
			Value(&record),
		huh.NewConfirm().
			Title(fmt.Sprintf("Serve the localhost dashboard on port %d?", cfg.MonitorWebPort)).
			Value(&web),
	)).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		return err
	}

	monCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT)
	defer stop()

	return monitor.Run(monCtx, monitor.Options{
		Interval: time.Duration(cfg.MonitorInterval) * time.Second,
		Record:   record,
		LogPath:  cfg.MonitorLogPath(),
		Web:      web,
		WebPort:  cfg.MonitorWebPort,
	})
}
