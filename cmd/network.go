package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/profzeller/p16-server-setup/internal/netcfg"
	"github.com/profzeller/p16-server-setup/internal/ui"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Show and configure the server's network setup",
	Long: `Inspect physical interfaces and switch the primary interface between
DHCP and a static address. Static configuration is written to
` + netcfg.DefaultNetplanPath + ` and applied with netplan.`,
}

var networkShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List physical interfaces and the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ifaces, err := netcfg.ListInterfaces()
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(ifaces))
		for _, iface := range ifaces {
			speed := "unknown"
			if iface.SpeedMbps > 0 {
				speed = fmt.Sprintf("%d Mb/s", iface.SpeedMbps)
			}
			rows = append(rows, []string{iface.Name, iface.MAC, iface.OperState, speed})
		}
		fmt.Println(ui.Table([]string{"Interface", "MAC", "State", "Speed"}, rows))
		fmt.Println()

		if netcfg.StaticConfigured(netcfg.DefaultNetplanPath) {
			fmt.Println(ui.InfoMsg("static configuration active (%s)", netcfg.DefaultNetplanPath))
		} else {
			fmt.Println(ui.InfoMsg("no static configuration, interfaces use DHCP"))
		}
		return nil
	},
}

var networkStaticCmd = &cobra.Command{
	Use:   "static",
	Short: "Assign a static address to an interface",
	Long: `Write a netplan file with a static address and apply it. Without flags an
interactive wizard asks for the values.

Examples:
  p16ctl network static --interface eno1 --address 192.168.1.50/24 --gateway 192.168.1.1
  p16ctl network static`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}

		iface, _ := cmd.Flags().GetString("interface")
		address, _ := cmd.Flags().GetString("address")
		gateway, _ := cmd.Flags().GetString("gateway")
		dns, _ := cmd.Flags().GetStringSlice("dns")

		cfg := netcfg.StaticConfig{
			Interface:   iface,
			Address:     address,
			Gateway:     gateway,
			Nameservers: dns,
		}

		if cfg.Interface == "" || cfg.Address == "" || cfg.Gateway == "" {
			if !ui.IsInteractive() {
				return fmt.Errorf("missing flags and no interactive terminal; set --interface, --address and --gateway")
			}
			if err := staticWizard(&cfg); err != nil {
				return err
			}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		assumeYes, _ := cmd.Flags().GetBool("yes")
		ok, err := confirmOrYes(assumeYes,
			fmt.Sprintf("Assign %s to %s (gateway %s)? A wrong address can cut off SSH access.",
				cfg.Address, cfg.Interface, cfg.Gateway))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}

		if err := netcfg.ApplyStatic(cmd.Context(), newRunner(), netcfg.DefaultNetplanPath, cfg); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("static address %s applied on %s", cfg.Address, cfg.Interface))

		if err := netcfg.VerifyGateway(cfg.Gateway); err != nil {
			fmt.Println(ui.WarnMsg("gateway %s not answering pings: %v", cfg.Gateway, err))
		} else {
			fmt.Println(ui.SuccessMsg("gateway %s reachable", cfg.Gateway))
		}
		return nil
	},
}

var networkDHCPCmd = &cobra.Command{
	Use:   "dhcp",
	Short: "Remove the static configuration and return to DHCP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}

		if !netcfg.StaticConfigured(netcfg.DefaultNetplanPath) {
			fmt.Println(ui.InfoMsg("no static configuration present, nothing to do"))
			return nil
		}

		assumeYes, _ := cmd.Flags().GetBool("yes")
		ok, err := confirmOrYes(assumeYes, "Remove the static address and return to DHCP? The server's IP may change.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}

		if err := netcfg.RevertToDHCP(cmd.Context(), newRunner(), netcfg.DefaultNetplanPath); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("reverted to DHCP"))
		return nil
	},
}

func init() {
	networkCmd.AddCommand(networkShowCmd)
	networkCmd.AddCommand(networkStaticCmd)
	networkCmd.AddCommand(networkDHCPCmd)

	networkStaticCmd.Flags().String("interface", "", "Interface name (e.g. eno1)")
	networkStaticCmd.Flags().String("address", "", "Static address in CIDR form (e.g. 192.168.1.50/24)")
	networkStaticCmd.Flags().String("gateway", "", "Default gateway address")
	networkStaticCmd.Flags().StringSlice("dns", []string{"1.1.1.1", "8.8.8.8"}, "Nameservers")
	networkStaticCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	networkDHCPCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")
}

// staticWizard fills the missing fields interactively.
func staticWizard(cfg *netcfg.StaticConfig) error {
	ifaces, err := netcfg.ListInterfaces()
	if err != nil {
		return err
	}
	if len(ifaces) == 0 {
		return fmt.Errorf("no physical interfaces found")
	}

	options := make([]huh.Option[string], 0, len(ifaces))
	for _, iface := range ifaces {
		label := fmt.Sprintf("%s (%s, %s)", iface.Name, iface.MAC, iface.OperState)
		options = append(options, huh.NewOption(label, iface.Name))
	}

	var dnsInput string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Interface").
			Options(options...).
			Value(&cfg.Interface),
		huh.NewInput().
			Title("Address (CIDR)").
			Placeholder("192.168.1.50/24").
			Validate(validateCIDR).
			Value(&cfg.Address),
		huh.NewInput().
			Title("Gateway").
			Placeholder("192.168.1.1").
			Validate(validateIP).
			Value(&cfg.Gateway),
		huh.NewInput().
			Title("Nameservers (comma separated)").
			Value(&dnsInput),
	)).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		return err
	}

	if dnsInput != "" {
		cfg.Nameservers = nil
		for _, ns := range strings.Split(dnsInput, ",") {
			if ns = strings.TrimSpace(ns); ns != "" {
				cfg.Nameservers = append(cfg.Nameservers, ns)
			}
		}
	}
	return nil
}
