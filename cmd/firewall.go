package cmd

import (
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/profzeller/p16-server-setup/internal/firewall"
	"github.com/profzeller/p16-server-setup/internal/ui"
)

var firewallCmd = &cobra.Command{
	Use:   "firewall",
	Short: "Manage the UFW policy and the Docker integration",
	Long: `Manage which source networks may reach the AI service ports.

Docker publishes container ports by writing its own iptables rules, which
bypass UFW entirely. These commands maintain a FILTERS chain inside
DOCKER-USER (spliced into /etc/ufw/after.rules) so the allowlist applies
to containers too.`,
}

var firewallStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show UFW status, the integration block and the allowlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := newFirewallManager(cfg)

		out, err := m.Status(cmd.Context())
		if err != nil {
			fmt.Println(ui.WarnMsg("ufw not reachable: %v", err))
		} else {
			fmt.Println(ui.Header("UFW"))
			fmt.Println(out)
		}

		fmt.Println(ui.Header("Docker integration"))
		if firewall.HasBlock(m.RulesPath) {
			fmt.Println(ui.SuccessMsg("integration block present in %s", m.RulesPath))
		} else {
			fmt.Println(ui.ErrorMsg("integration block missing, run 'p16ctl firewall apply'"))
		}
		fmt.Println()

		return printAllowlist(m.AllowlistPath)
	},
}

var firewallApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Regenerate the Docker integration block and reload UFW",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newFirewallManager(cfg).Apply(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("firewall rules applied"))
		return nil
	},
}

var firewallAllowCmd = &cobra.Command{
	Use:   "allow <ip|cidr>",
	Short: "Grant a source network access to the service ports",
	Long: `Add an IPv4 address or CIDR to the allowlist. Bare addresses are treated
as /32. The host-level UFW rules and the Docker integration are updated
together.

Examples:
  p16ctl firewall allow 203.0.113.7
  p16ctl firewall allow 198.51.100.0/24`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		prefix, err := firewall.ParsePrefix(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newFirewallManager(cfg).Allow(cmd.Context(), prefix); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s may now reach the service ports", prefix))
		return nil
	},
}

var firewallRevokeCmd = &cobra.Command{
	Use:   "revoke <ip|cidr>",
	Short: "Remove a source network from the allowlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		prefix, err := firewall.ParsePrefix(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newFirewallManager(cfg).Revoke(cmd.Context(), prefix); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s revoked", prefix))
		return nil
	},
}

var firewallListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the allowed source networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return printAllowlist(cfg.AllowlistPath())
	},
}

var firewallCheckCmd = &cobra.Command{
	Use:   "check <ip>",
	Short: "Predict whether a source IP would reach the service ports",
	Long: `Evaluate the generated rule chain for a source address without touching
the live firewall. Useful before granting or revoking access.

Examples:
  p16ctl firewall check 203.0.113.7
  p16ctl firewall check 10.0.0.5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := netip.ParseAddr(args[0])
		if err != nil {
			return fmt.Errorf("invalid IP address %q: %w", args[0], err)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		verdict, rule, err := newFirewallManager(cfg).Check(source)
		if err != nil {
			return err
		}

		if verdict == firewall.Allowed {
			fmt.Println(ui.SuccessMsg("%s would be ALLOWED (%s)", source, describeRule(rule)))
		} else {
			fmt.Println(ui.ErrorMsg("%s would be DROPPED (%s)", source, describeRule(rule)))
			fmt.Printf("💡 Grant access with: p16ctl firewall allow %s\n", source)
		}
		return nil
	},
}

var firewallFixDockerCmd = &cobra.Command{
	Use:   "fix-docker",
	Short: "Re-apply the integration and restart Docker",
	Long: `Docker engine upgrades recreate the DOCKER-USER chain and drop the jump
into FILTERS, leaving published ports wide open. This re-splices the
integration block and restarts Docker so the chain is rebuilt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newFirewallManager(cfg).FixDocker(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("Docker firewall integration restored"))
		return nil
	},
}

func init() {
	firewallCmd.AddCommand(firewallStatusCmd)
	firewallCmd.AddCommand(firewallApplyCmd)
	firewallCmd.AddCommand(firewallAllowCmd)
	firewallCmd.AddCommand(firewallRevokeCmd)
	firewallCmd.AddCommand(firewallListCmd)
	firewallCmd.AddCommand(firewallCheckCmd)
	firewallCmd.AddCommand(firewallFixDockerCmd)
}

func printAllowlist(path string) error {
	list, err := firewall.LoadAllowlist(path)
	if err != nil {
		return err
	}

	fmt.Println(ui.Header("Allowed networks"))
	if len(list.Entries) == 0 {
		fmt.Println(ui.Muted("(none; only private ranges reach the service ports)"))
		return nil
	}
	for _, p := range list.Sorted() {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

// describeRule names the rule that decided a verdict in operator terms.
func describeRule(r firewall.Rule) string {
	switch {
	case r.Conntrack:
		return "established connection"
	case r.InInterface != "":
		return fmt.Sprintf("container bridge %s", r.InInterface)
	case r.Source.IsValid():
		return fmt.Sprintf("matched %s", r.Source)
	default:
		return "default drop"
	}
}
