package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/profzeller/p16-server-setup/internal/setup"
	"github.com/profzeller/p16-server-setup/internal/ui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Provision the server (driver, Docker, firewall, SSH, power)",
	Long: `Run the full provisioning sequence. Steps that are already satisfied are
skipped, so re-running after a failure or a reboot is safe. --force
re-runs every step regardless.

A JSON report is written to ` + DefaultStateDir + `/setup-report.json and a
marker file records completion.

Examples:
  p16ctl setup
  p16ctl setup --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureLinux(); err != nil {
			return err
		}
		if err := elevateIfNeeded(); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if setup.Done(cfg.MarkerPath()) && !force {
			fmt.Println(ui.InfoMsg("setup already completed; re-running with per-step checks (use --force to redo everything)"))
		}

		s := setup.New(newRunner(), cfg, version)
		s.Force = force
		if _, err := s.Run(cmd.Context()); err != nil {
			return err
		}

		if s.RebootRequired {
			fmt.Println(ui.WarnMsg("Reboot now, then run 'p16ctl gpu test' to verify the stack."))
		}
		return nil
	},
}

func init() {
	setupCmd.Flags().BoolP("force", "f", false, "Re-run every step even when already satisfied")
}
