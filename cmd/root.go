package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/profzeller/p16-server-setup/internal/setup"
	"github.com/profzeller/p16-server-setup/internal/ui"
)

const version = "0.4.1"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "p16ctl",
		Short: "GPU server setup and service manager",
		Long: `p16ctl provisions a headless Ubuntu GPU server and manages its Dockerized
AI services. Run it without arguments for the interactive menu; on a fresh
machine it performs the full setup first (NVIDIA driver, Docker, firewall,
SSH and power policy).`,
		Version: version,
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

			if !setup.Done(cfg.MarkerPath()) {
				s := setup.New(newRunner(), cfg, version)
				if _, err := s.Run(cmd.Context()); err != nil {
					return err
				}
				if s.RebootRequired {
					fmt.Println(ui.WarnMsg("Reboot now, then run p16ctl again to manage services."))
					return nil
				}
				fmt.Println()
			}

			if !ui.IsInteractive() {
				return fmt.Errorf("no interactive terminal; use the subcommands instead (see 'p16ctl --help')")
			}
			return runMenu(cmd.Context(), cfg)
		},
	}
)

func Execute() {
	// Configure Cobra to provide better error handling
	rootCmd.SilenceErrors = true           // Prevent duplicate error messages
	rootCmd.SuggestionsMinimumDistance = 1 // More sensitive to typos

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		// Provide specific guidance for common mistakes
		if err.Error() == `unknown command "menu" for "p16ctl"` {
			fmt.Fprintf(os.Stderr, "\nThe menu opens when p16ctl runs without arguments.\n")
		}
		if err.Error() == `unknown command "install" for "p16ctl"` {
			fmt.Fprintf(os.Stderr, "\nDid you mean:\n  p16ctl service install <name>\n")
		}
		if err.Error() == `unknown command "allow" for "p16ctl"` {
			fmt.Fprintf(os.Stderr, "\nDid you mean:\n  p16ctl firewall allow <cidr>\n")
		}
		if err.Error() == `unknown command "start" for "p16ctl"` {
			fmt.Fprintf(os.Stderr, "\nDid you mean one of:\n  p16ctl service start <name>\n  p16ctl monitor\n")
		}

		fmt.Fprintf(os.Stderr, "\nRun 'p16ctl --help' for usage.\n")
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/gpu-server/p16ctl.yaml)")
	// Add subcommands
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(firewallCmd)
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(gpuCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(isoCmd)
	rootCmd.AddCommand(updateCmd)
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// System-wide config first, per-user config as fallback.
		viper.AddConfigPath(DefaultStateDir)
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(fmt.Sprintf("%s/.config", home))
		}
		viper.SetConfigName("p16ctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("P16CTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
