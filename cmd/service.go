package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/profzeller/p16-server-setup/internal/services"
	"github.com/profzeller/p16-server-setup/internal/ui"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Install and manage the Dockerized AI services",
	Long: fmt.Sprintf(`Install, start, stop, update and remove the managed AI services.

Available services: %s

Each service lives in its own directory under /opt/gpu-services with a
docker compose stack and a .env file for its settings.`, strings.Join(services.Names(), ", ")),
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install <name>",
	Short: "Clone a service repository and start its compose stack",
	Long: `Clone the service's compose repository, write its .env, validate the
compose file and bring the stack up. A systemd unit is installed so the
service starts at boot (disable with --no-boot).

Examples:
  p16ctl service install ollama
  p16ctl service install vllm --model meta-llama/Llama-3.1-8B-Instruct`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		name := args[0]
		svc, err := services.Lookup(name)
		if err != nil {
			return err
		}

		model, _ := cmd.Flags().GetString("model")
		if model == "" && len(svc.ModelOptions) > 0 && ui.IsInteractive() {
			model, err = pickModel(svc)
			if err != nil {
				return err
			}
		}

		repo, _ := cmd.Flags().GetString("repo")
		noBoot, _ := cmd.Flags().GetBool("no-boot")
		envPairs, _ := cmd.Flags().GetStringSlice("env")
		env, err := parseEnvPairs(envPairs)
		if err != nil {
			return err
		}

		mgr := newServiceManager(cfg)
		err = mgr.Install(cmd.Context(), name, services.InstallOptions{
			Repo:     repo,
			Model:    model,
			Env:      env,
			BootUnit: !noBoot,
		})
		if errors.Is(err, services.ErrAlreadyInstalled) {
			fmt.Println(ui.WarnMsg("%s is already installed", name))
			fmt.Println("💡 Manage it instead:")
			fmt.Printf("  p16ctl service start %s\n", name)
			fmt.Printf("  p16ctl service stop %s\n", name)
			fmt.Printf("  p16ctl service update %s\n", name)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println(ui.SuccessMsg("%s installed and started on port %d", name, svc.Port))
		fmt.Printf("💡 Reach it from an allowed IP: http://<server>:%d\n", svc.Port)
		return nil
	},
}

var serviceStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start an installed service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newServiceManager(cfg).Start(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s started", args[0]))
		return nil
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop a running service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newServiceManager(cfg).Stop(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s stopped", args[0]))
		return nil
	},
}

var serviceRestartCmd = &cobra.Command{
	Use:   "restart <name>",
	Short: "Restart a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newServiceManager(cfg).Restart(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s restarted", args[0]))
		return nil
	},
}

var serviceUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Pull the latest repository and images, then restart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newServiceManager(cfg).Update(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s updated", args[0]))
		return nil
	},
}

var serviceLogsCmd = &cobra.Command{
	Use:   "logs <name>",
	Short: "Follow a service's container logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return newServiceManager(cfg).Logs(cmd.Context(), args[0])
	},
}

var serviceRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Stop a service and delete its directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		name := args[0]
		assumeYes, _ := cmd.Flags().GetBool("yes")
		ok, err := confirmOrYes(assumeYes,
			fmt.Sprintf("This stops %s and deletes %s including downloaded models and volumes. Continue?", name, cfg.ServiceDir(name)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}

		if err := newServiceManager(cfg).Remove(cmd.Context(), name); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("%s removed", name))
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every managed service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		statuses, err := newServiceManager(cfg).StatusAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(renderServiceTable(statuses))
		return nil
	},
}

var serviceEnvCmd = &cobra.Command{
	Use:   "env <name> [KEY=VALUE...]",
	Short: "Show or change a service's .env settings",
	Long: `Without KEY=VALUE arguments the current .env is printed. With arguments
the named keys are updated in place; restart the service to apply them.

Examples:
  p16ctl service env vllm
  p16ctl service env vllm VLLM_MODEL=mistralai/Mistral-7B-Instruct-v0.3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		name := args[0]
		if _, err := services.Lookup(name); err != nil {
			return err
		}
		envPath := cfg.ServiceDir(name) + "/.env"

		if len(args) == 1 {
			env, err := services.ReadEnvFile(envPath)
			if err != nil {
				return err
			}
			if len(env) == 0 {
				fmt.Println(ui.WarnMsg("no .env settings found for %s", name))
				return nil
			}
			keys := make([]string, 0, len(env))
			for k := range env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pairs := make([]ui.Pair, 0, len(keys))
			for _, k := range keys {
				pairs = append(pairs, ui.KV(k, env[k]))
			}
			fmt.Print(ui.KeyValues("", pairs...))
			return nil
		}

		if err := requireRoot(); err != nil {
			return err
		}
		updates, err := parseEnvPairs(args[1:])
		if err != nil {
			return err
		}
		if err := services.UpdateEnvFile(envPath, updates); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("updated %d setting(s)", len(updates)))
		fmt.Printf("💡 Apply with: p16ctl service restart %s\n", name)
		return nil
	},
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceStartCmd)
	serviceCmd.AddCommand(serviceStopCmd)
	serviceCmd.AddCommand(serviceRestartCmd)
	serviceCmd.AddCommand(serviceUpdateCmd)
	serviceCmd.AddCommand(serviceLogsCmd)
	serviceCmd.AddCommand(serviceRemoveCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
	serviceCmd.AddCommand(serviceEnvCmd)

	serviceInstallCmd.Flags().String("repo", "", "Override the catalog repository URL")
	serviceInstallCmd.Flags().String("model", "", "Model to serve (services with a model choice)")
	serviceInstallCmd.Flags().StringSlice("env", []string{}, "Extra .env entries in KEY=VALUE format (repeatable)")
	serviceInstallCmd.Flags().Bool("no-boot", false, "Skip the systemd unit that starts the service at boot")

	serviceRemoveCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt and proceed with deletion")
}

// pickModel asks which model the service should serve.
func pickModel(svc services.Service) (string, error) {
	options := make([]huh.Option[string], 0, len(svc.ModelOptions))
	for _, m := range svc.ModelOptions {
		options = append(options, huh.NewOption(m, m))
	}

	var model string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("Model for %s", svc.Name)).
			Options(options...).
			Value(&model),
	)).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		return "", err
	}
	return model, nil
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, found := strings.Cut(p, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid env entry %q, expected KEY=VALUE", p)
		}
		env[key] = value
	}
	return env, nil
}

// renderServiceTable renders service statuses for the status command and
// the menu.
func renderServiceTable(statuses []services.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		state := "not installed"
		switch {
		case st.Installed && st.Running > 0:
			state = fmt.Sprintf("running %d/%d", st.Running, st.Containers)
		case st.Installed:
			state = "stopped"
		}
		port := "closed"
		if st.PortOpen {
			port = "open"
		}
		rows = append(rows, []string{
			st.Service.Name,
			st.Service.Description,
			fmt.Sprintf("%d", st.Service.Port),
			state,
			port,
		})
	}
	return ui.Table([]string{"Service", "Description", "Port", "State", "Local port"}, rows)
}
