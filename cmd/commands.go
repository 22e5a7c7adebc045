package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/profzeller/p16-server-setup/internal/ui"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Cheat sheet of useful commands on this server",
	RunE: func(cmd *cobra.Command, args []string) error {
		printCheatSheet()
		return nil
	},
}

func printCheatSheet() {
	fmt.Println(ui.Header("Services"))
	fmt.Print(ui.KeyValues("  ",
		ui.KV("p16ctl service status", "state of every managed service"),
		ui.KV("p16ctl service install <name>", "install from the catalog"),
		ui.KV("p16ctl service logs <name>", "follow a service's logs"),
		ui.KV("p16ctl service update <name>", "pull repo and images, restart"),
	))
	fmt.Println()

	fmt.Println(ui.Header("Firewall"))
	fmt.Print(ui.KeyValues("  ",
		ui.KV("p16ctl firewall allow <cidr>", "grant access to the service ports"),
		ui.KV("p16ctl firewall check <ip>", "predict a source's verdict"),
		ui.KV("p16ctl firewall fix-docker", "repair the integration after engine upgrades"),
		ui.KV("ufw status verbose", "raw UFW state"),
	))
	fmt.Println()

	fmt.Println(ui.Header("Docker"))
	fmt.Print(ui.KeyValues("  ",
		ui.KV("docker ps", "running containers"),
		ui.KV("docker compose logs -f", "logs (inside a service directory)"),
		ui.KV("docker system df", "image and volume disk usage"),
		ui.KV("docker system prune -a", "reclaim space from unused images"),
	))
	fmt.Println()

	fmt.Println(ui.Header("GPU"))
	fmt.Print(ui.KeyValues("  ",
		ui.KV("nvidia-smi", "driver view of the GPUs"),
		ui.KV("p16ctl monitor", "live utilization table"),
		ui.KV("p16ctl gpu test", "validate the container GPU stack"),
	))
	fmt.Println()

	fmt.Println(ui.Header("System"))
	fmt.Print(ui.KeyValues("  ",
		ui.KV("journalctl -u docker -f", "docker daemon logs"),
		ui.KV("journalctl -u gpu-service-<name>", "boot unit logs"),
		ui.KV("netplan apply", "re-apply network configuration"),
		ui.KV("systemctl reboot", "reboot the server"),
	))
}
