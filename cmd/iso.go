package cmd

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/profzeller/p16-server-setup/internal/autoinstall"
	"github.com/profzeller/p16-server-setup/internal/firewall"
	"github.com/profzeller/p16-server-setup/internal/ui"
)

var isoCmd = &cobra.Command{
	Use:   "iso",
	Short: "Build unattended Ubuntu install media",
}

var isoCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Repack an Ubuntu Server ISO for unattended installation",
	Long: `Embed a cloud-init NoCloud seed into an Ubuntu Server ISO and patch its
boot menu so the installer runs unattended. The seeded system boots with
SSH ready and the firewall allowlist pre-populated; run p16ctl on it to
finish provisioning.

Requires xorriso (apt install xorriso).

Examples:
  p16ctl iso create --source ubuntu-24.04-live-server-amd64.iso --output gpu-server.iso \
    --hostname gpu-01 --username admin --ssh-key ~/.ssh/id_ed25519.pub --allow 203.0.113.0/24`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		output, _ := cmd.Flags().GetString("output")
		if source == "" || output == "" {
			return fmt.Errorf("--source and --output are required")
		}

		hostname, _ := cmd.Flags().GetString("hostname")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		keyPath, _ := cmd.Flags().GetString("ssh-key")
		allowFlags, _ := cmd.Flags().GetStringSlice("allow")

		allowed := make([]netip.Prefix, 0, len(allowFlags))
		for _, a := range allowFlags {
			p, err := firewall.ParsePrefix(a)
			if err != nil {
				return err
			}
			allowed = append(allowed, p)
		}

		authorizedKey, err := readSSHKey(keyPath)
		if err != nil {
			return err
		}

		if password == "" {
			if !ui.IsInteractive() {
				return fmt.Errorf("--password is required when no terminal is attached")
			}
			if err := askPassword(&password); err != nil {
				return err
			}
		}

		r := newRunner()
		hash, err := autoinstall.CryptPassword(cmd.Context(), r, password)
		if err != nil {
			return err
		}

		seed := autoinstall.Seed{
			Hostname:      hostname,
			Username:      username,
			PasswordHash:  hash,
			AuthorizedKey: authorizedKey,
			AllowedIPs:    allowed,
		}

		fmt.Println("📦 Repacking ISO, this can take a few minutes...")
		if err := autoinstall.BuildISO(cmd.Context(), r, source, output, seed); err != nil {
			return err
		}

		fmt.Println(ui.SuccessMsg("unattended install image written to %s", output))
		fmt.Println("💡 Write it to a USB stick with: dd if=" + output + " of=/dev/sdX bs=4M status=progress")
		return nil
	},
}

func init() {
	isoCmd.AddCommand(isoCreateCmd)

	isoCreateCmd.Flags().String("source", "", "Path to the Ubuntu Server ISO")
	isoCreateCmd.Flags().String("output", "", "Path for the repacked ISO")
	isoCreateCmd.Flags().String("hostname", "gpu-server", "Hostname for the installed system")
	isoCreateCmd.Flags().String("username", "admin", "Admin account name")
	isoCreateCmd.Flags().String("password", "", "Admin password (prompted when omitted)")
	isoCreateCmd.Flags().String("ssh-key", "", "Path to an SSH public key to authorize")
	isoCreateCmd.Flags().StringSlice("allow", []string{}, "CIDR to preseed into the firewall allowlist (repeatable)")
}

// readSSHKey loads a public key file; an empty path means no key.
func readSSHKey(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read SSH key %s: %w", path, err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("SSH key file %s is empty", path)
	}
	return key, nil
}

func askPassword(password *string) error {
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Admin password for the installed system").
			EchoMode(huh.EchoModePassword).
			Validate(func(s string) error {
				if len(s) < 8 {
					return fmt.Errorf("use at least 8 characters")
				}
				return nil
			}).
			Value(password),
	)).WithTheme(huh.ThemeBase16())
	return form.Run()
}
