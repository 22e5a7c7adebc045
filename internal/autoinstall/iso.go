package autoinstall

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/profzeller/p16-server-setup/internal/system"
)

// kernelArgs is injected in front of the "---" separator on every kernel
// line so the installer finds the NoCloud seed on the CD itself. The
// semicolon must stay escaped for GRUB.
const kernelArgs = `autoinstall ds=nocloud\;s=/cdrom/nocloud/`

var timeoutRe = regexp.MustCompile(`(?m)^set timeout=\d+$`)

// BuildISO repacks an Ubuntu Server ISO with the NoCloud seed embedded and
// the GRUB entries patched for unattended installation. xorriso's replay
// mode keeps the original BIOS/UEFI boot setup intact.
func BuildISO(ctx context.Context, r system.Runner, sourceISO, outputISO string, seed Seed) error {
	if !system.CommandExists("xorriso") {
		return fmt.Errorf("xorriso not found in PATH; install it with 'apt install xorriso'")
	}
	if _, err := os.Stat(sourceISO); err != nil {
		return fmt.Errorf("source ISO not readable: %w", err)
	}

	userData, err := GenerateUserData(seed)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "p16ctl-iso-")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	userDataPath := filepath.Join(workDir, "user-data")
	if err := os.WriteFile(userDataPath, []byte(userData), 0644); err != nil {
		return fmt.Errorf("failed to write user-data: %w", err)
	}

	// meta-data must exist for the NoCloud datasource, an empty file is fine.
	metaDataPath := filepath.Join(workDir, "meta-data")
	if err := os.WriteFile(metaDataPath, nil, 0644); err != nil {
		return fmt.Errorf("failed to write meta-data: %w", err)
	}

	grubPath, err := extractGrubConfig(ctx, r, sourceISO, workDir)
	if err != nil {
		return err
	}
	patchedGrub, err := patchGrubConfig(grubPath)
	if err != nil {
		return err
	}

	// Copy the ISO with the three files mapped in. "-boot_image any replay"
	// re-creates the El Torito and GPT boot entries of the source image.
	err = r.Run(ctx, "xorriso",
		"-indev", sourceISO,
		"-outdev", outputISO,
		"-boot_image", "any", "replay",
		"-map", userDataPath, "/nocloud/user-data",
		"-map", metaDataPath, "/nocloud/meta-data",
		"-map", patchedGrub, "/boot/grub/grub.cfg",
	)
	if err != nil {
		return fmt.Errorf("failed to repack ISO: %w", err)
	}
	return nil
}

// extractGrubConfig pulls /boot/grub/grub.cfg out of the source image.
func extractGrubConfig(ctx context.Context, r system.Runner, sourceISO, workDir string) (string, error) {
	grubPath := filepath.Join(workDir, "grub.cfg")
	err := r.Run(ctx, "xorriso",
		"-osirrox", "on",
		"-indev", sourceISO,
		"-extract", "/boot/grub/grub.cfg", grubPath,
	)
	if err != nil {
		return "", fmt.Errorf("failed to extract grub.cfg from %s: %w", sourceISO, err)
	}
	return grubPath, nil
}

// patchGrubConfig injects the autoinstall kernel arguments and drops the
// menu timeout to one second. The extracted file keeps the ISO's read-only
// permissions, so the patched copy is written next to it.
func patchGrubConfig(grubPath string) (string, error) {
	data, err := os.ReadFile(grubPath)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted grub.cfg: %w", err)
	}

	content := string(data)
	if !strings.Contains(content, "---") {
		return "", fmt.Errorf("grub.cfg has no kernel argument separator; unsupported image layout")
	}
	content = strings.ReplaceAll(content, " ---", " "+kernelArgs+" ---")
	content = timeoutRe.ReplaceAllString(content, "set timeout=1")

	patched := filepath.Join(filepath.Dir(grubPath), "grub-autoinstall.cfg")
	if err := os.WriteFile(patched, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write patched grub.cfg: %w", err)
	}
	return patched, nil
}

// CryptPassword hashes a plaintext password with SHA-512 crypt via openssl,
// the format subiquity expects in identity.password.
func CryptPassword(ctx context.Context, r system.Runner, password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	out, err := r.Output(ctx, "openssl", "passwd", "-6", password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return strings.TrimSpace(out), nil
}
