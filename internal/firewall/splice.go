package firewall

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultAfterRulesPath is where UFW keeps rules applied after its own.
const DefaultAfterRulesPath = "/etc/ufw/after.rules"

// Splice replaces the managed marker block inside an after.rules document,
// or appends it when absent. Applying the same block twice yields identical
// output, so re-running setup or apply is safe.
func Splice(content, block string) string {
	stripped := stripBlock(content)

	stripped = strings.TrimRight(stripped, "\n")
	if stripped == "" {
		return strings.TrimRight(block, "\n") + "\n"
	}
	return stripped + "\n\n" + strings.TrimRight(block, "\n") + "\n"
}

// stripBlock removes every managed block, including its markers. Handles a
// truncated block (BEGIN without END) by cutting to the end of the document
// rather than leaving half a fragment behind.
func stripBlock(content string) string {
	for {
		begin := strings.Index(content, BeginMarker)
		if begin < 0 {
			return content
		}

		rest := content[begin:]
		end := strings.Index(rest, EndMarker)
		if end < 0 {
			return content[:begin]
		}

		after := rest[end+len(EndMarker):]
		after = strings.TrimPrefix(after, "\n")
		content = content[:begin] + after
	}
}

// ApplyBlockToFile splices the block into the rules file atomically. The
// temp file lives in the same directory so the rename cannot cross
// filesystems.
func ApplyBlockToFile(path, block string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	updated := Splice(string(existing), block)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".after.rules-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(updated); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write rules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	// after.rules is root-owned 0640 on stock Ubuntu; keep that.
	if err := os.Chmod(tmpName, 0640); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to chmod rules file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// HasBlock reports whether the rules file currently carries a managed block.
func HasBlock(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), BeginMarker)
}
