package services

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// envFileName is the per-service file holding model selection and tuning
// knobs, read by docker compose for ${VAR} interpolation.
const envFileName = ".env"

// ReadEnvFile parses a .env file into a map. Blank lines and '#' comments
// are skipped. A missing file yields an empty map.
func ReadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	values := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return values, nil
}

// WriteEnvFile writes the service's initial .env from the catalog defaults,
// with overrides applied. Entries keep catalog order; override-only keys are
// appended alphabetically.
func WriteEnvFile(path string, defaults []EnvVar, overrides map[string]string) error {
	var sb strings.Builder
	sb.WriteString("# Service configuration. Edit and run 'p16ctl service restart' to apply.\n")

	written := make(map[string]bool)
	for _, e := range defaults {
		value := e.Value
		if v, ok := overrides[e.Key]; ok {
			value = v
		}
		fmt.Fprintf(&sb, "%s=%s\n", e.Key, value)
		written[e.Key] = true
	}

	var extra []string
	for k := range overrides {
		if !written[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		fmt.Fprintf(&sb, "%s=%s\n", k, overrides[k])
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// UpdateEnvFile rewrites values for existing keys in place, appends new
// keys, and leaves comments and unknown lines untouched.
func UpdateEnvFile(path string, updates map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	pending := make(map[string]string, len(updates))
	for k, v := range updates {
		pending[k] = v
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, _, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if v, hit := pending[key]; hit {
			lines[i] = fmt.Sprintf("%s=%s", key, v)
			delete(pending, key)
		}
	}

	var extra []string
	for k := range pending {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		lines = append(lines, fmt.Sprintf("%s=%s", k, pending[k]))
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
