// Package firewall manages the UFW configuration of the server together with
// the DOCKER-USER chain integration that makes UFW rules apply to published
// container ports. Docker normally bypasses UFW by inserting its own rules
// into the nat/filter tables; the FILTERS chain spliced into
// /etc/ufw/after.rules closes that hole.
package firewall

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Allowlist is the ordered set of source prefixes permitted to reach
// published service ports. Bare addresses are normalized to single-address
// prefixes.
type Allowlist struct {
	Entries []netip.Prefix
}

// ParsePrefix normalizes one allowlist entry. Accepts "1.2.3.4" and
// "1.2.3.0/24"; rejects everything else, including IPv6 (UFW's after.rules
// only carries the IPv4 table here, matching the original server setup).
func ParsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Prefix{}, fmt.Errorf("empty address")
	}

	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid IP address '%s': %w", s, err)
		}
		if !addr.Is4() {
			return netip.Prefix{}, fmt.Errorf("'%s' is not an IPv4 address", s)
		}
		return netip.PrefixFrom(addr, 32), nil
	}

	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR '%s': %w", s, err)
	}
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("'%s' is not an IPv4 network", s)
	}
	return prefix.Masked(), nil
}

// ParseAllowlist reads allowlist entries from file content. Blank lines and
// '#' comments are ignored. Duplicate entries collapse to one.
func ParseAllowlist(content string) (*Allowlist, error) {
	list := &Allowlist{}
	seen := make(map[netip.Prefix]bool)

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Allow trailing comments after the address.
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		prefix, err := ParsePrefix(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if seen[prefix] {
			continue
		}
		seen[prefix] = true
		list.Entries = append(list.Entries, prefix)
	}

	return list, nil
}

// LoadAllowlist reads the allowlist file. A missing file yields an empty
// list, so a fresh server starts closed.
func LoadAllowlist(path string) (*Allowlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Allowlist{}, nil
		}
		return nil, fmt.Errorf("failed to read allowlist %s: %w", path, err)
	}
	return ParseAllowlist(string(data))
}

// Save writes the allowlist atomically (temp file + rename in the same
// directory).
func (l *Allowlist) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# IP addresses and CIDR ranges allowed to reach service ports.\n")
	sb.WriteString("# Managed by p16ctl; one entry per line.\n")
	for _, p := range l.Entries {
		sb.WriteString(p.String())
		sb.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".allowed-ips-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(sb.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write allowlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to chmod allowlist: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace allowlist: %w", err)
	}
	return nil
}

// Add inserts a prefix if not already present. Returns true when the list
// changed.
func (l *Allowlist) Add(prefix netip.Prefix) bool {
	for _, p := range l.Entries {
		if p == prefix {
			return false
		}
	}
	l.Entries = append(l.Entries, prefix)
	return true
}

// Remove deletes a prefix. Returns true when the list changed.
func (l *Allowlist) Remove(prefix netip.Prefix) bool {
	for i, p := range l.Entries {
		if p == prefix {
			l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether the exact prefix is present.
func (l *Allowlist) Contains(prefix netip.Prefix) bool {
	for _, p := range l.Entries {
		if p == prefix {
			return true
		}
	}
	return false
}

// Sorted returns the entries ordered by address then prefix length, for
// stable display.
func (l *Allowlist) Sorted() []netip.Prefix {
	out := make([]netip.Prefix, len(l.Entries))
	copy(out, l.Entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Addr() != out[j].Addr() {
			return out[i].Addr().Less(out[j].Addr())
		}
		return out[i].Bits() < out[j].Bits()
	})
	return out
}
