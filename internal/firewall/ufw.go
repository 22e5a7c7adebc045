package firewall

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/profzeller/p16-server-setup/internal/system"
)

// Manager applies the server's firewall policy: UFW host rules for SSH and
// service ports plus the DOCKER-USER integration block for published
// container ports.
type Manager struct {
	Runner        system.Runner
	AllowlistPath string
	RulesPath     string
	SSHPort       int
	ServicePorts  []int
}

// NewManager wires a Manager with the stock after.rules path.
func NewManager(r system.Runner, allowlistPath string, sshPort int, servicePorts []int) *Manager {
	return &Manager{
		Runner:        r,
		AllowlistPath: allowlistPath,
		RulesPath:     DefaultAfterRulesPath,
		SSHPort:       sshPort,
		ServicePorts:  servicePorts,
	}
}

// EnsureBaseline sets UFW's default policy, opens SSH and enables the
// firewall. Every step is idempotent, UFW tolerates repeats.
func (m *Manager) EnsureBaseline(ctx context.Context) error {
	steps := [][]string{
		{"default", "deny", "incoming"},
		{"default", "allow", "outgoing"},
		{"allow", fmt.Sprintf("%d/tcp", m.SSHPort)},
	}
	for _, args := range steps {
		if err := m.Runner.Run(ctx, "ufw", args...); err != nil {
			return fmt.Errorf("ufw %v failed: %w", args, err)
		}
	}

	// --force skips the interactive "may disrupt ssh" prompt.
	if err := m.Runner.Run(ctx, "ufw", "--force", "enable"); err != nil {
		return fmt.Errorf("failed to enable ufw: %w", err)
	}
	return nil
}

// Apply regenerates the DOCKER-USER block from the allowlist, splices it
// into after.rules and reloads UFW. Safe to run repeatedly.
func (m *Manager) Apply(ctx context.Context) error {
	list, err := LoadAllowlist(m.AllowlistPath)
	if err != nil {
		return err
	}

	block, err := RenderBlock(BuildRules(list.Entries))
	if err != nil {
		return err
	}

	if err := ApplyBlockToFile(m.RulesPath, block); err != nil {
		return err
	}

	if err := m.Runner.Run(ctx, "ufw", "reload"); err != nil {
		return fmt.Errorf("ufw reload failed: %w", err)
	}
	return nil
}

// Allow adds a source prefix to the allowlist, opens the host-level service
// ports for it and re-applies the container integration.
func (m *Manager) Allow(ctx context.Context, prefix netip.Prefix) error {
	list, err := LoadAllowlist(m.AllowlistPath)
	if err != nil {
		return err
	}

	if !list.Add(prefix) {
		return fmt.Errorf("%s is already in the allowlist", prefix)
	}
	if err := list.Save(m.AllowlistPath); err != nil {
		return err
	}

	for _, port := range m.ServicePorts {
		if err := m.Runner.Run(ctx, "ufw", "allow", "from", prefix.String(),
			"to", "any", "port", fmt.Sprintf("%d", port), "proto", "tcp"); err != nil {
			fmt.Printf("⚠️  Warning: failed to add ufw rule for port %d: %v\n", port, err)
		}
	}

	return m.Apply(ctx)
}

// Revoke removes a source prefix from the allowlist, deletes its host-level
// rules and re-applies the container integration.
func (m *Manager) Revoke(ctx context.Context, prefix netip.Prefix) error {
	list, err := LoadAllowlist(m.AllowlistPath)
	if err != nil {
		return err
	}

	if !list.Remove(prefix) {
		return fmt.Errorf("%s is not in the allowlist", prefix)
	}
	if err := list.Save(m.AllowlistPath); err != nil {
		return err
	}

	for _, port := range m.ServicePorts {
		if err := m.Runner.Run(ctx, "ufw", "delete", "allow", "from", prefix.String(),
			"to", "any", "port", fmt.Sprintf("%d", port), "proto", "tcp"); err != nil {
			fmt.Printf("⚠️  Warning: failed to delete ufw rule for port %d: %v\n", port, err)
		}
	}

	return m.Apply(ctx)
}

// Check answers whether a source address would reach a published container
// port under the current allowlist, without touching the live firewall.
func (m *Manager) Check(source netip.Addr) (Verdict, Rule, error) {
	list, err := LoadAllowlist(m.AllowlistPath)
	if err != nil {
		return Dropped, Rule{}, err
	}

	verdict, rule := Evaluate(BuildRules(list.Entries), Packet{Source: source})
	return verdict, rule, nil
}

// FixDocker re-applies the integration block and bounces Docker so freshly
// recreated DOCKER-USER rules chain into FILTERS again. This is the remedy
// for "Docker ignores my firewall" after engine upgrades.
func (m *Manager) FixDocker(ctx context.Context) error {
	if err := m.Apply(ctx); err != nil {
		return err
	}

	if err := system.RestartUnit(ctx, m.Runner, "docker"); err != nil {
		return fmt.Errorf("failed to restart docker: %w", err)
	}
	return nil
}

// Status returns UFW's own verbose status output.
func (m *Manager) Status(ctx context.Context) (string, error) {
	out, err := m.Runner.Output(ctx, "ufw", "status", "verbose")
	if err != nil {
		return "", fmt.Errorf("failed to query ufw status: %w", err)
	}
	return out, nil
}
