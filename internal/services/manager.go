package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/profzeller/p16-server-setup/internal/system"
)

// Sentinel errors callers branch on: a second install offers
// start/stop/update instead of re-cloning.
var (
	ErrAlreadyInstalled = errors.New("service is already installed")
	ErrNotInstalled     = errors.New("service is not installed")
)

// composeProjectLabel is the label docker compose stamps on every container
// it manages; the project equals the service directory name.
const composeProjectLabel = "com.docker.compose.project"

// InstallOptions tune a single install run.
type InstallOptions struct {
	// Repo overrides the catalog clone URL.
	Repo string
	// Model overrides the service's default model (written to ModelKey).
	Model string
	// Env holds extra KEY=VALUE overrides for the generated .env.
	Env map[string]string
	// BootUnit installs a systemd unit that brings the stack up at boot.
	BootUnit bool
}

// Status is the runtime picture of one managed service.
type Status struct {
	Service    Service
	Installed  bool
	Containers int
	Running    int
	PortOpen   bool
}

// Manager installs and drives the managed services. Docker CLI work
// (compose, git) goes through the Runner; inspection goes through the Docker
// API client.
type Manager struct {
	Runner      system.Runner
	ServicesDir string

	docker client.APIClient
}

// NewManager wires a Manager. The Docker API client is dialed lazily so
// commands that never inspect containers work without a running daemon.
func NewManager(r system.Runner, servicesDir string) *Manager {
	return &Manager{Runner: r, ServicesDir: servicesDir}
}

func (m *Manager) dir(name string) string {
	return filepath.Join(m.ServicesDir, name)
}

// Installed reports whether a service directory exists.
func (m *Manager) Installed(name string) bool {
	info, err := os.Stat(m.dir(name))
	return err == nil && info.IsDir()
}

// Install clones the service repository, writes its .env, validates the
// compose file and brings the stack up. A second install returns
// ErrAlreadyInstalled so the caller can offer start/stop/update instead.
func (m *Manager) Install(ctx context.Context, name string, opts InstallOptions) error {
	svc, err := Lookup(name)
	if err != nil {
		return err
	}

	dir := m.dir(name)
	if m.Installed(name) {
		return fmt.Errorf("%w: %s exists", ErrAlreadyInstalled, dir)
	}

	// Reject bad options before any network work so a failed install never
	// leaves a directory behind.
	overrides := make(map[string]string, len(opts.Env)+1)
	for k, v := range opts.Env {
		overrides[k] = v
	}
	if opts.Model != "" {
		if svc.ModelKey == "" {
			return fmt.Errorf("service '%s' has no model selection", name)
		}
		overrides[svc.ModelKey] = opts.Model
	}

	if err := os.MkdirAll(m.ServicesDir, 0755); err != nil {
		return fmt.Errorf("failed to create services directory: %w", err)
	}

	repo := svc.Repo
	if opts.Repo != "" {
		repo = opts.Repo
	}

	fmt.Printf("📦 Cloning %s into %s...\n", repo, dir)
	if err := m.Runner.Run(ctx, "git", "clone", "--depth", "1", repo, dir); err != nil {
		// A failed clone may leave a partial directory that would wedge the
		// next attempt behind ErrAlreadyInstalled.
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to clone %s: %w", repo, err)
	}

	if err := WriteEnvFile(filepath.Join(dir, envFileName), svc.Env, overrides); err != nil {
		return err
	}

	if _, err := ValidateCompose(ctx, name, dir); err != nil {
		return err
	}

	if err := m.composeUp(ctx, name); err != nil {
		return err
	}

	if opts.BootUnit {
		if err := system.InstallBootUnit(ctx, m.Runner, name, dir); err != nil {
			fmt.Printf("⚠️  Warning: failed to install boot unit: %v\n", err)
		}
	}

	fmt.Printf("✅ Service '%s' installed on port %d\n", name, svc.Port)
	return nil
}

func (m *Manager) composeUp(ctx context.Context, name string) error {
	return m.Runner.Run(ctx, "docker", "compose",
		"--project-directory", m.dir(name), "up", "-d", "--remove-orphans")
}

// Start brings an installed service's stack up.
func (m *Manager) Start(ctx context.Context, name string) error {
	if err := m.requireInstalled(name); err != nil {
		return err
	}
	return m.composeUp(ctx, name)
}

// Stop takes a service's stack down, keeping volumes.
func (m *Manager) Stop(ctx context.Context, name string) error {
	if err := m.requireInstalled(name); err != nil {
		return err
	}
	return m.Runner.Run(ctx, "docker", "compose",
		"--project-directory", m.dir(name), "down")
}

// Restart bounces a service's stack.
func (m *Manager) Restart(ctx context.Context, name string) error {
	if err := m.requireInstalled(name); err != nil {
		return err
	}
	return m.Runner.Run(ctx, "docker", "compose",
		"--project-directory", m.dir(name), "restart")
}

// Update pulls the latest repository revision and images, then re-ups the
// stack. The .env is left alone; edits survive updates.
func (m *Manager) Update(ctx context.Context, name string) error {
	if err := m.requireInstalled(name); err != nil {
		return err
	}

	dir := m.dir(name)
	if err := m.Runner.Run(ctx, "git", "-C", dir, "pull", "--ff-only"); err != nil {
		return fmt.Errorf("failed to update repository: %w", err)
	}
	if err := m.Runner.Run(ctx, "docker", "compose",
		"--project-directory", dir, "pull"); err != nil {
		return fmt.Errorf("failed to pull images: %w", err)
	}

	if _, err := ValidateCompose(ctx, name, dir); err != nil {
		return err
	}
	return m.composeUp(ctx, name)
}

// Logs follows the service's container logs until ctx is cancelled.
func (m *Manager) Logs(ctx context.Context, name string) error {
	if err := m.requireInstalled(name); err != nil {
		return err
	}
	return m.Runner.Run(ctx, "docker", "compose",
		"--project-directory", m.dir(name), "logs", "--follow", "--tail", "100")
}

// Remove takes the stack down with volumes, removes the boot unit and
// deletes the service directory.
func (m *Manager) Remove(ctx context.Context, name string) error {
	if err := m.requireInstalled(name); err != nil {
		return err
	}

	dir := m.dir(name)
	if err := m.Runner.Run(ctx, "docker", "compose",
		"--project-directory", dir, "down", "--volumes"); err != nil {
		fmt.Printf("⚠️  Warning: compose down failed: %v\n", err)
	}

	if err := system.RemoveBootUnit(ctx, m.Runner, name); err != nil {
		fmt.Printf("⚠️  Warning: failed to remove boot unit: %v\n", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dir, err)
	}

	fmt.Printf("✅ Service '%s' removed\n", name)
	return nil
}

func (m *Manager) requireInstalled(name string) error {
	if _, err := Lookup(name); err != nil {
		return err
	}
	if !m.Installed(name) {
		return fmt.Errorf("%w: %s (install it first)", ErrNotInstalled, name)
	}
	return nil
}

func (m *Manager) apiClient() (client.APIClient, error) {
	if m.docker != nil {
		return m.docker, nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	m.docker = cli
	return cli, nil
}

// Status inspects one service: installed on disk, containers known to the
// engine for its compose project, and whether its port answers.
func (m *Manager) Status(ctx context.Context, name string) (Status, error) {
	svc, err := Lookup(name)
	if err != nil {
		return Status{}, err
	}

	st := Status{Service: svc, Installed: m.Installed(name)}

	cli, err := m.apiClient()
	if err != nil {
		return st, err
	}

	args := filters.NewArgs(filters.Arg("label", composeProjectLabel+"="+name))
	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return st, nil
		}
		return st, fmt.Errorf("failed to list containers: %w", err)
	}

	st.Containers = len(containers)
	for _, c := range containers {
		if c.State == "running" {
			st.Running++
		}
	}

	st.PortOpen = probePort(svc.Port)
	return st, nil
}

// StatusAll inspects every catalog service.
func (m *Manager) StatusAll(ctx context.Context) ([]Status, error) {
	var out []Status
	for _, svc := range Catalog() {
		st, err := m.Status(ctx, svc.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// probePort answers whether anything listens on the service port locally.
func probePort(port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 2*time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
