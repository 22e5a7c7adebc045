package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/profzeller/p16-server-setup/internal/system"
)

// cloneTo makes the mocked git clone behave like the real one: the service
// directory appears with a compose file inside.
func cloneTo(t *testing.T, dir string) func(mock.Arguments) {
	t.Helper()
	return func(mock.Arguments) {
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "compose.yaml"), []byte(ollamaCompose), 0644))
	}
}

func TestInstallClonesAndStarts(t *testing.T) {
	servicesDir := t.TempDir()
	dir := filepath.Join(servicesDir, "ollama")

	r := new(system.MockRunner)
	r.On("Run", "git", mock.Anything).Return(nil).Run(cloneTo(t, dir))
	r.On("Run", "docker", mock.Anything).Return(nil)

	m := NewManager(r, servicesDir)
	require.NoError(t, m.Install(context.Background(), "ollama", InstallOptions{}))

	env, err := ReadEnvFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "24h", env["OLLAMA_KEEP_ALIVE"], "catalog defaults land in the generated .env")

	lines := r.CommandLines()
	require.Len(t, lines, 2)
	assert.Equal(t, "git clone --depth 1 https://github.com/profzeller/p16-svc-ollama.git "+dir, lines[0])
	assert.Equal(t, "docker compose --project-directory "+dir+" up -d --remove-orphans", lines[1])
}

func TestInstallTwiceReturnsSentinel(t *testing.T) {
	servicesDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(servicesDir, "ollama"), 0755))

	m := NewManager(new(system.MockRunner), servicesDir)
	err := m.Install(context.Background(), "ollama", InstallOptions{})
	assert.True(t, errors.Is(err, ErrAlreadyInstalled))
}

func TestInstallModelOverride(t *testing.T) {
	servicesDir := t.TempDir()
	dir := filepath.Join(servicesDir, "vllm")

	vllmCompose := "services:\n  vllm:\n    image: vllm/vllm-openai:latest\n    environment:\n      VLLM_MODEL: ${VLLM_MODEL}\n"
	r := new(system.MockRunner)
	r.On("Run", "git", mock.Anything).Return(nil).Run(func(mock.Arguments) {
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "compose.yaml"), []byte(vllmCompose), 0644))
	})
	r.On("Run", "docker", mock.Anything).Return(nil)

	m := NewManager(r, servicesDir)
	opts := InstallOptions{
		Model: "mistralai/Mistral-7B-Instruct-v0.3",
		Env:   map[string]string{"HF_TOKEN": "secret"},
	}
	require.NoError(t, m.Install(context.Background(), "vllm", opts))

	env, err := ReadEnvFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "mistralai/Mistral-7B-Instruct-v0.3", env["VLLM_MODEL"])
	assert.Equal(t, "secret", env["HF_TOKEN"])
	assert.Equal(t, "0.90", env["VLLM_GPU_MEMORY_UTILIZATION"], "untouched defaults survive")
}

func TestInstallModelWithoutSelection(t *testing.T) {
	servicesDir := t.TempDir()
	r := new(system.MockRunner)

	m := NewManager(r, servicesDir)
	err := m.Install(context.Background(), "ollama", InstallOptions{Model: "llama3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model selection")
	assert.Empty(t, r.CommandLines(), "bad options must fail before cloning")
	assert.False(t, m.Installed("ollama"))
}

func TestInstallFailedCloneLeavesNoDirectory(t *testing.T) {
	servicesDir := t.TempDir()
	dir := filepath.Join(servicesDir, "ollama")

	r := new(system.MockRunner)
	// Simulate git dying mid-clone with a partial checkout on disk.
	r.On("Run", "git", mock.Anything).Return(errors.New("remote hung up")).Run(func(mock.Arguments) {
		require.NoError(t, os.MkdirAll(dir, 0755))
	})

	m := NewManager(r, servicesDir)
	err := m.Install(context.Background(), "ollama", InstallOptions{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAlreadyInstalled))
	assert.False(t, m.Installed("ollama"), "partial clone must be cleaned up")
}

func TestInstallUnknownService(t *testing.T) {
	m := NewManager(new(system.MockRunner), t.TempDir())
	err := m.Install(context.Background(), "no-such-service", InstallOptions{})
	assert.Error(t, err)
}

func TestInstallRepoOverride(t *testing.T) {
	servicesDir := t.TempDir()
	dir := filepath.Join(servicesDir, "ollama")

	r := new(system.MockRunner)
	r.On("Run", "git", mock.Anything).Return(nil).Run(cloneTo(t, dir))
	r.On("Run", "docker", mock.Anything).Return(nil)

	m := NewManager(r, servicesDir)
	fork := "https://github.com/someone/ollama-fork.git"
	require.NoError(t, m.Install(context.Background(), "ollama", InstallOptions{Repo: fork}))

	assert.Contains(t, r.CommandLines()[0], fork)
}

// installedService fakes a completed install on disk so lifecycle commands
// can run without going through Install.
func installedService(t *testing.T, servicesDir, name string) string {
	t.Helper()
	dir := filepath.Join(servicesDir, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compose.yaml"), []byte(ollamaCompose), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OLLAMA_KEEP_ALIVE=24h\n"), 0644))
	return dir
}

func TestLifecycleCommands(t *testing.T) {
	servicesDir := t.TempDir()
	dir := installedService(t, servicesDir, "ollama")

	r := new(system.MockRunner)
	r.On("Run", "docker", mock.Anything).Return(nil)

	m := NewManager(r, servicesDir)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx, "ollama"))
	require.NoError(t, m.Stop(ctx, "ollama"))
	require.NoError(t, m.Restart(ctx, "ollama"))
	require.NoError(t, m.Logs(ctx, "ollama"))

	assert.Equal(t, []string{
		"docker compose --project-directory " + dir + " up -d --remove-orphans",
		"docker compose --project-directory " + dir + " down",
		"docker compose --project-directory " + dir + " restart",
		"docker compose --project-directory " + dir + " logs --follow --tail 100",
	}, r.CommandLines())
}

func TestLifecycleRequiresInstall(t *testing.T) {
	m := NewManager(new(system.MockRunner), t.TempDir())
	ctx := context.Background()

	for _, op := range []func(context.Context, string) error{
		m.Start, m.Stop, m.Restart, m.Update, m.Logs, m.Remove,
	} {
		err := op(ctx, "ollama")
		assert.True(t, errors.Is(err, ErrNotInstalled), "got %v", err)
	}
}

func TestUpdatePullsRepoAndImages(t *testing.T) {
	servicesDir := t.TempDir()
	dir := installedService(t, servicesDir, "ollama")

	r := new(system.MockRunner)
	r.On("Run", "git", mock.Anything).Return(nil)
	r.On("Run", "docker", mock.Anything).Return(nil)

	m := NewManager(r, servicesDir)
	require.NoError(t, m.Update(context.Background(), "ollama"))

	assert.Equal(t, []string{
		"git -C " + dir + " pull --ff-only",
		"docker compose --project-directory " + dir + " pull",
		"docker compose --project-directory " + dir + " up -d --remove-orphans",
	}, r.CommandLines())
}

func TestUpdateStopsOnFailedPull(t *testing.T) {
	servicesDir := t.TempDir()
	installedService(t, servicesDir, "ollama")

	r := new(system.MockRunner)
	r.On("Run", "git", mock.Anything).Return(errors.New("diverged"))

	m := NewManager(r, servicesDir)
	err := m.Update(context.Background(), "ollama")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update repository")

	for _, line := range r.CommandLines() {
		assert.False(t, strings.HasPrefix(line, "docker"), "no compose work after a failed pull")
	}
}

func TestRemoveDeletesDirectory(t *testing.T) {
	servicesDir := t.TempDir()
	dir := installedService(t, servicesDir, "ollama")

	r := new(system.MockRunner)
	r.On("Run", "docker", mock.Anything).Return(nil)

	m := NewManager(r, servicesDir)
	require.NoError(t, m.Remove(context.Background(), "ollama"))

	assert.NoDirExists(t, dir)
	assert.Contains(t, r.CommandLines(), "docker compose --project-directory "+dir+" down --volumes")
}

func TestInstalled(t *testing.T) {
	servicesDir := t.TempDir()
	m := NewManager(new(system.MockRunner), servicesDir)

	assert.False(t, m.Installed("ollama"))

	// A stray file with the service name is not an install.
	require.NoError(t, os.WriteFile(filepath.Join(servicesDir, "vllm"), []byte("junk"), 0644))
	assert.False(t, m.Installed("vllm"))

	require.NoError(t, os.MkdirAll(filepath.Join(servicesDir, "ollama"), 0755))
	assert.True(t, m.Installed("ollama"))
}
