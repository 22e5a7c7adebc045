package system

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBootUnitPath(t *testing.T) {
	assert.Equal(t, "/etc/systemd/system/gpu-service-ollama.service", BootUnitPath("ollama"))
}

func TestRenderBootUnit(t *testing.T) {
	unit, err := RenderBootUnit("vllm", "/opt/gpu-services/vllm")
	require.NoError(t, err)

	assert.Contains(t, unit, "Description=GPU service vllm (docker compose)")
	assert.Contains(t, unit, "Requires=docker.service")
	assert.Contains(t, unit, "After=docker.service network-online.target")
	assert.Contains(t, unit, "WorkingDirectory=/opt/gpu-services/vllm")
	assert.Contains(t, unit, "ExecStart=/usr/bin/docker compose up -d")
	assert.Contains(t, unit, "ExecStop=/usr/bin/docker compose down")
	assert.Contains(t, unit, "WantedBy=multi-user.target")
	// Compose returns immediately; the unit must stay "active" regardless.
	assert.Contains(t, unit, "Type=oneshot")
	assert.Contains(t, unit, "RemainAfterExit=yes")
}

func TestUnitActive(t *testing.T) {
	ctx := context.Background()

	r := new(MockRunner)
	r.On("Output", "systemctl", []string{"is-active", "docker"}).Return("active\n", nil)
	assert.True(t, UnitActive(ctx, r, "docker"))

	r = new(MockRunner)
	r.On("Output", "systemctl", []string{"is-active", "docker"}).Return("inactive\n", nil)
	assert.False(t, UnitActive(ctx, r, "docker"))

	// systemctl exits non-zero for inactive units, which surfaces as an error.
	r = new(MockRunner)
	r.On("Output", "systemctl", []string{"is-active", "docker"}).Return("", errors.New("exit status 3"))
	assert.False(t, UnitActive(ctx, r, "docker"))
}

func TestUnitCommands(t *testing.T) {
	ctx := context.Background()
	r := new(MockRunner)
	r.On("Run", "systemctl", mock.Anything).Return(nil)

	require.NoError(t, DaemonReload(ctx, r))
	require.NoError(t, EnableUnit(ctx, r, "docker"))
	require.NoError(t, RestartUnit(ctx, r, "docker"))
	require.NoError(t, ReloadUnit(ctx, r, "ssh"))

	assert.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable --now docker",
		"systemctl restart docker",
		"systemctl reload ssh",
	}, r.CommandLines())
}

func TestRemoveBootUnitMissing(t *testing.T) {
	r := new(MockRunner)
	// No unit file on disk: nothing to disable, nothing to reload.
	require.NoError(t, RemoveBootUnit(context.Background(), r, "never-installed-test-unit"))
	assert.Empty(t, r.CommandLines())
}
