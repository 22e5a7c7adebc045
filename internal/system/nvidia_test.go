package system

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInstallDriverSequence(t *testing.T) {
	r := new(MockRunner)
	r.On("Run", "apt-get", mock.Anything).Return(nil)
	r.On("Run", "ubuntu-drivers", []string{"autoinstall"}).Return(nil)

	require.NoError(t, InstallDriver(context.Background(), r))
	assert.Equal(t, []string{
		"apt-get install -y ubuntu-drivers-common",
		"ubuntu-drivers autoinstall",
	}, r.CommandLines())
}

func TestInstallContainerToolkitSequence(t *testing.T) {
	r := new(MockRunner)
	r.On("Run", "apt-get", mock.Anything).Return(nil)
	r.On("Run", "nvidia-ctk", mock.Anything).Return(nil)
	r.On("Run", "systemctl", mock.Anything).Return(nil)

	require.NoError(t, InstallContainerToolkit(context.Background(), r))
	assert.Equal(t, []string{
		"apt-get install -y nvidia-container-toolkit",
		"nvidia-ctk runtime configure --runtime=docker",
		"systemctl restart docker",
	}, r.CommandLines())
}

func TestInstallContainerToolkitStopsOnConfigureFailure(t *testing.T) {
	r := new(MockRunner)
	r.On("Run", "apt-get", mock.Anything).Return(nil)
	r.On("Run", "nvidia-ctk", mock.Anything).Return(errors.New("no docker config"))

	err := InstallContainerToolkit(context.Background(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NVIDIA runtime")

	for _, line := range r.CommandLines() {
		assert.NotContains(t, line, "systemctl", "docker must not be restarted after a failed configure")
	}
}

func TestKernelModuleLoadedUnknownModule(t *testing.T) {
	loaded, err := KernelModuleLoaded("p16ctl_test_module_that_cannot_exist")
	require.NoError(t, err)
	assert.False(t, loaded)
}
