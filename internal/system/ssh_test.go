package system

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSSHDropIn(t *testing.T) {
	content := renderSSHDropIn(SSHSettings{Port: 2222, PasswordAuthentication: false})

	assert.True(t, strings.HasPrefix(content, "# Managed by p16ctl"))
	assert.Contains(t, content, "Port 2222\n")
	assert.Contains(t, content, "PermitRootLogin no\n")
	assert.Contains(t, content, "PasswordAuthentication no\n")
	assert.Contains(t, content, "X11Forwarding no\n")
	assert.Contains(t, content, "ClientAliveInterval 120\n")
}

func TestRenderSSHDropInPasswordAuthStaysOn(t *testing.T) {
	content := renderSSHDropIn(SSHSettings{Port: 22, PasswordAuthentication: true})

	assert.Contains(t, content, "PasswordAuthentication yes\n")
	// Root login stays off no matter what the config says.
	assert.Contains(t, content, "PermitRootLogin no\n")
}
