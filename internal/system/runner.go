// Package system wraps the host tools p16ctl drives: apt, systemd, sshd,
// logind and the system clock. All external commands go through the Runner
// interface so callers can be tested without touching the host.
package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes external commands on behalf of the tool.
type Runner interface {
	// Run executes a command and streams its output to the terminal.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes a command and returns its captured stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct {
	// Env holds extra KEY=VALUE entries appended to the environment of
	// every command (e.g. DEBIAN_FRONTEND=noninteractive).
	Env []string
}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	// Stream stdout and stderr to the user's terminal in real-time
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command '%s %s' failed: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr

	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("command '%s %s' failed: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// CommandExists checks if a command is available in the system PATH
func CommandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
