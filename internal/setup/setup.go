// Package setup runs the first-boot provisioning sequence: packages,
// NVIDIA driver, Docker, container toolkit, SSH, firewall and power policy.
package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/profzeller/p16-server-setup/internal/config"
	"github.com/profzeller/p16-server-setup/internal/firewall"
	"github.com/profzeller/p16-server-setup/internal/services"
	"github.com/profzeller/p16-server-setup/internal/system"
)

// Step is one provisioning action. Check reports whether the step is
// already satisfied; when it returns true the step is skipped and the
// reason shown to the operator.
type Step struct {
	Name  string
	Check func(ctx context.Context) (bool, string)
	Run   func(ctx context.Context) error
}

// StepResult records the outcome of one step for the setup report.
type StepResult struct {
	Name            string  `json:"name"`
	Status          string  `json:"status"` // completed, skipped or failed
	Detail          string  `json:"detail,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Report is persisted as JSON after every setup run.
type Report struct {
	ID             string       `json:"id"`
	Version        string       `json:"version"`
	Hostname       string       `json:"hostname"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	Steps          []StepResult `json:"steps"`
	RebootRequired bool         `json:"reboot_required"`
	Success        bool         `json:"success"`
}

// Setup drives the provisioning sequence.
type Setup struct {
	Runner  system.Runner
	Config  *config.Config
	Version string

	// Force ignores the per-step checks and re-runs everything.
	Force bool

	// RebootRequired is set when a step installed something that only
	// takes effect after a reboot (the NVIDIA kernel driver).
	RebootRequired bool
}

// New wires a Setup against the real system.
func New(r system.Runner, cfg *config.Config, version string) *Setup {
	return &Setup{Runner: r, Config: cfg, Version: version}
}

// Done reports whether a previous setup run completed on this machine.
func Done(markerPath string) bool {
	_, err := os.Stat(markerPath)
	return err == nil
}

// Run executes every step in order, writes the JSON report and drops the
// completion marker. The report is written even when a step fails so the
// operator can see how far setup got.
func (s *Setup) Run(ctx context.Context) (*Report, error) {
	hostname, _ := os.Hostname()
	report := &Report{
		ID:        uuid.New().String(),
		Version:   s.Version,
		Hostname:  hostname,
		StartedAt: time.Now(),
	}

	fmt.Println("🚀 Starting GPU server setup...")
	fmt.Println()

	steps := s.Steps()
	var failure error
	for i, step := range steps {
		fmt.Printf("--- Step %d/%d: %s ---\n", i+1, len(steps), step.Name)

		if !s.Force && step.Check != nil {
			if ok, reason := step.Check(ctx); ok {
				fmt.Printf("✅ %s\n\n", reason)
				report.Steps = append(report.Steps, StepResult{
					Name:   step.Name,
					Status: "skipped",
					Detail: reason,
				})
				continue
			}
		}

		start := time.Now()
		err := step.Run(ctx)
		result := StepResult{
			Name:            step.Name,
			Status:          "completed",
			DurationSeconds: time.Since(start).Seconds(),
		}
		if err != nil {
			result.Status = "failed"
			result.Detail = err.Error()
			report.Steps = append(report.Steps, result)
			failure = fmt.Errorf("step %q failed: %w", step.Name, err)
			break
		}
		report.Steps = append(report.Steps, result)
		fmt.Printf("✅ %s completed\n\n", step.Name)
	}

	report.FinishedAt = time.Now()
	report.RebootRequired = s.RebootRequired
	report.Success = failure == nil

	if err := s.saveReport(report); err != nil {
		fmt.Printf("⚠️  Warning: failed to write setup report: %v\n", err)
	}

	if failure != nil {
		return report, failure
	}

	if err := s.writeMarker(); err != nil {
		return report, err
	}

	fmt.Println("🎉 GPU server setup completed successfully!")
	if s.RebootRequired {
		fmt.Println("💡 A reboot is required to load the NVIDIA driver.")
	}
	return report, nil
}

func (s *Setup) saveReport(report *Report) error {
	path := s.Config.ReportPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (s *Setup) writeMarker() error {
	path := s.Config.MarkerPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	content := fmt.Sprintf("completed %s by p16ctl %s\n",
		time.Now().Format(time.RFC3339), s.Version)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write setup marker: %w", err)
	}
	return nil
}

// firewallManager builds the firewall manager used by the firewall step.
func (s *Setup) firewallManager() *firewall.Manager {
	return firewall.NewManager(s.Runner, s.Config.AllowlistPath(), s.Config.SSHPort, services.Ports())
}