package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the server-wide settings for p16ctl
type Config struct {
	StateDir        string `mapstructure:"state_dir"`
	ServicesDir     string `mapstructure:"services_dir"`
	SSHPort         int    `mapstructure:"ssh_port"`
	SSHPasswordAuth bool   `mapstructure:"ssh_password_auth"`
	MonitorInterval int    `mapstructure:"monitor_interval"`
	MonitorWebPort  int    `mapstructure:"monitor_web_port"`
	NTPServer       string `mapstructure:"ntp_server"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state_dir cannot be empty")
	}
	if !filepath.IsAbs(c.StateDir) {
		return fmt.Errorf("state_dir '%s' must be an absolute path", c.StateDir)
	}

	if c.ServicesDir == "" {
		return fmt.Errorf("services_dir cannot be empty")
	}
	if !filepath.IsAbs(c.ServicesDir) {
		return fmt.Errorf("services_dir '%s' must be an absolute path", c.ServicesDir)
	}

	if c.SSHPort < 1 || c.SSHPort > 65535 {
		return fmt.Errorf("invalid ssh_port %d, must be between 1-65535", c.SSHPort)
	}

	if c.MonitorWebPort < 1 || c.MonitorWebPort > 65535 {
		return fmt.Errorf("invalid monitor_web_port %d, must be between 1-65535", c.MonitorWebPort)
	}

	if c.MonitorInterval < 1 {
		return fmt.Errorf("invalid monitor_interval %d, must be at least 1 second", c.MonitorInterval)
	}

	return nil
}

// MarkerPath returns the path of the file that records a completed setup.
func (c *Config) MarkerPath() string {
	return filepath.Join(c.StateDir, ".setup-complete")
}

// AllowlistPath returns the path of the allowed-IPs file consumed by the
// firewall integration.
func (c *Config) AllowlistPath() string {
	return filepath.Join(c.StateDir, "allowed-ips.conf")
}

// ReportPath returns the path of the JSON report written after setup.
func (c *Config) ReportPath() string {
	return filepath.Join(c.StateDir, "setup-report.json")
}

// MonitorLogPath returns the path of the JSONL file that records GPU samples.
func (c *Config) MonitorLogPath() string {
	return filepath.Join(c.StateDir, "gpu-samples.jsonl")
}

// ServiceDir returns the installation directory for a named service.
func (c *Config) ServiceDir(name string) string {
	return filepath.Join(c.ServicesDir, name)
}
