package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() Config {
	return Config{
		StateDir:        "/etc/gpu-server",
		ServicesDir:     "/opt/gpu-services",
		SSHPort:         22,
		SSHPasswordAuth: true,
		MonitorInterval: 2,
		MonitorWebPort:  8080,
		NTPServer:       "pool.ntp.org",
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty state dir", mutate: func(c *Config) { c.StateDir = "" }, wantErr: "state_dir"},
		{name: "relative state dir", mutate: func(c *Config) { c.StateDir = "gpu-server" }, wantErr: "absolute"},
		{name: "empty services dir", mutate: func(c *Config) { c.ServicesDir = "" }, wantErr: "services_dir"},
		{name: "relative services dir", mutate: func(c *Config) { c.ServicesDir = "./services" }, wantErr: "absolute"},
		{name: "ssh port zero", mutate: func(c *Config) { c.SSHPort = 0 }, wantErr: "ssh_port"},
		{name: "ssh port too high", mutate: func(c *Config) { c.SSHPort = 70000 }, wantErr: "ssh_port"},
		{name: "web port zero", mutate: func(c *Config) { c.MonitorWebPort = 0 }, wantErr: "monitor_web_port"},
		{name: "interval zero", mutate: func(c *Config) { c.MonitorInterval = 0 }, wantErr: "monitor_interval"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadConfigFromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("state_dir", "/etc/gpu-server")
	viper.Set("services_dir", "/opt/gpu-services")
	viper.Set("ssh_port", 2222)
	viper.Set("ssh_password_auth", false)
	viper.Set("monitor_interval", 5)
	viper.Set("monitor_web_port", 9090)
	viper.Set("ntp_server", "ntp.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/etc/gpu-server", cfg.StateDir)
	assert.Equal(t, "/opt/gpu-services", cfg.ServicesDir)
	assert.Equal(t, 2222, cfg.SSHPort)
	assert.False(t, cfg.SSHPasswordAuth)
	assert.Equal(t, 5, cfg.MonitorInterval)
	assert.Equal(t, 9090, cfg.MonitorWebPort)
	assert.Equal(t, "ntp.example.com", cfg.NTPServer)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("state_dir", "relative/path")
	viper.Set("services_dir", "/opt/gpu-services")
	viper.Set("ssh_port", 22)
	viper.Set("monitor_interval", 2)
	viper.Set("monitor_web_port", 8080)

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestDerivedPaths(t *testing.T) {
	cfg := validTestConfig()

	assert.Equal(t, "/etc/gpu-server/.setup-complete", cfg.MarkerPath())
	assert.Equal(t, "/etc/gpu-server/allowed-ips.conf", cfg.AllowlistPath())
	assert.Equal(t, "/etc/gpu-server/setup-report.json", cfg.ReportPath())
	assert.Equal(t, "/etc/gpu-server/gpu-samples.jsonl", cfg.MonitorLogPath())
	assert.Equal(t, "/opt/gpu-services/vllm", cfg.ServiceDir("vllm"))
}
