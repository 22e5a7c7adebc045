package cmd

import "github.com/spf13/viper"

// Default values for server paths and the monitor.
// These constants keep the menu and the subcommands consistent and are the
// fallbacks when /etc/gpu-server/p16ctl.yaml sets nothing.
const (
	// Filesystem Defaults
	DefaultStateDir    = "/etc/gpu-server"
	DefaultServicesDir = "/opt/gpu-services"

	// SSH Defaults
	DefaultSSHPort      = 22
	DefaultPasswordAuth = true

	// Monitor Defaults
	DefaultMonitorInterval = 2
	DefaultMonitorWebPort  = 8080

	// Clock Defaults
	DefaultNTPServer = "pool.ntp.org"

	// Self-update source
	githubRepo = "profzeller/p16-server-setup"
)

func init() {
	viper.SetDefault("state_dir", DefaultStateDir)
	viper.SetDefault("services_dir", DefaultServicesDir)
	viper.SetDefault("ssh_port", DefaultSSHPort)
	viper.SetDefault("ssh_password_auth", DefaultPasswordAuth)
	viper.SetDefault("monitor_interval", DefaultMonitorInterval)
	viper.SetDefault("monitor_web_port", DefaultMonitorWebPort)
	viper.SetDefault("ntp_server", DefaultNTPServer)
}
