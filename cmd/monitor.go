package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/profzeller/p16-server-setup/internal/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch GPU utilization live",
	Long: `Render a live GPU table in the terminal until interrupted. Optionally
append every sample to ` + DefaultStateDir + `/gpu-samples.jsonl and serve a
localhost dashboard with Prometheus metrics.

Examples:
  p16ctl monitor
  p16ctl monitor --interval 5 --record
  p16ctl monitor --web --web-port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		record, _ := cmd.Flags().GetBool("record")
		web, _ := cmd.Flags().GetBool("web")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return monitor.Run(ctx, monitor.Options{
			Interval: time.Duration(cfg.MonitorInterval) * time.Second,
			Record:   record,
			LogPath:  cfg.MonitorLogPath(),
			Web:      web,
			WebPort:  cfg.MonitorWebPort,
		})
	},
}

func init() {
	monitorCmd.Flags().Int("interval", DefaultMonitorInterval, "Seconds between samples")
	monitorCmd.Flags().Bool("record", false, "Append samples to the JSONL log")
	monitorCmd.Flags().Bool("web", false, "Serve the localhost dashboard and /metrics")
	monitorCmd.Flags().Int("web-port", DefaultMonitorWebPort, "Dashboard port (binds 127.0.0.1 only)")

	_ = viper.BindPFlag("monitor_interval", monitorCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("monitor_web_port", monitorCmd.Flags().Lookup("web-port"))
}
