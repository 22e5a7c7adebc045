// Package monitor implements the live GPU monitoring loop with optional
// JSONL recording and a localhost web dashboard.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/profzeller/p16-server-setup/internal/hardware"
	"github.com/profzeller/p16-server-setup/internal/ui"
)

// Options controls one monitoring run.
type Options struct {
	Interval time.Duration
	Record   bool
	LogPath  string
	Web      bool
	WebPort  int
}

// Run samples the GPUs every interval and renders them to the terminal
// until ctx is cancelled. With Record it appends every round to the sample
// log; with Web it serves the dashboard on localhost.
func Run(ctx context.Context, opts Options) error {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}

	var storage *Storage
	if opts.Record {
		var err error
		storage, err = NewStorage(opts.LogPath)
		if err != nil {
			return err
		}
	}

	var server *Server
	if opts.Web {
		server = NewServer(opts.WebPort, storage)
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		defer func() {
			if err := server.Stop(); err != nil {
				fmt.Printf("⚠️  Warning: failed to stop dashboard: %v\n", err)
			}
		}()
		fmt.Println(ui.InfoMsg("Dashboard available at %s", server.Addr()))
	}

	sessionID := uuid.New().String()
	started := time.Now()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		samples, err := hardware.SampleGpus()
		if err != nil {
			return fmt.Errorf("failed to sample GPUs: %w", err)
		}

		render(samples, started, opts)

		if server != nil {
			server.Observe(samples)
		}
		if storage != nil {
			rec := Record{Timestamp: time.Now(), SessionID: sessionID, GPUs: samples}
			if err := storage.Append(rec); err != nil {
				fmt.Printf("⚠️  Warning: failed to record sample: %v\n", err)
			}
		}

		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Println(ui.InfoMsg("Monitor stopped"))
			return nil
		case <-ticker.C:
		}
	}
}

func render(samples []hardware.GPUSample, started time.Time, opts Options) {
	// Clear the screen and home the cursor between rounds.
	fmt.Print("\033[H\033[2J")

	fmt.Println(ui.Header("GPU Monitor"))
	pairs := []ui.Pair{
		ui.KV("Interval", opts.Interval.String()),
		ui.KV("Running for", time.Since(started).Round(time.Second).String()),
	}
	if opts.Record {
		pairs = append(pairs, ui.KV("Recording to", opts.LogPath))
	}
	fmt.Print(ui.KeyValues("", pairs...))
	fmt.Println()

	if len(samples) == 0 {
		fmt.Println(ui.WarnMsg("No GPUs detected"))
		return
	}

	rows := make([][]string, 0, len(samples))
	for _, g := range samples {
		fan := "-"
		if g.FanSpeedPct > 0 {
			fan = fmt.Sprintf("%d%%", g.FanSpeedPct)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", g.Index),
			g.Name,
			fmt.Sprintf("%d%%", g.UtilizationPct),
			fmt.Sprintf("%d / %d MiB", g.MemoryUsedMiB, g.MemoryTotalMiB),
			fmt.Sprintf("%d°C", g.TemperatureC),
			fmt.Sprintf("%.1f W", g.PowerDrawW),
			fan,
		})
	}
	fmt.Println(ui.Table([]string{"GPU", "Name", "Util", "Memory", "Temp", "Power", "Fan"}, rows))
	fmt.Println()
	fmt.Println(ui.Muted("Press Ctrl+C to stop"))
}
