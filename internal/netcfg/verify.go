package netcfg

import (
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// VerifyGateway pings the gateway after a netplan change. Run as root we can
// use privileged ICMP, which is the case for every command that rewrites the
// network config.
func VerifyGateway(gateway string) error {
	pinger, err := probing.NewPinger(gateway)
	if err != nil {
		return fmt.Errorf("failed to create pinger: %w", err)
	}

	pinger.Count = 3
	pinger.Timeout = 5 * time.Second
	pinger.SetPrivileged(true)

	if err := pinger.Run(); err != nil {
		return fmt.Errorf("ping to %s failed: %w", gateway, err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return fmt.Errorf("no replies from gateway %s (sent %d)", gateway, stats.PacketsSent)
	}
	return nil
}
