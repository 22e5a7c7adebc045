package netcfg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/procfs/sysfs"
)

// Interface is one physical NIC candidate for static addressing.
type Interface struct {
	Name      string
	MAC       string
	OperState string
	SpeedMbps int64 // -1 when the link is down or speed is unknown
}

// virtualPrefixes are interface names that never make sense for the wizard:
// loopback, Docker bridges and container veth pairs.
var virtualPrefixes = []string{"lo", "docker", "br-", "veth", "virbr", "tun", "tap", "wg"}

// ListInterfaces discovers host NICs through sysfs, filtering out loopback
// and container-side devices.
func ListInterfaces() ([]Interface, error) {
	fs, err := sysfs.NewFS("/sys")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sysfs: %v", err)
	}

	netClass, err := fs.NetClass()
	if err != nil {
		return nil, fmt.Errorf("failed to read network class information: %v", err)
	}

	var out []Interface
	for name, iface := range netClass {
		if isVirtual(name) {
			continue
		}

		entry := Interface{
			Name:      name,
			MAC:       iface.Address,
			OperState: iface.OperState,
			SpeedMbps: -1,
		}
		if iface.Speed != nil && *iface.Speed > 0 {
			entry.SpeedMbps = *iface.Speed
		}
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func isVirtual(name string) bool {
	for _, p := range virtualPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
