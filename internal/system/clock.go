package system

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

const (
	// DefaultNTPServer is queried when no ntp_server is configured.
	DefaultNTPServer = "pool.ntp.org"

	// clockOffsetThreshold is the largest clock drift we accept before
	// warning. TLS handshakes and apt signatures start failing well past
	// a few seconds of skew.
	clockOffsetThreshold = 500 * time.Millisecond
)

// ClockStatus is the result of an NTP offset query.
type ClockStatus struct {
	Server    string
	Offset    time.Duration
	CheckedAt time.Time
}

// Healthy reports whether the local clock offset is within tolerance.
func (s ClockStatus) Healthy() bool {
	offset := s.Offset
	if offset < 0 {
		offset = -offset
	}
	return offset <= clockOffsetThreshold
}

// CheckClock queries an NTP server and returns the measured local clock
// offset.
func CheckClock(server string) (ClockStatus, error) {
	if server == "" {
		server = DefaultNTPServer
	}

	resp, err := ntp.Query(server)
	if err != nil {
		return ClockStatus{}, fmt.Errorf("NTP query to %s failed: %w", server, err)
	}
	if err := resp.Validate(); err != nil {
		return ClockStatus{}, fmt.Errorf("NTP response from %s invalid: %w", server, err)
	}

	return ClockStatus{
		Server:    server,
		Offset:    resp.ClockOffset,
		CheckedAt: time.Now(),
	}, nil
}
