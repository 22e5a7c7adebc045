package firewall

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateVerdicts(t *testing.T) {
	rules := BuildRules([]netip.Prefix{netip.MustParsePrefix("203.0.113.0/24")})

	cases := []struct {
		name string
		pkt  Packet
		want Verdict
	}{
		{
			name: "allowlisted source",
			pkt:  Packet{Source: netip.MustParseAddr("203.0.113.7")},
			want: Allowed,
		},
		{
			name: "outside the allowlist",
			pkt:  Packet{Source: netip.MustParseAddr("203.0.114.7")},
			want: Dropped,
		},
		{
			name: "public internet",
			pkt:  Packet{Source: netip.MustParseAddr("8.8.8.8")},
			want: Dropped,
		},
		{
			name: "lan host",
			pkt:  Packet{Source: netip.MustParseAddr("192.168.1.20")},
			want: Allowed,
		},
		{
			name: "ten-net host",
			pkt:  Packet{Source: netip.MustParseAddr("10.0.0.5")},
			want: Allowed,
		},
		{
			name: "loopback",
			pkt:  Packet{Source: netip.MustParseAddr("127.0.0.1")},
			want: Allowed,
		},
		{
			name: "established return traffic from anywhere",
			pkt:  Packet{Source: netip.MustParseAddr("8.8.8.8"), Established: true},
			want: Allowed,
		},
		{
			name: "docker default bridge",
			pkt:  Packet{Source: netip.MustParseAddr("8.8.8.8"), InInterface: "docker0"},
			want: Allowed,
		},
		{
			name: "compose project bridge",
			pkt:  Packet{Source: netip.MustParseAddr("8.8.8.8"), InInterface: "br-1a2b3c4d"},
			want: Allowed,
		},
		{
			name: "uplink interface gets no pass",
			pkt:  Packet{Source: netip.MustParseAddr("8.8.8.8"), InInterface: "eth0"},
			want: Dropped,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict, _ := Evaluate(rules, tc.pkt)
			assert.Equal(t, tc.want, verdict)
		})
	}
}

func TestEvaluateReportsMatchedRule(t *testing.T) {
	office := netip.MustParsePrefix("203.0.113.0/24")
	rules := BuildRules([]netip.Prefix{office})

	verdict, rule := Evaluate(rules, Packet{Source: netip.MustParseAddr("203.0.113.7")})
	assert.Equal(t, Allowed, verdict)
	assert.Equal(t, office, rule.Source)

	verdict, rule = Evaluate(rules, Packet{Source: netip.MustParseAddr("8.8.8.8"), Established: true})
	assert.Equal(t, Allowed, verdict)
	assert.True(t, rule.Conntrack)

	verdict, rule = Evaluate(rules, Packet{Source: netip.MustParseAddr("8.8.8.8")})
	assert.Equal(t, Dropped, verdict)
	assert.Equal(t, "DROP", rule.Target)
	assert.False(t, rule.Source.IsValid())
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	// 10.0.0.5 is covered by the private range and could also be
	// allowlisted; the private-range rule must win because it comes first.
	rules := BuildRules([]netip.Prefix{netip.MustParsePrefix("10.0.0.0/24")})

	_, rule := Evaluate(rules, Packet{Source: netip.MustParseAddr("10.0.0.5")})
	assert.Equal(t, "10.0.0.0/8", rule.Source.String())
}

func TestInterfaceMatches(t *testing.T) {
	cases := []struct {
		pattern string
		iface   string
		want    bool
	}{
		{"docker0", "docker0", true},
		{"docker0", "docker1", false},
		{"br-+", "br-1a2b3c4d", true},
		{"br-+", "br-", true},
		{"br-+", "bridge0", false},
		{"br-+", "", false},
		{"eth+", "eth0", true},
	}

	for _, tc := range cases {
		if got := interfaceMatches(tc.pattern, tc.iface); got != tc.want {
			t.Errorf("interfaceMatches(%q, %q) = %v, want %v", tc.pattern, tc.iface, got, tc.want)
		}
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "ALLOWED", Allowed.String())
	assert.Equal(t, "DROPPED", Dropped.String())
}
