package firewall

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRulesOrder(t *testing.T) {
	allowed := []netip.Prefix{
		netip.MustParsePrefix("203.0.113.0/24"),
		netip.MustParsePrefix("198.51.100.7/32"),
	}

	rules := BuildRules(allowed)
	require.Len(t, rules, 10)

	// Established traffic passes before anything else is considered.
	assert.True(t, rules[0].Conntrack)
	assert.Equal(t, "RETURN", rules[0].Target)

	// Private ranges come next, in fixed order.
	wantPrivate := []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	for i, want := range wantPrivate {
		assert.Equal(t, want, rules[1+i].Source.String())
		assert.Equal(t, "RETURN", rules[1+i].Target)
	}

	// Allowlist entries keep file order.
	assert.Equal(t, "203.0.113.0/24", rules[5].Source.String())
	assert.Equal(t, "198.51.100.7/32", rules[6].Source.String())

	// Docker bridges, then the terminal DROP.
	assert.Equal(t, "docker0", rules[7].InInterface)
	assert.Equal(t, "br-+", rules[8].InInterface)
	assert.Equal(t, "DROP", rules[9].Target)
	assert.False(t, rules[9].Conntrack)
	assert.False(t, rules[9].Source.IsValid())
}

func TestRenderBlockEmptyAllowlist(t *testing.T) {
	block, err := RenderBlock(BuildRules(nil))
	require.NoError(t, err)

	want := `# BEGIN DOCKER-USER UFW INTEGRATION
*filter
:DOCKER-USER - [0:0]
:FILTERS - [0:0]
-F DOCKER-USER
-A DOCKER-USER -j FILTERS
-F FILTERS
-A FILTERS -m conntrack --ctstate ESTABLISHED,RELATED -j RETURN
-A FILTERS -s 127.0.0.0/8 -j RETURN
-A FILTERS -s 10.0.0.0/8 -j RETURN
-A FILTERS -s 172.16.0.0/12 -j RETURN
-A FILTERS -s 192.168.0.0/16 -j RETURN
-A FILTERS -i docker0 -j RETURN
-A FILTERS -i br-+ -j RETURN
-A FILTERS -j DROP
COMMIT
# END DOCKER-USER UFW INTEGRATION
`
	assert.Equal(t, want, block)
}

func TestRenderBlockAllowlistPlacement(t *testing.T) {
	allowed := []netip.Prefix{netip.MustParsePrefix("203.0.113.0/24")}
	block, err := RenderBlock(BuildRules(allowed))
	require.NoError(t, err)

	allowIdx := strings.Index(block, "-A FILTERS -s 203.0.113.0/24 -j RETURN")
	require.GreaterOrEqual(t, allowIdx, 0, "allowlist rule missing from block")

	// The allow rule sits after the last private range and before the
	// bridges and the final DROP.
	assert.Less(t, strings.Index(block, "-s 192.168.0.0/16"), allowIdx)
	assert.Greater(t, strings.Index(block, "-i docker0"), allowIdx)
	assert.Greater(t, strings.Index(block, "-A FILTERS -j DROP"), allowIdx)

	// The chains are flushed before rules are appended, so reloads cannot
	// stack duplicates.
	assert.Less(t, strings.Index(block, "-F FILTERS"), allowIdx)
	assert.Less(t, strings.Index(block, "-F DOCKER-USER"), strings.Index(block, "-A DOCKER-USER -j FILTERS"))
}

func TestRuleIptablesLine(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
		want string
	}{
		{
			name: "conntrack",
			rule: Rule{Conntrack: true, Target: "RETURN"},
			want: "-A FILTERS -m conntrack --ctstate ESTABLISHED,RELATED -j RETURN",
		},
		{
			name: "source",
			rule: Rule{Source: netip.MustParsePrefix("10.0.0.0/8"), Target: "RETURN"},
			want: "-A FILTERS -s 10.0.0.0/8 -j RETURN",
		},
		{
			name: "interface",
			rule: Rule{InInterface: "br-+", Target: "RETURN"},
			want: "-A FILTERS -i br-+ -j RETURN",
		},
		{
			name: "default drop",
			rule: Rule{Target: "DROP"},
			want: "-A FILTERS -j DROP",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.rule.iptablesLine())
		})
	}
}
