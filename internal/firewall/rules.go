package firewall

import (
	"bytes"
	"fmt"
	"net/netip"
	"text/template"
)

// Marker comments delimiting the managed block in /etc/ufw/after.rules.
// Everything between them (inclusive) is owned by p16ctl and replaced on
// every apply.
const (
	BeginMarker = "# BEGIN DOCKER-USER UFW INTEGRATION"
	EndMarker   = "# END DOCKER-USER UFW INTEGRATION"
)

// privateRanges always short-circuit to RETURN so LAN and container traffic
// is never blocked, whatever the allowlist says.
var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// bridgeInterfaces are Docker's bridge devices. Traffic arriving on them is
// container-to-container and must pass.
var bridgeInterfaces = []string{"docker0", "br-+"}

// Rule is one FILTERS chain entry. Exactly one of Source/InInterface/
// Conntrack is set for match rules; a bare Target is the default rule.
type Rule struct {
	Conntrack   bool
	Source      netip.Prefix
	InInterface string
	Target      string // RETURN or DROP
}

// iptablesLine renders the rule in iptables-restore syntax.
func (r Rule) iptablesLine() string {
	switch {
	case r.Conntrack:
		return fmt.Sprintf("-A FILTERS -m conntrack --ctstate ESTABLISHED,RELATED -j %s", r.Target)
	case r.InInterface != "":
		return fmt.Sprintf("-A FILTERS -i %s -j %s", r.InInterface, r.Target)
	case r.Source.IsValid():
		return fmt.Sprintf("-A FILTERS -s %s -j %s", r.Source, r.Target)
	default:
		return fmt.Sprintf("-A FILTERS -j %s", r.Target)
	}
}

// BuildRules produces the FILTERS chain in its contract order:
// established/related first, then the private ranges, then the allowlist in
// file order, then the Docker bridges, and DROP last. First match wins
// through RETURN semantics.
func BuildRules(allowed []netip.Prefix) []Rule {
	rules := []Rule{{Conntrack: true, Target: "RETURN"}}

	for _, p := range privateRanges {
		rules = append(rules, Rule{Source: p, Target: "RETURN"})
	}
	for _, p := range allowed {
		rules = append(rules, Rule{Source: p, Target: "RETURN"})
	}
	for _, iface := range bridgeInterfaces {
		rules = append(rules, Rule{InInterface: iface, Target: "RETURN"})
	}

	return append(rules, Rule{Target: "DROP"})
}

type blockData struct {
	Begin string
	End   string
	Lines []string
}

var afterRulesTmpl = template.Must(template.New("after.rules").Parse(`{{.Begin}}
*filter
:DOCKER-USER - [0:0]
:FILTERS - [0:0]
-F DOCKER-USER
-A DOCKER-USER -j FILTERS
-F FILTERS
{{range .Lines}}{{.}}
{{end}}COMMIT
{{.End}}
`))

// RenderBlock renders the marker-delimited after.rules fragment for the
// given chain. The fragment flushes DOCKER-USER and FILTERS before
// re-populating so repeated reloads never stack rules.
func RenderBlock(rules []Rule) (string, error) {
	data := blockData{Begin: BeginMarker, End: EndMarker}
	for _, r := range rules {
		data.Lines = append(data.Lines, r.iptablesLine())
	}

	var buf bytes.Buffer
	if err := afterRulesTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render after.rules block: %w", err)
	}
	return buf.String(), nil
}
