package firewall

import (
	"net/netip"
	"strings"
)

// Verdict is the outcome of walking the FILTERS chain for a packet.
type Verdict int

const (
	// Allowed means a RETURN rule matched and the packet passes back to
	// DOCKER-USER.
	Allowed Verdict = iota
	// Dropped means the packet fell through to the default DROP.
	Dropped
)

func (v Verdict) String() string {
	if v == Allowed {
		return "ALLOWED"
	}
	return "DROPPED"
}

// Packet describes the attributes the FILTERS chain matches on.
type Packet struct {
	Source      netip.Addr
	InInterface string
	Established bool
}

// Evaluate walks the rules first-match, exactly as iptables would, and
// returns the verdict together with the matching rule. The boolean result of
// the chain mirrors runtime behavior closely enough to answer "would this
// source reach a published port".
func Evaluate(rules []Rule, pkt Packet) (Verdict, Rule) {
	for _, r := range rules {
		if !matches(r, pkt) {
			continue
		}
		if r.Target == "RETURN" {
			return Allowed, r
		}
		return Dropped, r
	}
	// A chain without a terminal rule falls back to DOCKER-USER's default,
	// which accepts. BuildRules always appends DROP, so only hand-built rule
	// sets reach this.
	return Allowed, Rule{}
}

func matches(r Rule, pkt Packet) bool {
	switch {
	case r.Conntrack:
		return pkt.Established
	case r.InInterface != "":
		return interfaceMatches(r.InInterface, pkt.InInterface)
	case r.Source.IsValid():
		return pkt.Source.IsValid() && r.Source.Contains(pkt.Source)
	default:
		return true
	}
}

// interfaceMatches honors iptables' trailing '+' wildcard.
func interfaceMatches(pattern, iface string) bool {
	if iface == "" {
		return false
	}
	if strings.HasSuffix(pattern, "+") {
		return strings.HasPrefix(iface, strings.TrimSuffix(pattern, "+"))
	}
	return pattern == iface
}
