package netcfg

import "testing"

func TestIsVirtual(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"lo", true},
		{"docker0", true},
		{"br-1a2b3c4d", true},
		{"veth8aa1b2", true},
		{"virbr0", true},
		{"wg0", true},
		{"tun0", true},
		{"enp3s0", false},
		{"eth0", false},
		{"eno1", false},
		{"wlp2s0", false},
	}

	for _, tc := range cases {
		if got := isVirtual(tc.name); got != tc.want {
			t.Errorf("isVirtual(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
