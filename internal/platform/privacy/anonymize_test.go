package privacy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnonymizeIPMasksHostBits(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ipv4 keeps /24 network", "192.168.1.47", "192.168.1.0"},
		{"ipv4 already on boundary", "10.0.0.0", "10.0.0.0"},
		{"ipv4 high last octet", "172.16.50.255", "172.16.50.0"},
		{"ipv4 loopback", "127.0.0.1", "127.0.0.0"},
		{"ipv4-mapped ipv6 treated as ipv4", "::ffff:203.0.113.9", "203.0.113.0"},
		{"ipv6 full form keeps /48", "2001:db8:85a3:0000:0000:8a2e:0370:7334", "2001:db8:85a3::"},
		{"ipv6 compressed form", "2001:db8:85a3::8a2e:370:7334", "2001:db8:85a3::"},
		{"ipv6 loopback", "::1", "::"},
		{"ipv6 link-local", "fe80::1", "fe80::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, AnonymizeIP(tt.in))
		})
	}
}

func TestAnonymizeIPSentinels(t *testing.T) {
	require.Equal(t, "unknown", AnonymizeIP(""))
	require.Equal(t, "unknown", AnonymizeIP("unknown"))

	require.Equal(t, "invalid", AnonymizeIP("not-an-ip"))
	require.Equal(t, "invalid", AnonymizeIP("192.168.1"))
	require.Equal(t, "invalid", AnonymizeIP("203.0.113.9:443"))
	require.Equal(t, "invalid", AnonymizeIP("fe80::1%eth0"))
}

func TestAnonymizeIPCollapsesWholeNetwork(t *testing.T) {
	// Clients behind the same /24 become indistinguishable; neighbouring
	// networks stay apart.
	for _, ip := range []string{"192.168.1.1", "192.168.1.100", "192.168.1.255"} {
		require.Equal(t, "192.168.1.0", AnonymizeIP(ip))
	}
	require.NotEqual(t, AnonymizeIP("192.168.1.47"), AnonymizeIP("192.168.2.47"))
}
