// Package privacy truncates client identifiers before they reach logs or
// the audit trail.
package privacy

import "net/netip"

// AnonymizeIP masks the host portion of an IP address so the stored value
// no longer points at a single client: IPv4 keeps the /24 network, IPv6
// the /48 prefix. Empty input comes back as "unknown" and unparseable
// input as "invalid", so callers can record the result unconditionally.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	// Prefix also rejects zone-qualified addresses.
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
