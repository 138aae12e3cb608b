// Package rrdata normalizes rrdata presentation strings so that values from
// the registry and values read back from a DNS provider compare equal under
// structural record equality. Each supported record type has its own
// normalizer; Normalize dispatches by type.
package rrdata

import (
	"fmt"
	"net/netip"

	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
)

// normalizeDomainName canonicalizes a domain-name-valued rrdata field
// (NS targets) to absolute lowercase form.
func normalizeDomainName(data string) (string, error) {
	name := dnsname.Absolute(data)
	if name == "" || name == "." {
		return "", fmt.Errorf("invalid domain name rrdata: %q", data)
	}
	return name, nil
}

// parseAddr parses an IP address in presentation form, rejecting zones
// ("fe80::1%eth0") and the empty string.
func parseAddr(data string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(data)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid IP rrdata %q: %w", data, err)
	}
	if addr.Zone() != "" {
		return netip.Addr{}, fmt.Errorf("invalid IP rrdata %q: zone not allowed", data)
	}
	return addr, nil
}
