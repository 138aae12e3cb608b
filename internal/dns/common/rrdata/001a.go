package rrdata

import (
	"fmt"
	"net/netip"
)

// normalizeAData normalizes an A record rrdata string.
func normalizeAData(data string) (string, error) {
	// data = "192.0.2.1"
	addr, err := parseAddr(data)
	if err != nil {
		return "", err
	}
	if !addr.Is4() {
		return "", fmt.Errorf("invalid A record IP: %s", data)
	}
	return addr.String(), nil
}

// AddrRdata renders an address as A or AAAA rrdata, unmapping any 4-in-6
// form so the same address always yields the same string.
func AddrRdata(addr netip.Addr) string {
	if addr.Is4In6() {
		return netip.AddrFrom4(addr.As4()).String()
	}
	return addr.String()
}
