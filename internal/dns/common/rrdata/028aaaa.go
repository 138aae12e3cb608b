package rrdata

import "fmt"

// normalizeAAAAData normalizes an AAAA record rrdata string to RFC 5952
// canonical form, so "2001:DB8:0:0::1" and "2001:db8::1" compare equal.
func normalizeAAAAData(data string) (string, error) {
	// data = "2001:db8::1"
	addr, err := parseAddr(data)
	if err != nil {
		return "", err
	}
	if !addr.Is6() || addr.Is4In6() {
		return "", fmt.Errorf("invalid AAAA record IP: %s", data)
	}
	return addr.String(), nil
}
