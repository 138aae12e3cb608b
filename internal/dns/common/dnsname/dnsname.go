// Package dnsname provides canonicalization and hierarchy helpers for DNS
// names as used by the publish pipeline. All staged and fetched names are
// normalized to absolute (trailing-dot) form so that set equality across
// fetch/stage boundaries is well defined.
package dnsname

import (
	"strings"

	"golang.org/x/net/idna"
)

// Absolute returns the canonical absolute form of a DNS name:
// - Trimmed of surrounding whitespace
// - Lowercased
// - Unicode labels converted to their ASCII (A-label) form
// - Exactly one trailing dot
func Absolute(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	if name == "" {
		return ""
	}
	trimmed := name
	for strings.HasSuffix(trimmed, ".") {
		trimmed = strings.TrimSuffix(trimmed, ".")
	}
	if trimmed == "" {
		return "."
	}
	if !isASCII(trimmed) {
		if ascii, err := idna.Lookup.ToASCII(trimmed); err == nil {
			trimmed = ascii
		}
	}
	return trimmed + "."
}

// Relative returns the name without any trailing dots, for display and for
// provider APIs that reject absolute form.
func Relative(name string) string {
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// IsSubdomain reports whether name is strictly below zone in the DNS tree.
// The zone apex itself is not its own subdomain. Both arguments may be given
// in relative or absolute form.
func IsSubdomain(name, zone string) bool {
	n := Absolute(name)
	z := Absolute(zone)
	if n == z || z == "." {
		return false
	}
	return strings.HasSuffix(n, "."+z)
}

// SuperordinateDomain returns the registered domain name a host falls under,
// given the zone that contains it: the last zone-labels+1 labels of the host
// name. For a host directly below the zone apex the host name itself is
// returned. The second return value is false when the host is not below zone.
func SuperordinateDomain(host, zone string) (string, bool) {
	h := Absolute(host)
	z := Absolute(zone)
	if !IsSubdomain(h, z) {
		return "", false
	}
	rel := strings.TrimSuffix(h, "."+z)
	if i := strings.LastIndexByte(rel, '.'); i >= 0 {
		rel = rel[i+1:]
	}
	return rel + "." + z, true
}

// Labels splits an absolute or relative name into its labels, root excluded.
func Labels(name string) []string {
	name = Relative(Absolute(name))
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}

// isASCII reports whether s contains only ASCII bytes, the fast path that
// skips IDNA mapping entirely.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
