package domain

import (
	"fmt"
	"net/netip"
	"strings"
)

// DomainData is the registry's view of one delegated domain at a fixed point
// in time: the inputs from which its NS and DS record sets are derived.
type DomainData struct {
	Name        string
	Zone        string
	Active      bool
	Nameservers []string
	DS          []DSData
}

// DSData is one delegation-signer entry attached to a domain.
type DSData struct {
	KeyTag     uint16
	Algorithm  uint8
	DigestType uint8
	Digest     string
}

// Rdata renders the entry in DS presentation form, digest uppercased.
func (d DSData) Rdata() string {
	return fmt.Sprintf("%d %d %d %s", d.KeyTag, d.Algorithm, d.DigestType, strings.ToUpper(d.Digest))
}

// HostData is the registry's view of one host object: the addresses that
// become glue when the host serves an in-bailiwick delegation.
type HostData struct {
	Name      string
	Addresses []netip.Addr
}

// ZoneConfig describes one managed zone. TTL fields are seconds; zero means
// the service-wide default applies.
type ZoneConfig struct {
	Name       string
	WriterName string
	TTLNS      uint32
	TTLDS      uint32
	TTLGlue    uint32
}
