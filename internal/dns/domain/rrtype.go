package domain

import (
	"fmt"
	"strings"
)

// RRType represents a DNS resource record type published by the pipeline.
// Only the types a registry is authoritative for in its TLD zones are
// supported: delegation (NS), secure delegation (DS), and glue (A/AAAA).
// See IANA DNS Parameters for assigned codes.
type RRType uint16

// DNS Resource Record Type constants
const (
	RRTypeA    RRType = 1  // A - IPv4 glue address
	RRTypeNS   RRType = 2  // NS - Name server delegation
	RRTypeAAAA RRType = 28 // AAAA - IPv6 glue address
	RRTypeDS   RRType = 43 // DS - Delegation signer
)

// IsValid returns true if the RRType is one of the published types.
func (t RRType) IsValid() bool {
	switch t {
	case RRTypeA, RRTypeNS, RRTypeAAAA, RRTypeDS:
		return true
	default:
		return false
	}
}

// String returns the textual representation of the RRType.
// For unknown types, it returns "UNKNOWN(<value>)".
func (t RRType) String() string {
	switch t {
	case RRTypeA:
		return "A"
	case RRTypeNS:
		return "NS"
	case RRTypeAAAA:
		return "AAAA"
	case RRTypeDS:
		return "DS"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}

// RRTypeFromString converts a textual record type to an RRType value,
// accepting any letter case. Unknown names return 0, which is never a valid
// RRType.
func RRTypeFromString(s string) RRType {
	switch strings.ToUpper(s) {
	case "A":
		return RRTypeA
	case "NS":
		return RRTypeNS
	case "AAAA":
		return RRTypeAAAA
	case "DS":
		return RRTypeDS
	default:
		return 0
	}
}

// PublishedTypes returns every RRType the pipeline manages, in code order.
// Gateways use this to restrict provider listings to records this system owns.
func PublishedTypes() []RRType {
	return []RRType{RRTypeA, RRTypeNS, RRTypeAAAA, RRTypeDS}
}
