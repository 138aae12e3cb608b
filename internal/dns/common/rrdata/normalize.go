package rrdata

import (
	"fmt"

	"github.com/registrykit/zonepub/internal/dns/domain"
)

// Normalize normalizes a single rrdata value based on its record type.
func Normalize(rrType domain.RRType, data string) (string, error) {
	switch rrType {
	case domain.RRTypeA: // 1
		return normalizeAData(data)
	case domain.RRTypeNS: // 2
		return normalizeNSData(data)
	case domain.RRTypeAAAA: // 28
		return normalizeAAAAData(data)
	case domain.RRTypeDS: // 43
		return normalizeDSData(data)
	default:
		return "", fmt.Errorf("unsupported record type: %s", rrType)
	}
}

// NormalizeSet normalizes every value in a set, preserving order. It fails on
// the first invalid value.
func NormalizeSet(rrType domain.RRType, values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		n, err := Normalize(rrType, v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Record builds a ResourceRecord from raw presentation values, normalizing
// each one first. This is the constructor every record producer goes through
// so that diffing always compares canonical strings.
func Record(name string, rrType domain.RRType, ttl uint32, values []string) (domain.ResourceRecord, error) {
	normalized, err := NormalizeSet(rrType, values)
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	return domain.NewRecord(name, rrType, ttl, normalized)
}
