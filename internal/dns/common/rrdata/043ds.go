package rrdata

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// normalizeDSData normalizes a DS record rrdata string to
// "keyTag algorithm digestType DIGEST" with single spaces and an uppercase
// hex digest.
func normalizeDSData(data string) (string, error) {
	// data = "12345 8 2 49FD46E6C4B45C3CED6F"
	fields := strings.Fields(data)
	if len(fields) != 4 {
		return "", fmt.Errorf("invalid DS rrdata %q: want 4 fields, got %d", data, len(fields))
	}
	keyTag, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return "", fmt.Errorf("invalid DS key tag %q: %w", fields[0], err)
	}
	algorithm, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return "", fmt.Errorf("invalid DS algorithm %q: %w", fields[1], err)
	}
	digestType, err := strconv.ParseUint(fields[2], 10, 8)
	if err != nil {
		return "", fmt.Errorf("invalid DS digest type %q: %w", fields[2], err)
	}
	digest := strings.ToUpper(fields[3])
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("invalid DS digest %q: %w", fields[3], err)
	}
	return fmt.Sprintf("%d %d %d %s", keyTag, algorithm, digestType, digest), nil
}
