package rrdata

// normalizeNSData normalizes an NS record rrdata string.
func normalizeNSData(data string) (string, error) {
	// data = "ns1.example.tld."
	return normalizeDomainName(data)
}
