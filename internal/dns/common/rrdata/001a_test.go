package rrdata

import (
	"net/netip"
	"testing"
)

func TestNormalizeAData_Valid(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"192.0.2.1", "192.0.2.1"},
		{"8.8.8.8", "8.8.8.8"},
		{"127.0.0.1", "127.0.0.1"},
	}

	for _, tt := range tests {
		got, err := normalizeAData(tt.input)
		if err != nil {
			t.Errorf("normalizeAData(%q) returned error: %v", tt.input, err)
		}
		if got != tt.expected {
			t.Errorf("normalizeAData(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeAData_Invalid(t *testing.T) {
	invalidInputs := []string{
		"not.an.ip",
		"256.256.256.256",
		"::1",
		"::ffff:192.0.2.1",
		"",
	}

	for _, input := range invalidInputs {
		got, err := normalizeAData(input)
		if err == nil {
			t.Errorf("normalizeAData(%q) expected error, got nil", input)
		}
		if got != "" {
			t.Errorf("normalizeAData(%q) expected empty string, got %q", input, got)
		}
	}
}

func TestAddrRdata(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"192.0.2.1", "192.0.2.1"},
		{"::ffff:192.0.2.1", "192.0.2.1"},
		{"2001:db8::1", "2001:db8::1"},
	}

	for _, tt := range tests {
		addr := netip.MustParseAddr(tt.input)
		if got := AddrRdata(addr); got != tt.expected {
			t.Errorf("AddrRdata(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
