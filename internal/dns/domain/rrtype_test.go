package domain

import "testing"

func TestRRTypeString(t *testing.T) {
	tests := []struct {
		rrtype   RRType
		expected string
	}{
		{RRTypeA, "A"},
		{RRTypeNS, "NS"},
		{RRTypeAAAA, "AAAA"},
		{RRTypeDS, "DS"},
		{RRType(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.rrtype.String(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRRTypeIsValid(t *testing.T) {
	for _, valid := range []RRType{RRTypeA, RRTypeNS, RRTypeAAAA, RRTypeDS} {
		if !valid.IsValid() {
			t.Errorf("Expected %s to be valid", valid)
		}
	}
	for _, invalid := range []RRType{0, 5, 15, 16, 255} {
		if invalid.IsValid() {
			t.Errorf("Expected %d to be invalid", invalid)
		}
	}
}

func TestRRTypeFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected RRType
	}{
		{"A", RRTypeA},
		{"a", RRTypeA},
		{"NS", RRTypeNS},
		{"AAAA", RRTypeAAAA},
		{"DS", RRTypeDS},
		{"TXT", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := RRTypeFromString(tt.input); got != tt.expected {
			t.Errorf("RRTypeFromString(%q): expected %d, got %d", tt.input, tt.expected, got)
		}
	}
}

func TestPublishedTypes(t *testing.T) {
	types := PublishedTypes()
	if len(types) != 4 {
		t.Fatalf("Expected 4 published types, got %d", len(types))
	}
	for _, rrtype := range types {
		if !rrtype.IsValid() {
			t.Errorf("PublishedTypes returned invalid type %d", rrtype)
		}
	}
}
