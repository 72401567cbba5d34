package database

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Výroba", "Vyroba"},
		{"Müller", "Muller"},
		{"Nguyễn", "Nguyen"},
		{"Engineering", "Engineering"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RemoveDiacritics(tt.input); got != tt.expected {
			t.Errorf("RemoveDiacritics(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Výroba", "vyroba"},
		{"  Engineering  ", "engineering"},
		{"ÚDRŽBA", "udrzba"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.expected {
			t.Errorf("NormalizeName(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestValidCheckType(t *testing.T) {
	if !ValidCheckType(CheckIn) || !ValidCheckType(CheckOut) {
		t.Error("IN and OUT must be valid check types")
	}
	for _, bad := range []CheckType{"", "in", "BOTH"} {
		if ValidCheckType(bad) {
			t.Errorf("%q must not be a valid check type", bad)
		}
	}
}
