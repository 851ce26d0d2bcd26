package utils

import (
	"errors"
	"testing"

	"github.com/seenimoa/pairtrade/pkg/models"
)

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"KO", "KO"},
		{"ko", "KO"},
		{" pep ", "PEP"},
		{"$GLD", "GLD"},
		{"coke", "KO"},
		{"PepsiCo", "PEP"},
		{"GOLDMINERS", "GDX"},
		{"UNKNOWN", "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizeTicker(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeTicker(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestToYahooTicker(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"BRK.B", "BRK-B"},
		{"ko", "KO"},
		{"^GSPC", "^GSPC"},
	}
	for _, tt := range tests {
		if got := ToYahooTicker(tt.input); got != tt.expected {
			t.Errorf("ToYahooTicker(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestValidateSymbol(t *testing.T) {
	if err := ValidateSymbol("EWA"); err != nil {
		t.Errorf("ValidateSymbol(EWA) = %v", err)
	}
	for _, bad := range []string{"", "   ", "KO;DROP", "A B"} {
		if err := ValidateSymbol(bad); !errors.Is(err, models.ErrInvalidArgument) {
			t.Errorf("ValidateSymbol(%q) = %v, want ErrInvalidArgument", bad, err)
		}
	}
}
