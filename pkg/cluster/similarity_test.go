package cluster

import (
	"math"
	"testing"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "", 0},
		{"abc", "abc", 1},
		{"abcd", "bcde", 0.75},
		{"abxcd", "abcd", 8.0 / 9.0},
		{"openai releases gpt-5", "openai releases gpt-5 model", 42.0 / 48.0},
		{"abc", "xyz", 0},
	}
	for _, tt := range tests {
		got := Ratio(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRatioCountsRunes(t *testing.T) {
	if got := Ratio("café", "cafe"); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("Ratio = %v, want 0.75", got)
	}
}
