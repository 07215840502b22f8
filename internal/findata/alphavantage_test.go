package findata

import "testing"

func TestAVFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"152.38", 152.38},
		{" 152.38 ", 152.38},
		{"None", 0},
		{"-", 0},
		{"", 0},
		{"18500000000", 18500000000},
	}
	for _, tt := range tests {
		if got := avFloat(tt.in); got != tt.want {
			t.Errorf("avFloat(%q) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestAVPercent(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.2300%", 1.23},
		{"-0.5%", -0.5},
		{"None", 0},
	}
	for _, tt := range tests {
		if got := avPercent(tt.in); got != tt.want {
			t.Errorf("avPercent(%q) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestLooksLikeTicker(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"NVDA", true},
		{"BRK.B", true},
		{"nvda", false},
		{"semiconductor supply", false},
		{"", false},
		{"TOOLONGNAME", false},
	}
	for _, tt := range tests {
		if got := looksLikeTicker(tt.in); got != tt.want {
			t.Errorf("looksLikeTicker(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
