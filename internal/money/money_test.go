package money

import "testing"

func TestToCents(t *testing.T) {
	tests := []struct {
		major float64
		want  int64
	}{
		{0, 0},
		{100.00, 10000},
		{50.00, 5000},
		{19.99, 1999},
		{0.01, 1},
		{10.005, 1001},
	}
	for _, tt := range tests {
		if got := ToCents(tt.major); got != tt.want {
			t.Errorf("ToCents(%v) = %d, want %d", tt.major, got, tt.want)
		}
	}
}

func TestFee(t *testing.T) {
	tests := []struct {
		amount int64
		rate   float64
		want   int64
	}{
		{10000, CoachingFeeRate, 1000},
		{5000, TerminalFeeRate, 50},
		{0, CoachingFeeRate, 0},
		{1, TerminalFeeRate, 0},
		{1, CoachingFeeRate, 0},
		{5, CoachingFeeRate, 1},
		{99, CoachingFeeRate, 10},
		{-100, CoachingFeeRate, 0},
		{100, 0, 0},
		{100, 2.0, 100}, // clamped to the amount
	}
	for _, tt := range tests {
		if got := Fee(tt.amount, tt.rate); got != tt.want {
			t.Errorf("Fee(%d, %v) = %d, want %d", tt.amount, tt.rate, got, tt.want)
		}
	}
}

func TestFeeBounds(t *testing.T) {
	amounts := []int64{0, 1, 3, 99, 100, 101, 5000, 10000, 999999}
	rates := []float64{TerminalFeeRate, CoachingFeeRate, 0.5, 1.0}
	for _, a := range amounts {
		for _, r := range rates {
			fee := Fee(a, r)
			if fee < 0 || fee > a {
				t.Errorf("Fee(%d, %v) = %d out of bounds [0, %d]", a, r, fee, a)
			}
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "usd"},
		{"USD", "usd"},
		{" chf ", "chf"},
		{"eur", "eur"},
	}
	for _, tt := range tests {
		if got := NormalizeCurrency(tt.in); got != tt.want {
			t.Errorf("NormalizeCurrency(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
