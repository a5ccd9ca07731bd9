// Package money holds the integer-cents conversion and platform fee
// arithmetic shared by the checkout and terminal handlers. All amounts
// cross package boundaries in minor units (cents).
package money

import (
	"math"
	"strings"
)

// Platform fee rates by purchase kind.
const (
	// CoachingFeeRate applies to program and appointment checkouts
	// routed to a coach's connected account.
	CoachingFeeRate = 0.10
	// TerminalFeeRate applies to card-present charges.
	TerminalFeeRate = 0.01
)

// DefaultCurrency is used when a request omits the currency.
const DefaultCurrency = "usd"

// ToCents converts a major-unit price (e.g. 100.00) to minor units.
// Prices are assumed to carry at most two decimal digits.
func ToCents(major float64) int64 {
	return int64(math.Round(major * 100))
}

// Fee computes round(amount*rate), clamped to [0, amount].
func Fee(amount int64, rate float64) int64 {
	if amount <= 0 || rate <= 0 {
		return 0
	}
	fee := int64(math.Round(float64(amount) * rate))
	if fee > amount {
		return amount
	}
	return fee
}

// NormalizeCurrency lowercases an ISO currency code, defaulting to
// DefaultCurrency when empty.
func NormalizeCurrency(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}
