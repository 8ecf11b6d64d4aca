package pricing

import (
	"fmt"
	"math"
)

// CallPrice returns the Black-Scholes value of a European call.
// At or after expiry it is the undiscounted intrinsic value max(S-K, 0).
func CallPrice(S, K, T, r, sigma float64) float64 {
	if T <= 0 {
		return math.Max(S-K, 0)
	}

	discountedStrike := K * math.Exp(-r*T)
	if Degenerate(T, sigma) {
		return math.Max(S-discountedStrike, 0)
	}

	d1, d2 := D1D2(S, K, T, r, sigma)
	return math.Max(S*NormalCDF(d1)-discountedStrike*NormalCDF(d2), 0)
}

// PutPrice returns the Black-Scholes value of a European put.
// At or after expiry it is the undiscounted intrinsic value max(K-S, 0).
func PutPrice(S, K, T, r, sigma float64) float64 {
	if T <= 0 {
		return math.Max(K-S, 0)
	}

	discountedStrike := K * math.Exp(-r*T)
	if Degenerate(T, sigma) {
		return math.Max(discountedStrike-S, 0)
	}

	d1, d2 := D1D2(S, K, T, r, sigma)
	return math.Max(discountedStrike*NormalCDF(-d2)-S*NormalCDF(-d1), 0)
}

// OptionPrice dispatches to CallPrice or PutPrice without validating inputs.
func OptionPrice(S, K, T, r, sigma float64, typ OptionType) float64 {
	if typ == Put {
		return PutPrice(S, K, T, r, sigma)
	}
	return CallPrice(S, K, T, r, sigma)
}

// Price validates p and returns the option value.
func Price(p OptionParameters) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("price %s: %w", p.Type, err)
	}
	return OptionPrice(p.UnderlyingPrice, p.Strike, p.TimeToExpiry, p.RiskFreeRate, p.Volatility, p.Type), nil
}
