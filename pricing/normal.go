package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// minVolTime is the smallest normal float64. Below it sigma*sqrt(T) is treated as zero.
const minVolTime = 0x1p-1022

// NormalCDF returns the standard normal cumulative distribution at x.
func NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormalPDF returns the standard normal density at x.
func NormalPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// Degenerate reports whether sigma*sqrt(T) is too small to divide by while T is still positive.
// In that regime the option is priced on its discounted forward.
func Degenerate(T, sigma float64) bool {
	return T > 0 && sigma*math.Sqrt(T) < minVolTime
}

// D1D2 computes the Black-Scholes d1 and d2 terms.
//
// Parameters:
//   - S: spot price of the underlying
//   - K: strike
//   - T: time to expiry in years
//   - r: continuously compounded risk-free rate
//   - sigma: annualized volatility
//
// Returns (0, 0) at or after expiry and when sigma*sqrt(T) is degenerate.
func D1D2(S, K, T, r, sigma float64) (float64, float64) {
	if T <= 0 || Degenerate(T, sigma) {
		return 0, 0
	}

	volTime := sigma * math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / volTime
	return d1, d1 - volTime
}
