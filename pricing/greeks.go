package pricing

import (
	"fmt"
	"math"
)

const (
	daysPerYear = 365.0
	percent     = 100.0
)

// GreeksResult holds the first-order sensitivities of one option.
// Theta is per calendar day, Vega and Rho are per one percentage point.
type GreeksResult struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Delta returns dV/dS.
func Delta(S, K, T, r, sigma float64, typ OptionType) float64 {
	return AllGreeks(S, K, T, r, sigma, typ).Delta
}

// Gamma returns d2V/dS2, identical for calls and puts.
func Gamma(S, K, T, r, sigma float64) float64 {
	return AllGreeks(S, K, T, r, sigma, Call).Gamma
}

// Theta returns the daily time decay.
func Theta(S, K, T, r, sigma float64, typ OptionType) float64 {
	return AllGreeks(S, K, T, r, sigma, typ).Theta
}

// Vega returns the value change for a one point move in volatility.
func Vega(S, K, T, r, sigma float64) float64 {
	return AllGreeks(S, K, T, r, sigma, Call).Vega
}

// Rho returns the value change for a one point move in the risk-free rate.
func Rho(S, K, T, r, sigma float64, typ OptionType) float64 {
	return AllGreeks(S, K, T, r, sigma, typ).Rho
}

// AllGreeks computes all five Greeks from a single (d1, d2) evaluation.
//
// At expiry the limits of the continuous model are returned: delta is the
// step function of moneyness (0.5 exactly at the money), everything else is 0.
// With T > 0 but sigma*sqrt(T) degenerate, the option behaves like a forward
// contract on whichever side of the discounted strike the spot sits.
func AllGreeks(S, K, T, r, sigma float64, typ OptionType) GreeksResult {
	if T <= 0 {
		return expiredGreeks(S, K, typ)
	}
	if Degenerate(T, sigma) {
		return deterministicGreeks(S, K, T, r, typ)
	}

	d1, d2 := D1D2(S, K, T, r, sigma)
	sqrtT := math.Sqrt(T)
	pdf := NormalPDF(d1)
	discountedStrike := K * math.Exp(-r*T)
	decay := -S * pdf * sigma / (2 * sqrtT)

	g := GreeksResult{
		Gamma: pdf / (S * sigma * sqrtT),
		Vega:  S * pdf * sqrtT / percent,
	}

	if typ == Put {
		nd2 := NormalCDF(-d2)
		g.Delta = NormalCDF(d1) - 1
		g.Theta = (decay + r*discountedStrike*nd2) / daysPerYear
		g.Rho = -K * T * math.Exp(-r*T) * nd2 / percent
		return g
	}

	nd2 := NormalCDF(d2)
	g.Delta = NormalCDF(d1)
	g.Theta = (decay - r*discountedStrike*nd2) / daysPerYear
	g.Rho = K * T * math.Exp(-r*T) * nd2 / percent
	return g
}

// Greeks validates p and returns its Greeks.
func Greeks(p OptionParameters) (GreeksResult, error) {
	if err := p.Validate(); err != nil {
		return GreeksResult{}, fmt.Errorf("greeks %s: %w", p.Type, err)
	}
	return AllGreeks(p.UnderlyingPrice, p.Strike, p.TimeToExpiry, p.RiskFreeRate, p.Volatility, p.Type), nil
}

func expiredGreeks(S, K float64, typ OptionType) GreeksResult {
	callDelta := 0.0
	switch {
	case S > K:
		callDelta = 1
	case S == K:
		callDelta = 0.5
	}

	if typ == Put {
		return GreeksResult{Delta: callDelta - 1}
	}
	return GreeksResult{Delta: callDelta}
}

func deterministicGreeks(S, K, T, r float64, typ OptionType) GreeksResult {
	discountedStrike := K * math.Exp(-r*T)

	if typ == Put {
		if S >= discountedStrike {
			return GreeksResult{}
		}
		return GreeksResult{
			Delta: -1,
			Theta: r * discountedStrike / daysPerYear,
			Rho:   -K * T * math.Exp(-r*T) / percent,
		}
	}

	if S <= discountedStrike {
		return GreeksResult{}
	}
	return GreeksResult{
		Delta: 1,
		Theta: -r * discountedStrike / daysPerYear,
		Rho:   K * T * math.Exp(-r*T) / percent,
	}
}
