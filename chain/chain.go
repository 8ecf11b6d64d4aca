// Package chain assembles option chains from the pricing engine.
package chain

import (
	"fmt"
	"math"
	"time"

	"option-chain-analyzer/pricing"
)

// Row is one strike of an option chain.
type Row struct {
	Strike     float64              `json:"strike"`
	CallPrice  float64              `json:"call_price"`
	PutPrice   float64              `json:"put_price"`
	CallGreeks pricing.GreeksResult `json:"call_greeks"`
	PutGreeks  pricing.GreeksResult `json:"put_greeks"`
	IsATM      bool                 `json:"is_atm"`
	ComputedAt time.Time            `json:"computed_at"`
}

// OptionChain is ordered by strictly increasing strike.
type OptionChain []Row

// ATMRows returns the rows tagged at-the-money.
func (c OptionChain) ATMRows() []Row {
	var rows []Row
	for _, r := range c {
		if r.IsATM {
			rows = append(rows, r)
		}
	}
	return rows
}

// Strikes returns the strike ladder of the chain.
func (c OptionChain) Strikes() []float64 {
	strikes := make([]float64, len(c))
	for i, r := range c {
		strikes[i] = r.Strike
	}
	return strikes
}

// Request carries everything Build needs. A nil CurrentPrice means no market
// data is available yet.
type Request struct {
	CurrentPrice *float64
	StrikeRange  float64
	StrikeStep   float64
	Expiry       time.Time
	RiskFreeRate float64
	Volatility   float64
	Now          time.Time
}

// Validate checks the chain parameters. A missing price is not an error.
func (r Request) Validate() error {
	if !finite(r.StrikeRange) || r.StrikeRange <= 0 {
		return fmt.Errorf("%w: strike range must be positive, got %g", pricing.ErrInvalidParameter, r.StrikeRange)
	}
	if !finite(r.StrikeStep) || r.StrikeStep <= 0 {
		return fmt.Errorf("%w: strike step must be positive, got %g", pricing.ErrInvalidParameter, r.StrikeStep)
	}
	if n := ladderSteps(r.StrikeRange, r.StrikeStep); n > MaxStrikes {
		return fmt.Errorf("%w: strike range %g with step %g spans %.0f steps, limit is %d",
			pricing.ErrInvalidParameter, r.StrikeRange, r.StrikeStep, n, MaxStrikes)
	}
	if !finite(r.Volatility) || r.Volatility <= 0 {
		return fmt.Errorf("%w: volatility must be positive, got %g", pricing.ErrInvalidParameter, r.Volatility)
	}
	if !finite(r.RiskFreeRate) {
		return fmt.Errorf("%w: risk-free rate must be finite", pricing.ErrInvalidParameter)
	}
	if r.CurrentPrice != nil && math.IsInf(*r.CurrentPrice, 0) {
		return fmt.Errorf("%w: current price must be finite", pricing.ErrInvalidParameter)
	}
	return nil
}

// Build prices calls and puts for every strike around the current price.
// Without a usable price the chain is empty and the error is nil.
func Build(req Request) (OptionChain, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	strikes := GenerateStrikes(req.CurrentPrice, req.StrikeRange, req.StrikeStep)
	if len(strikes) == 0 {
		return OptionChain{}, nil
	}

	S := *req.CurrentPrice
	T := TimeToExpiry(req.Expiry, req.Now)
	r, vol := req.RiskFreeRate, req.Volatility
	halfStep := req.StrikeStep / 2

	chain := make(OptionChain, 0, len(strikes))
	for _, K := range strikes {
		chain = append(chain, Row{
			Strike:     K,
			CallPrice:  pricing.CallPrice(S, K, T, r, vol),
			PutPrice:   pricing.PutPrice(S, K, T, r, vol),
			CallGreeks: pricing.AllGreeks(S, K, T, r, vol, pricing.Call),
			PutGreeks:  pricing.AllGreeks(S, K, T, r, vol, pricing.Put),
			IsATM:      math.Abs(S-K) <= halfStep,
			ComputedAt: req.Now,
		})
	}
	return chain, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
