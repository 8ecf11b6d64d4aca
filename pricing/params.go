package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidParameter is returned when pricing inputs fall outside the model's domain.
var ErrInvalidParameter = errors.New("invalid option parameter")

// OptionType identifies the payoff of a European option
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// ParseOptionType accepts call/put in any case, plus the one-letter forms c/p.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "C":
		return Call, nil
	case "PUT", "P":
		return Put, nil
	}
	return "", fmt.Errorf("%w: unknown option type %q", ErrInvalidParameter, s)
}

// OptionParameters is the full input set for a single-option price or Greeks request.
// TimeToExpiry is in years, RiskFreeRate and Volatility are annualized decimals.
type OptionParameters struct {
	UnderlyingPrice float64    `json:"underlying_price"`
	Strike          float64    `json:"strike"`
	TimeToExpiry    float64    `json:"time_to_expiry"`
	RiskFreeRate    float64    `json:"risk_free_rate"`
	Volatility      float64    `json:"volatility"`
	Type            OptionType `json:"option_type"`
}

// Validate checks the parameters against the Black-Scholes domain.
func (p OptionParameters) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"underlying_price", p.UnderlyingPrice},
		{"strike", p.Strike},
		{"time_to_expiry", p.TimeToExpiry},
		{"risk_free_rate", p.RiskFreeRate},
		{"volatility", p.Volatility},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidParameter, f.name)
		}
	}

	if p.UnderlyingPrice <= 0 {
		return fmt.Errorf("%w: underlying_price must be positive, got %g", ErrInvalidParameter, p.UnderlyingPrice)
	}
	if p.Strike <= 0 {
		return fmt.Errorf("%w: strike must be positive, got %g", ErrInvalidParameter, p.Strike)
	}
	if p.TimeToExpiry < 0 {
		return fmt.Errorf("%w: time_to_expiry must not be negative, got %g", ErrInvalidParameter, p.TimeToExpiry)
	}
	if p.TimeToExpiry > 0 && p.Volatility <= 0 {
		return fmt.Errorf("%w: volatility must be positive, got %g", ErrInvalidParameter, p.Volatility)
	}
	if p.Type != Call && p.Type != Put {
		return fmt.Errorf("%w: unknown option type %q", ErrInvalidParameter, p.Type)
	}
	return nil
}
