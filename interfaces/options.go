package interfaces

import (
	"time"

	"option-chain-analyzer/chain"
)

// ChainSnapshot is a priced option chain together with the inputs that produced it
type ChainSnapshot struct {
	Symbol          string            `json:"symbol"`
	UnderlyingPrice float64           `json:"underlying_price"`
	Expiry          time.Time         `json:"expiry"`
	RiskFreeRate    float64           `json:"risk_free_rate"`
	Volatility      float64           `json:"volatility"`
	StrikeRange     float64           `json:"strike_range"`
	StrikeStep      float64           `json:"strike_step"`
	ComputedAt      time.Time         `json:"computed_at"`
	Rows            chain.OptionChain `json:"rows"`
}

// ChainProvider serves computed chains to the API layer
type ChainProvider interface {
	Compute(symbol string, now time.Time) (*ChainSnapshot, chain.Summary, error)
	Latest(symbol string) (*ChainSnapshot, chain.Summary, bool)
}
