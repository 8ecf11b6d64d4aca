package chain

import "math"

// Summary condenses a chain into the headline numbers shown above the table.
type Summary struct {
	Ready           bool    `json:"ready"`
	UnderlyingPrice float64 `json:"underlying_price"`
	ATMStrike       float64 `json:"atm_strike"`
	ATMCallPrice    float64 `json:"atm_call_price"`
	ATMPutPrice     float64 `json:"atm_put_price"`
	ATMCallDelta    float64 `json:"atm_call_delta"`
	Strikes         int     `json:"strikes"`
	ATMCount        int     `json:"atm_count"`
}

// Summarize picks the strike nearest the current price, keeping the lower one on a tie.
func Summarize(c OptionChain, currentPrice *float64) Summary {
	if len(c) == 0 || currentPrice == nil {
		return Summary{}
	}

	S := *currentPrice
	best := 0
	for i := 1; i < len(c); i++ {
		if math.Abs(c[i].Strike-S) < math.Abs(c[best].Strike-S) {
			best = i
		}
	}

	atm := c[best]
	return Summary{
		Ready:           true,
		UnderlyingPrice: S,
		ATMStrike:       atm.Strike,
		ATMCallPrice:    atm.CallPrice,
		ATMPutPrice:     atm.PutPrice,
		ATMCallDelta:    atm.CallGreeks.Delta,
		Strikes:         len(c),
		ATMCount:        len(c.ATMRows()),
	}
}
