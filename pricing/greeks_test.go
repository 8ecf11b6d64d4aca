package pricing

import (
	"errors"
	"math"
	"testing"
)

func TestAllGreeksReferenceValues(t *testing.T) {
	const (
		S   = 180.5
		K   = 180.0
		T   = 7 / 365.25
		r   = 0.07
		vol = 0.2
	)

	call := AllGreeks(S, K, T, r, vol, Call)
	put := AllGreeks(S, K, T, r, vol, Put)

	checks := []struct {
		name      string
		got, want float64
	}{
		{"call delta", call.Delta, 0.564537572130863},
		{"put delta", put.Delta, -0.435462427869137},
		{"gamma", call.Gamma, 0.0787800137960088},
		{"call theta", call.Theta, -0.15972501322258437},
		{"put theta", put.Theta, -0.12525074516070955},
		{"vega", call.Vega, 0.09838033024690983},
		{"call rho", call.Rho, 0.019072358485133396},
		{"put rho", put.Rho, -0.01537831322625415},
	}
	for _, c := range checks {
		if !almostEqual(c.got, c.want, 1e-10) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if call.Gamma != put.Gamma || call.Vega != put.Vega {
		t.Errorf("gamma/vega should not depend on option type: call=%+v put=%+v", call, put)
	}
}

func TestIndividualGreeksMatchAllGreeks(t *testing.T) {
	S, K, T, r, vol := 100.0, 95.0, 0.3, 0.04, 0.35
	for _, typ := range []OptionType{Call, Put} {
		all := AllGreeks(S, K, T, r, vol, typ)
		if Delta(S, K, T, r, vol, typ) != all.Delta {
			t.Errorf("%s Delta mismatch", typ)
		}
		if Gamma(S, K, T, r, vol) != all.Gamma {
			t.Errorf("%s Gamma mismatch", typ)
		}
		if Theta(S, K, T, r, vol, typ) != all.Theta {
			t.Errorf("%s Theta mismatch", typ)
		}
		if Vega(S, K, T, r, vol) != all.Vega {
			t.Errorf("%s Vega mismatch", typ)
		}
		if Rho(S, K, T, r, vol, typ) != all.Rho {
			t.Errorf("%s Rho mismatch", typ)
		}
	}
}

func TestDeltaBounds(t *testing.T) {
	for _, S := range []float64{1, 50, 100, 150, 1000} {
		for _, T := range []float64{0.001, 0.5, 3} {
			c := Delta(S, 100, T, 0.05, 0.3, Call)
			p := Delta(S, 100, T, 0.05, 0.3, Put)
			if c < 0 || c > 1 {
				t.Errorf("call delta %v out of [0,1] for S=%v T=%v", c, S, T)
			}
			if p < -1 || p > 0 {
				t.Errorf("put delta %v out of [-1,0] for S=%v T=%v", p, S, T)
			}
			if !almostEqual(c-p, 1, 1e-12) {
				t.Errorf("call-put delta = %v, want 1", c-p)
			}
		}
	}
}

func TestGammaSymmetryAcrossTypes(t *testing.T) {
	for _, K := range []float64{80, 100, 120} {
		call := AllGreeks(100, K, 0.75, 0.02, 0.3, Call)
		put := AllGreeks(100, K, 0.75, 0.02, 0.3, Put)
		if call.Gamma != put.Gamma {
			t.Errorf("K=%v gamma call=%v put=%v", K, call.Gamma, put.Gamma)
		}
		if call.Gamma <= 0 || call.Vega <= 0 {
			t.Errorf("K=%v gamma and vega must be positive before expiry: %+v", K, call)
		}
	}
}

func TestGreeksMatchFiniteDifferences(t *testing.T) {
	S, K, T, r, vol := 100.0, 105.0, 0.5, 0.03, 0.25
	const h = 1e-4

	for _, typ := range []OptionType{Call, Put} {
		g := AllGreeks(S, K, T, r, vol, typ)
		price := func(S, T, r, vol float64) float64 { return OptionPrice(S, K, T, r, vol, typ) }

		delta := (price(S+h, T, r, vol) - price(S-h, T, r, vol)) / (2 * h)
		gamma := (price(S+h, T, r, vol) - 2*price(S, T, r, vol) + price(S-h, T, r, vol)) / (h * h)
		vega := (price(S, T, r, vol+h) - price(S, T, r, vol-h)) / (2 * h) / 100
		rho := (price(S, T, r+h, vol) - price(S, T, r-h, vol)) / (2 * h) / 100
		theta := -(price(S, T+h, r, vol) - price(S, T-h, r, vol)) / (2 * h) / 365

		if !almostEqual(g.Delta, delta, 1e-6) {
			t.Errorf("%s delta %v vs fd %v", typ, g.Delta, delta)
		}
		if !almostEqual(g.Gamma, gamma, 1e-4) {
			t.Errorf("%s gamma %v vs fd %v", typ, g.Gamma, gamma)
		}
		if !almostEqual(g.Vega, vega, 1e-6) {
			t.Errorf("%s vega %v vs fd %v", typ, g.Vega, vega)
		}
		if !almostEqual(g.Rho, rho, 1e-6) {
			t.Errorf("%s rho %v vs fd %v", typ, g.Rho, rho)
		}
		if !almostEqual(g.Theta, theta, 1e-6) {
			t.Errorf("%s theta %v vs fd %v", typ, g.Theta, theta)
		}
	}
}

// Pins the expiry behaviour: delta collapses to moneyness and the rest vanish.
func TestGreeksAtExpiry(t *testing.T) {
	tests := []struct {
		name      string
		S         float64
		typ       OptionType
		wantDelta float64
	}{
		{"itm call", 110, Call, 1},
		{"atm call", 100, Call, 0.5},
		{"otm call", 90, Call, 0},
		{"itm put", 90, Put, -1},
		{"atm put", 100, Put, -0.5},
		{"otm put", 110, Put, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := AllGreeks(tt.S, 100, 0, 0.07, 0.2, tt.typ)
			want := GreeksResult{Delta: tt.wantDelta}
			if g != want {
				t.Fatalf("AllGreeks at T=0 = %+v, want %+v", g, want)
			}
		})
	}
}

func TestGreeksWithDegenerateVolatility(t *testing.T) {
	S, K, T, r := 100.0, 100.0, 1.0, 0.05
	disc := K * math.Exp(-r*T)

	call := AllGreeks(S, K, T, r, 0, Call)
	wantCall := GreeksResult{Delta: 1, Theta: -r * disc / 365, Rho: K * T * math.Exp(-r*T) / 100}
	if call != wantCall {
		t.Errorf("call = %+v, want %+v", call, wantCall)
	}

	// spot above the discounted strike: the put is worthless and insensitive
	if put := AllGreeks(S, K, T, r, 0, Put); put != (GreeksResult{}) {
		t.Errorf("put = %+v, want zero", put)
	}

	put := AllGreeks(90, K, T, r, 0, Put)
	if put.Delta != -1 || put.Gamma != 0 || put.Vega != 0 || put.Theta <= 0 || put.Rho >= 0 {
		t.Errorf("itm put = %+v", put)
	}
	for _, v := range []float64{call.Delta, call.Theta, call.Rho, put.Theta, put.Rho} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite greek %v", v)
		}
	}
}

func TestGreeksValidation(t *testing.T) {
	_, err := Greeks(OptionParameters{UnderlyingPrice: 100, Strike: 0, TimeToExpiry: 1, Volatility: 0.2, Type: Put})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("Greeks error = %v, want ErrInvalidParameter", err)
	}

	g, err := Greeks(OptionParameters{UnderlyingPrice: 100, Strike: 100, TimeToExpiry: 1, RiskFreeRate: 0.05, Volatility: 0.2, Type: Call})
	if err != nil {
		t.Fatalf("Greeks error: %v", err)
	}
	if !almostEqual(g.Delta, 0.6368306511756191, 1e-10) || !almostEqual(g.Vega, 0.3752403469169379, 1e-10) {
		t.Fatalf("Greeks = %+v", g)
	}
}
