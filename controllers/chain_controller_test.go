package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"option-chain-analyzer/config"
	"option-chain-analyzer/interfaces"
	"option-chain-analyzer/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedPrices map[string]float64

func (f fixedPrices) GetCurrentPrice(symbol string) *float64 {
	p, ok := f[symbol]
	if !ok {
		return nil
	}
	return &p
}

type memoryStorage struct {
	mu        sync.Mutex
	ticks     []*interfaces.PriceTick
	snapshots []*interfaces.ChainSnapshot
}

func (m *memoryStorage) SaveTick(tick *interfaces.PriceTick) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks = append(m.ticks, tick)
	return nil
}

func (m *memoryStorage) GetTicks(symbol string, limit int) ([]*interfaces.PriceTick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks, nil
}

func (m *memoryStorage) SaveChainSnapshot(s *interfaces.ChainSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *memoryStorage) GetLatestChainSnapshot(symbol string) (*interfaces.ChainSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].Symbol == symbol {
			return m.snapshots[i], nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (m *memoryStorage) CleanupOldData(before time.Time) error { return nil }

func newChainRouter(t *testing.T, prices services.PriceSource, storage interfaces.StorageService) (*gin.Engine, *services.ChainService) {
	t.Helper()

	cfg := config.Default()
	cfg.StrikeRange = 20
	cfg.StrikeStep = 5

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	cs := services.NewChainService(cfg, prices, storage)
	cs.SetLogger(quiet)

	cc := NewChainController(cs, prices, storage)
	cc.logger.SetOutput(io.Discard)

	r := gin.New()
	cc.RegisterRoutes(r.Group("/api/v1"))
	return r, cs
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: invalid JSON %q", method, path, w.Body.String())
		}
	}
	return w, out
}

func rowsOf(t *testing.T, body map[string]interface{}) []map[string]interface{} {
	t.Helper()
	raw, ok := body["rows"].([]interface{})
	if !ok {
		t.Fatalf("rows missing from %v", body)
	}
	rows := make([]map[string]interface{}, len(raw))
	for i, r := range raw {
		rows[i] = r.(map[string]interface{})
	}
	return rows
}

func TestGetChain(t *testing.T) {
	r, _ := newChainRouter(t, fixedPrices{"AAPL": 182}, nil)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/chain/aapl", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body["status"] != "ok" || body["symbol"] != "AAPL" {
		t.Fatalf("body = %v", body)
	}

	rows := rowsOf(t, body)
	if len(rows) != 9 {
		t.Fatalf("got %d rows, want 9", len(rows))
	}
	if rows[0]["strike"] != 160.0 || rows[8]["strike"] != 200.0 {
		t.Fatalf("strike ladder %v..%v", rows[0]["strike"], rows[8]["strike"])
	}

	var atm []float64
	for _, row := range rows {
		if row["is_atm"] == true {
			atm = append(atm, row["strike"].(float64))
		}
	}
	if len(atm) != 1 || atm[0] != 180 {
		t.Fatalf("ATM strikes = %v", atm)
	}

	summary := body["summary"].(map[string]interface{})
	if summary["atm_strike"] != 180.0 || summary["ready"] != true {
		t.Fatalf("summary = %v", summary)
	}
}

func TestGetChainWaitsForPrice(t *testing.T) {
	r, _ := newChainRouter(t, fixedPrices{}, nil)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/chain/AAPL", nil)
	if w.Code != http.StatusOK || body["status"] != "waiting" {
		t.Fatalf("status = %d body = %v", w.Code, body)
	}
	if len(rowsOf(t, body)) != 0 {
		t.Fatal("waiting chain should have no rows")
	}
}

func TestGetChainFilters(t *testing.T) {
	r, _ := newChainRouter(t, fixedPrices{"AAPL": 182}, nil)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/chain/AAPL?type=call&delta_min=0.3&delta_max=0.7", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	rows := rowsOf(t, body)
	if len(rows) == 0 || len(rows) == 9 {
		t.Fatalf("filter kept %d rows", len(rows))
	}
	for _, row := range rows {
		d := math.Abs(row["call_greeks"].(map[string]interface{})["delta"].(float64))
		if d < 0.3 || d > 0.7 {
			t.Fatalf("call delta %v outside filter", d)
		}
	}

	_, body = doJSON(t, r, http.MethodGet, "/api/v1/chain/AAPL?type=put", nil)
	rows = rowsOf(t, body)
	if len(rows) != 9 {
		t.Fatalf("type=put without a delta window kept %d rows, want 9", len(rows))
	}
	for _, row := range rows {
		if _, ok := row["call_price"]; ok {
			t.Fatalf("type=put row still carries call fields: %v", row)
		}
		if _, ok := row["call_greeks"]; ok {
			t.Fatalf("type=put row still carries call greeks: %v", row)
		}
		if _, ok := row["put_greeks"]; !ok {
			t.Fatalf("type=put row lost put greeks: %v", row)
		}
	}

	_, body = doJSON(t, r, http.MethodGet, "/api/v1/chain/AAPL?atm_only=true", nil)
	if rows := rowsOf(t, body); len(rows) != 1 || rows[0]["strike"] != 180.0 {
		t.Fatalf("atm_only rows = %v", rows)
	}
}

func TestGetChainOverrides(t *testing.T) {
	r, _ := newChainRouter(t, fixedPrices{"AAPL": 182}, nil)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/chain/AAPL?step=10&range=20&expiry=friday", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	rows := rowsOf(t, body)
	if len(rows) != 5 || rows[0]["strike"] != 160.0 || rows[4]["strike"] != 200.0 {
		t.Fatalf("override rows = %v", rows)
	}

	tests := []string{
		"/api/v1/chain/AAPL?vol=abc",
		"/api/v1/chain/AAPL?vol=-0.2",
		"/api/v1/chain/AAPL?step=0",
		"/api/v1/chain/AAPL?expiry=next-week",
		"/api/v1/chain/AAPL?delta_min=x",
		"/api/v1/chain/AAPL?type=straddle",
		"/api/v1/chain/AAPL?range=1000000&step=0.01",
		"/api/v1/chain/AAPL?range=501&step=1",
	}
	for _, path := range tests {
		if w, _ := doJSON(t, r, http.MethodGet, path, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
		}
	}
}

func TestGetSummary(t *testing.T) {
	r, _ := newChainRouter(t, fixedPrices{"AAPL": 183.9}, nil)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/chain/AAPL/summary", nil)
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("status = %d body = %v", w.Code, body)
	}
	if body["atm_strike"] != 185.0 || body["atm_count"] != 1.0 || body["strikes"] != 9.0 {
		t.Fatalf("summary = %v", body)
	}
	if body["underlying_price"] != 183.9 {
		t.Fatalf("underlying price = %v", body["underlying_price"])
	}

	r, _ = newChainRouter(t, fixedPrices{}, nil)
	if _, body := doJSON(t, r, http.MethodGet, "/api/v1/chain/AAPL/summary", nil); body["status"] != "waiting" {
		t.Fatalf("summary without price = %v", body)
	}
}

func TestGetSnapshot(t *testing.T) {
	r, _ := newChainRouter(t, fixedPrices{"AAPL": 182}, nil)
	if w, _ := doJSON(t, r, http.MethodGet, "/api/v1/chain/AAPL/snapshot", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("without storage status = %d", w.Code)
	}

	store := &memoryStorage{}
	r, cs := newChainRouter(t, fixedPrices{"AAPL": 182}, store)
	if w, _ := doJSON(t, r, http.MethodGet, "/api/v1/chain/AAPL/snapshot", nil); w.Code != http.StatusNotFound {
		t.Fatalf("empty storage status = %d", w.Code)
	}

	snapshot, _, err := cs.Compute("AAPL", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveChainSnapshot(snapshot); err != nil {
		t.Fatal(err)
	}

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/chain/AAPL/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body["underlying_price"] != 182.0 || len(rowsOf(t, body)) != 9 || len(body["strikes"].([]interface{})) != 9 {
		t.Fatalf("snapshot = %v", body)
	}
}

func TestPriceOption(t *testing.T) {
	r, _ := newChainRouter(t, fixedPrices{}, nil)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/options/price", map[string]interface{}{
		"underlying_price": 100,
		"strike":           100,
		"time_to_expiry":   1,
		"risk_free_rate":   0.05,
		"volatility":       0.2,
		"option_type":      "call",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if price := body["price"].(float64); math.Abs(price-10.450583572185565) > 1e-9 {
		t.Fatalf("price = %v", price)
	}
	greeks := body["greeks"].(map[string]interface{})
	if d := greeks["delta"].(float64); math.Abs(d-0.6368306511756191) > 1e-9 {
		t.Fatalf("delta = %v", d)
	}

	bad := []map[string]interface{}{
		{"underlying_price": 100, "strike": 100, "volatility": 0.2, "option_type": "call"},
		{"underlying_price": 100, "strike": 100, "time_to_expiry": 1, "volatility": 0.2, "option_type": "straddle"},
		{"underlying_price": 100, "strike": 100, "time_to_expiry": -1, "volatility": 0.2, "option_type": "put"},
		{"underlying_price": -5, "strike": 100, "time_to_expiry": 1, "volatility": 0.2, "option_type": "put"},
		{"underlying_price": 100, "strike": 100, "expiry": "soon", "volatility": 0.2, "option_type": "put"},
	}
	for i, req := range bad {
		if w, _ := doJSON(t, r, http.MethodPost, "/api/v1/options/price", req); w.Code != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400", i, w.Code)
		}
	}
}

func TestPriceOptionExpired(t *testing.T) {
	r, _ := newChainRouter(t, fixedPrices{}, nil)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/options/price", map[string]interface{}{
		"underlying_price": 105,
		"strike":           100,
		"time_to_expiry":   0,
		"volatility":       0.2,
		"option_type":      "put",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body["price"] != 0.0 {
		t.Fatalf("expired OTM put price = %v", body["price"])
	}

	// volatility is irrelevant once expired, so zero is accepted
	w, body = doJSON(t, r, http.MethodPost, "/api/v1/options/price", map[string]interface{}{
		"underlying_price": 95,
		"strike":           100,
		"time_to_expiry":   0,
		"volatility":       0,
		"option_type":      "put",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("zero vol at expiry: status = %d: %s", w.Code, w.Body.String())
	}
	if price := body["price"].(float64); math.Abs(price-5) > 1e-9 {
		t.Fatalf("expired ITM put price = %v, want intrinsic 5", price)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/options/price", map[string]interface{}{
		"underlying_price": 95,
		"strike":           100,
		"time_to_expiry":   0.5,
		"volatility":       0,
		"option_type":      "put",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("zero vol before expiry: status = %d, want 400", w.Code)
	}
}

func TestUpdateParameters(t *testing.T) {
	r, cs := newChainRouter(t, fixedPrices{"AAPL": 182}, nil)

	w, body := doJSON(t, r, http.MethodPut, "/api/v1/chain/parameters", map[string]interface{}{
		"strike_step": 10,
		"volatility":  0.35,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body["strike_step"] != 10.0 || body["volatility"] != 0.35 || body["strike_range"] != 20.0 {
		t.Fatalf("parameters = %v", body)
	}
	if p := cs.Parameters(); p.StrikeStep != 10 || p.Volatility != 0.35 {
		t.Fatalf("service parameters = %+v", p)
	}

	_, body = doJSON(t, r, http.MethodGet, "/api/v1/chain/parameters", nil)
	if body["strike_step"] != 10.0 {
		t.Fatalf("GET parameters = %v", body)
	}

	for _, req := range []map[string]interface{}{
		{"strike_step": 0},
		{"volatility": 1.5},
		{"risk_free_rate": -0.1},
		{"expiry": "tomorrow"},
		{"strike_range": 1000000, "strike_step": 0.01},
	} {
		if w, _ := doJSON(t, r, http.MethodPut, "/api/v1/chain/parameters", req); w.Code != http.StatusBadRequest {
			t.Errorf("%v: status = %d, want 400", req, w.Code)
		}
	}
}
