package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"option-chain-analyzer/chain"
	"option-chain-analyzer/interfaces"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(filepath.Join(t.TempDir(), "nested", "chain.db"))
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTicksRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	base := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		tick := &interfaces.PriceTick{Symbol: "AAPL", Price: 180 + float64(i), Timestamp: base.Add(time.Duration(i) * time.Minute), Source: "mock"}
		if err := s.SaveTick(tick); err != nil {
			t.Fatalf("SaveTick: %v", err)
		}
	}
	if err := s.SaveTick(&interfaces.PriceTick{Symbol: "TSLA", Price: 250, Timestamp: base, Source: "mock"}); err != nil {
		t.Fatalf("SaveTick: %v", err)
	}

	ticks, err := s.GetTicks("AAPL", 3)
	if err != nil {
		t.Fatalf("GetTicks: %v", err)
	}
	if len(ticks) != 3 {
		t.Fatalf("got %d ticks, want 3", len(ticks))
	}
	for i, want := range []float64{182, 183, 184} {
		if ticks[i].Price != want {
			t.Errorf("tick %d price = %v, want %v", i, ticks[i].Price, want)
		}
	}
}

func TestChainSnapshotRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	now := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	price := 182.0

	rows, err := chain.Build(chain.Request{
		CurrentPrice: &price,
		StrikeRange:  20,
		StrikeStep:   5,
		Expiry:       now.AddDate(0, 0, 7),
		RiskFreeRate: 0.07,
		Volatility:   0.2,
		Now:          now,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	snap := &interfaces.ChainSnapshot{
		Symbol:          "AAPL",
		UnderlyingPrice: price,
		Expiry:          now.AddDate(0, 0, 7),
		RiskFreeRate:    0.07,
		Volatility:      0.2,
		StrikeRange:     20,
		StrikeStep:      5,
		ComputedAt:      now,
		Rows:            rows,
	}
	if err := s.SaveChainSnapshot(snap); err != nil {
		t.Fatalf("SaveChainSnapshot: %v", err)
	}

	got, err := s.GetLatestChainSnapshot("AAPL")
	if err != nil {
		t.Fatalf("GetLatestChainSnapshot: %v", err)
	}
	if len(got.Rows) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got.Rows), len(rows))
	}
	for i := range rows {
		if got.Rows[i].Strike != rows[i].Strike ||
			got.Rows[i].CallPrice != rows[i].CallPrice ||
			got.Rows[i].PutGreeks != rows[i].PutGreeks ||
			got.Rows[i].IsATM != rows[i].IsATM {
			t.Errorf("row %d = %+v, want %+v", i, got.Rows[i], rows[i])
		}
	}
	if got.StrikeStep != 5 || got.Volatility != 0.2 {
		t.Errorf("snapshot inputs = %+v", got)
	}

	if _, err := s.GetLatestChainSnapshot("MSFT"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("missing snapshot error = %v, want ErrNotFound", err)
	}
}

func TestCleanupOldData(t *testing.T) {
	s := newTestStorage(t)
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.AddDate(0, 1, 0)

	for _, ts := range []time.Time{old, recent} {
		if err := s.SaveTick(&interfaces.PriceTick{Symbol: "AAPL", Price: 1, Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
		snap := &interfaces.ChainSnapshot{
			Symbol:     "AAPL",
			ComputedAt: ts,
			Rows:       chain.OptionChain{{Strike: 100}, {Strike: 105}},
		}
		if err := s.SaveChainSnapshot(snap); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.CleanupOldData(old.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("CleanupOldData: %v", err)
	}

	ticks, err := s.GetTicks("AAPL", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ticks) != 1 || !ticks[0].Timestamp.Equal(recent) {
		t.Fatalf("ticks after cleanup = %+v", ticks)
	}

	var rowCount int64
	s.db.Unscoped().Table("chain_rows").Count(&rowCount)
	if rowCount != 2 {
		t.Fatalf("chain rows after cleanup = %d, want 2", rowCount)
	}

	snap, err := s.GetLatestChainSnapshot("AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if !snap.ComputedAt.Equal(recent) || len(snap.Rows) != 2 {
		t.Fatalf("remaining snapshot = %+v", snap)
	}
}
