package interfaces

import (
	"context"
	"errors"
	"time"
)

// PriceFeed defines the interface for underlying price sources
type PriceFeed interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	Name() string
}

// HistoricalDataService is implemented by feeds that can also return bars
type HistoricalDataService interface {
	PriceFeed
	GetHistoricalData(ctx context.Context, symbol string, timeframe string, days int) ([]*Bar, error)
}

// StorageService defines the interface for local data persistence
type StorageService interface {
	SaveTick(tick *PriceTick) error
	GetTicks(symbol string, limit int) ([]*PriceTick, error)
	SaveChainSnapshot(snapshot *ChainSnapshot) error
	GetLatestChainSnapshot(symbol string) (*ChainSnapshot, error)
	CleanupOldData(before time.Time) error
}

// PriceTick is one observation of an underlying price
type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Bar is an OHLCV candle
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	VWAP      float64   `json:"vwap"`
}

// ErrNotFound is returned by storage lookups that match nothing
var ErrNotFound = errors.New("not found")
