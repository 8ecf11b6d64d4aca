package services

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// mockBasePrices are the fallback quotes used when no live feed is reachable
var mockBasePrices = map[string]float64{
	"AAPL":    180.50,
	"TSLA":    250.75,
	"AMD":     120.30,
	"BTCUSDT": 65000.00,
	"ETHUSDT": 3500.00,
}

const (
	defaultMockPrice = 100.0
	mockJitter       = 2.0
)

// MockBasePrice returns the fallback quote for a symbol
func MockBasePrice(symbol string) float64 {
	if p, ok := mockBasePrices[strings.ToUpper(symbol)]; ok {
		return p
	}
	return defaultMockPrice
}

// MockDataService produces prices jittered within ±2 of a per-symbol base
type MockDataService struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger *logrus.Logger
}

// NewMockDataService creates a mock feed. A zero seed uses the current time.
func NewMockDataService(seed int64) *MockDataService {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockDataService{
		rng:    rand.New(rand.NewSource(seed)),
		logger: newServiceLogger(),
	}
}

func (m *MockDataService) Name() string {
	return "mock"
}

// GetCurrentPrice returns the base price plus uniform noise, rounded to cents
func (m *MockDataService) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	noise := m.rng.Float64()*2*mockJitter - mockJitter
	m.mu.Unlock()

	price := decimal.NewFromFloat(MockBasePrice(symbol) + noise).Round(2).InexactFloat64()

	m.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"price":  price,
	}).Debug("Generated mock price")

	return price, nil
}
