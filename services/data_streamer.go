package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"option-chain-analyzer/interfaces"

	"github.com/sirupsen/logrus"
)

// HistoryLimit is the number of ticks kept in memory per symbol
const HistoryLimit = 100

// ErrAlreadyStreaming is returned by Start while a stream is running
var ErrAlreadyStreaming = errors.New("data streamer already running")

// DataStreamer polls a price feed on an interval, caches the latest prices and
// fans ticks out to subscribers
type DataStreamer struct {
	feed     interfaces.PriceFeed
	storage  interfaces.StorageService
	activity *ActivityLogger
	interval time.Duration

	prices      map[string]float64
	history     map[string][]interfaces.PriceTick
	subscribers []func(interfaces.PriceTick)
	symbols     []string
	mu          sync.RWMutex

	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	marketOpen *bool

	checkMarketHours bool
	now              func() time.Time
	logger           *logrus.Logger
}

// NewDataStreamer creates a streamer. storage may be nil.
func NewDataStreamer(feed interfaces.PriceFeed, interval time.Duration, storage interfaces.StorageService) *DataStreamer {
	return &DataStreamer{
		feed:             feed,
		storage:          storage,
		interval:         interval,
		prices:           make(map[string]float64),
		history:          make(map[string][]interfaces.PriceTick),
		checkMarketHours: TradesRegularHours(feed),
		now:              time.Now,
		logger:           newServiceLogger(),
	}
}

// SetActivityLogger attaches the daily session log
func (ds *DataStreamer) SetActivityLogger(al *ActivityLogger) {
	ds.activity = al
}

// SetLogger replaces the default logger
func (ds *DataStreamer) SetLogger(logger *logrus.Logger) {
	ds.logger = logger
}

// Subscribe registers a callback invoked for every accepted tick
func (ds *DataStreamer) Subscribe(callback func(interfaces.PriceTick)) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.subscribers = append(ds.subscribers, callback)
}

// Start polls once immediately and then every interval until Stop or ctx ends
func (ds *DataStreamer) Start(ctx context.Context, symbols []string) error {
	ds.mu.Lock()
	if ds.running {
		ds.mu.Unlock()
		return ErrAlreadyStreaming
	}

	streamCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ds.running = true
	ds.cancel = cancel
	ds.done = done
	ds.symbols = append([]string(nil), symbols...)
	ds.mu.Unlock()

	if ds.activity != nil && len(symbols) > 0 {
		if err := ds.activity.StartSession(symbols[0], ds.feed.Name()); err != nil {
			ds.logger.WithError(err).Warn("Failed to start activity session")
		}
	}

	ds.logger.WithFields(logrus.Fields{
		"symbols":  symbols,
		"source":   ds.feed.Name(),
		"interval": ds.interval,
	}).Info("Data streaming started")

	go ds.run(streamCtx, symbols, done)
	return nil
}

func (ds *DataStreamer) run(ctx context.Context, symbols []string, done chan struct{}) {
	defer close(done)
	defer func() {
		ds.mu.Lock()
		ds.running = false
		ds.mu.Unlock()
	}()
	// the session ends with the loop, whether Stop or the parent ctx ended it
	defer ds.endSession()

	ticker := time.NewTicker(ds.interval)
	defer ticker.Stop()

	ds.poll(ctx, symbols)
	for {
		select {
		case <-ctx.Done():
			ds.logger.Info("Data streaming stopped")
			return
		case <-ticker.C:
			ds.poll(ctx, symbols)
		}
	}
}

// Stop ends the polling loop and waits for it to exit
func (ds *DataStreamer) Stop() {
	ds.mu.Lock()
	if !ds.running {
		ds.mu.Unlock()
		return
	}
	cancel, done := ds.cancel, ds.done
	ds.mu.Unlock()

	cancel()
	<-done
}

func (ds *DataStreamer) endSession() {
	if ds.activity == nil {
		return
	}
	if err := ds.activity.EndSession(); err != nil {
		ds.logger.WithError(err).Warn("Failed to end activity session")
	}
}

// Running reports whether the polling loop is active
func (ds *DataStreamer) Running() bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.running
}

// Source names the underlying feed
func (ds *DataStreamer) Source() string {
	return ds.feed.Name()
}

// Symbols returns the symbols of the current or last stream
func (ds *DataStreamer) Symbols() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return append([]string(nil), ds.symbols...)
}

// GetCurrentPrice returns the latest price, or nil if none has arrived yet
func (ds *DataStreamer) GetCurrentPrice(symbol string) *float64 {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	p, ok := ds.prices[symbol]
	if !ok {
		return nil
	}
	return &p
}

// GetPriceHistory returns up to HistoryLimit ticks, oldest first
func (ds *DataStreamer) GetPriceHistory(symbol string) []interfaces.PriceTick {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return append([]interfaces.PriceTick(nil), ds.history[symbol]...)
}

func (ds *DataStreamer) poll(ctx context.Context, symbols []string) {
	ds.checkSession()

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}

		price, err := ds.feed.GetCurrentPrice(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			ds.logger.WithError(err).WithField("symbol", symbol).Error("Failed to fetch price")
			if ds.activity != nil {
				_ = ds.activity.LogActivity(ActivityFeedError, symbol, err.Error(), nil)
			}
			continue
		}
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			ds.logger.WithFields(logrus.Fields{
				"symbol": symbol,
				"price":  price,
			}).Warn("Discarding unusable price")
			continue
		}

		tick := interfaces.PriceTick{
			Symbol:    symbol,
			Price:     price,
			Timestamp: ds.now(),
			Source:    ds.feed.Name(),
		}
		ds.record(tick)
	}
}

func (ds *DataStreamer) record(tick interfaces.PriceTick) {
	ds.mu.Lock()
	ds.prices[tick.Symbol] = tick.Price
	h := append(ds.history[tick.Symbol], tick)
	if len(h) > HistoryLimit {
		h = append([]interfaces.PriceTick(nil), h[len(h)-HistoryLimit:]...)
	}
	ds.history[tick.Symbol] = h
	subscribers := make([]func(interfaces.PriceTick), len(ds.subscribers))
	copy(subscribers, ds.subscribers)
	ds.mu.Unlock()

	if ds.storage != nil {
		t := tick
		if err := ds.storage.SaveTick(&t); err != nil {
			ds.logger.WithError(err).WithField("symbol", tick.Symbol).Warn("Failed to persist tick")
		}
	}

	for _, callback := range subscribers {
		callback(tick)
	}
}

// checkSession logs transitions of the regular equity session
func (ds *DataStreamer) checkSession() {
	if !ds.checkMarketHours {
		return
	}

	open := MarketOpen(ds.now())
	if ds.marketOpen != nil && *ds.marketOpen == open {
		return
	}
	ds.marketOpen = &open

	if open {
		ds.logger.Info("Market is open")
	} else {
		ds.logger.Info("Market is closed, prices may be stale")
	}
}
