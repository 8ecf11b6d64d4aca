package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"option-chain-analyzer/chain"
	"option-chain-analyzer/config"
	"option-chain-analyzer/interfaces"

	"github.com/sirupsen/logrus"
)

// PriceSource supplies the latest underlying price, nil when none is known
type PriceSource interface {
	GetCurrentPrice(symbol string) *float64
}

// Parameters are the user-adjustable chain inputs. Nil fields are left unchanged.
type Parameters struct {
	RiskFreeRate *float64   `json:"risk_free_rate"`
	Volatility   *float64   `json:"volatility"`
	StrikeRange  *float64   `json:"strike_range"`
	StrikeStep   *float64   `json:"strike_step"`
	Expiry       *time.Time `json:"expiry"`
}

// ChainParameters is a resolved copy of the inputs used for the next build
type ChainParameters struct {
	RiskFreeRate float64   `json:"risk_free_rate"`
	Volatility   float64   `json:"volatility"`
	StrikeRange  float64   `json:"strike_range"`
	StrikeStep   float64   `json:"strike_step"`
	Expiry       time.Time `json:"expiry"`
}

var _ interfaces.ChainProvider = (*ChainService)(nil)

type cachedChain struct {
	snapshot *interfaces.ChainSnapshot
	summary  chain.Summary
}

// ChainService rebuilds option chains from the streamed price
type ChainService struct {
	prices   PriceSource
	storage  interfaces.StorageService
	activity *ActivityLogger
	symbol   string
	interval time.Duration

	params ChainParameters
	cache  map[string]cachedChain
	mu     sync.RWMutex

	now    func() time.Time
	logger *logrus.Logger
}

// NewChainService creates a chain service for cfg.Symbol. storage may be nil.
func NewChainService(cfg *config.Config, prices PriceSource, storage interfaces.StorageService) *ChainService {
	now := time.Now
	return &ChainService{
		prices:   prices,
		storage:  storage,
		symbol:   cfg.Symbol,
		interval: cfg.UpdateInterval(),
		params: ChainParameters{
			RiskFreeRate: cfg.RiskFreeRate,
			Volatility:   cfg.Volatility,
			StrikeRange:  cfg.StrikeRange,
			StrikeStep:   cfg.StrikeStep,
			Expiry:       cfg.Expiry(now()),
		},
		cache:  make(map[string]cachedChain),
		now:    now,
		logger: newServiceLogger(),
	}
}

// SetActivityLogger attaches the daily session log
func (cs *ChainService) SetActivityLogger(al *ActivityLogger) {
	cs.activity = al
}

// SetLogger replaces the default logger
func (cs *ChainService) SetLogger(logger *logrus.Logger) {
	cs.logger = logger
}

// Parameters returns the inputs used for the next build
func (cs *ChainService) Parameters() ChainParameters {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.params
}

// Request builds a chain request from the current parameters
func (cs *ChainService) Request(price *float64, now time.Time) chain.Request {
	p := cs.Parameters()
	return chain.Request{
		CurrentPrice: price,
		StrikeRange:  p.StrikeRange,
		StrikeStep:   p.StrikeStep,
		Expiry:       p.Expiry,
		RiskFreeRate: p.RiskFreeRate,
		Volatility:   p.Volatility,
		Now:          now,
	}
}

// UpdateParameters validates and applies new chain inputs
func (cs *ChainService) UpdateParameters(update Parameters) (ChainParameters, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	next := cs.params
	if update.RiskFreeRate != nil {
		next.RiskFreeRate = *update.RiskFreeRate
	}
	if update.Volatility != nil {
		next.Volatility = *update.Volatility
	}
	if update.StrikeRange != nil {
		next.StrikeRange = *update.StrikeRange
	}
	if update.StrikeStep != nil {
		next.StrikeStep = *update.StrikeStep
	}
	if update.Expiry != nil {
		next.Expiry = *update.Expiry
	}

	req := chain.Request{
		StrikeRange:  next.StrikeRange,
		StrikeStep:   next.StrikeStep,
		RiskFreeRate: next.RiskFreeRate,
		Volatility:   next.Volatility,
	}
	if err := req.Validate(); err != nil {
		return cs.params, err
	}

	cs.params = next
	cs.cache = make(map[string]cachedChain)

	cs.logger.WithFields(logrus.Fields{
		"rate":   next.RiskFreeRate,
		"vol":    next.Volatility,
		"range":  next.StrikeRange,
		"step":   next.StrikeStep,
		"expiry": next.Expiry.Format(time.RFC3339),
	}).Info("Chain parameters updated")

	if cs.activity != nil {
		_ = cs.activity.LogActivity(ActivityParametersUpdated, cs.symbol, "chain parameters updated", map[string]interface{}{
			"risk_free_rate": next.RiskFreeRate,
			"volatility":     next.Volatility,
			"strike_range":   next.StrikeRange,
			"strike_step":    next.StrikeStep,
			"expiry":         next.Expiry,
		})
	}
	return next, nil
}

// Compute builds the chain for symbol from the latest price and caches it.
// With no price yet the snapshot has no rows and the summary is not ready.
func (cs *ChainService) Compute(symbol string, now time.Time) (*interfaces.ChainSnapshot, chain.Summary, error) {
	price := cs.prices.GetCurrentPrice(symbol)
	req := cs.Request(price, now)

	rows, err := chain.Build(req)
	if err != nil {
		return nil, chain.Summary{}, fmt.Errorf("failed to build chain for %s: %w", symbol, err)
	}

	snapshot := &interfaces.ChainSnapshot{
		Symbol:       symbol,
		Expiry:       req.Expiry,
		RiskFreeRate: req.RiskFreeRate,
		Volatility:   req.Volatility,
		StrikeRange:  req.StrikeRange,
		StrikeStep:   req.StrikeStep,
		ComputedAt:   now,
		Rows:         rows,
	}
	if price != nil {
		snapshot.UnderlyingPrice = *price
	}
	summary := chain.Summarize(rows, price)

	if len(rows) > 0 {
		cs.mu.Lock()
		cs.cache[symbol] = cachedChain{snapshot: snapshot, summary: summary}
		cs.mu.Unlock()

		if cs.activity != nil {
			cs.activity.RecordChain(summary, now)
		}
	}

	return snapshot, summary, nil
}

// Latest returns the most recently computed chain for symbol
func (cs *ChainService) Latest(symbol string) (*interfaces.ChainSnapshot, chain.Summary, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	cached, ok := cs.cache[symbol]
	if !ok {
		return nil, chain.Summary{}, false
	}
	return cached.snapshot, cached.summary, true
}

// Refresh computes the configured symbol's chain once and persists it
func (cs *ChainService) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot, summary, err := cs.Compute(cs.symbol, cs.now())
	if err != nil {
		return err
	}
	if !summary.Ready {
		cs.logger.WithField("symbol", cs.symbol).Debug("Waiting for price data")
		return nil
	}

	cs.logger.WithFields(logrus.Fields{
		"symbol":     cs.symbol,
		"price":      summary.UnderlyingPrice,
		"atm_strike": summary.ATMStrike,
		"strikes":    summary.Strikes,
	}).Debug("Option chain refreshed")

	if cs.storage != nil {
		if err := cs.storage.SaveChainSnapshot(snapshot); err != nil {
			return fmt.Errorf("failed to persist chain: %w", err)
		}
		if cs.activity != nil {
			if err := cs.activity.RecordSnapshot(cs.symbol, len(snapshot.Rows)); err != nil {
				cs.logger.WithError(err).Warn("Failed to update activity log")
			}
		}
	}
	return nil
}

// Run refreshes on every interval until ctx is done
func (cs *ChainService) Run(ctx context.Context) {
	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()

	cs.logger.WithField("symbol", cs.symbol).Info("Chain refresh started")

	for {
		select {
		case <-ctx.Done():
			cs.logger.Info("Chain refresh stopped")
			return
		case <-ticker.C:
			if err := cs.Refresh(ctx); err != nil && ctx.Err() == nil {
				cs.logger.WithError(err).Error("Chain refresh failed")
			}
		}
	}
}

// Symbol returns the symbol refreshed by Run
func (cs *ChainService) Symbol() string {
	return cs.symbol
}
