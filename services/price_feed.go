package services

import (
	"fmt"
	"time"

	"option-chain-analyzer/config"
	"option-chain-analyzer/interfaces"
)

// NewPriceFeed builds the price feed selected by cfg.DataSource
func NewPriceFeed(cfg *config.Config) (interfaces.PriceFeed, error) {
	switch cfg.DataSource {
	case config.SourceMock:
		return NewMockDataService(0), nil
	case config.SourceAlpaca:
		return NewAlpacaDataService(cfg.Alpaca.APIKey, cfg.Alpaca.SecretKey, cfg.Alpaca.Feed), nil
	case config.SourceBinance:
		return NewBinanceDataService(cfg.Binance.BaseURL), nil
	case config.SourceMassive:
		if cfg.Massive.APIKey == "" {
			return nil, fmt.Errorf("massive data source requires MASSIVE_API_KEY")
		}
		return NewMassiveDataService(cfg.Massive.APIKey, cfg.Massive.BaseURL), nil
	}
	return nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
}

// TradesRegularHours reports whether a feed follows the US equity session.
// Crypto feeds trade around the clock.
func TradesRegularHours(feed interfaces.PriceFeed) bool {
	return feed.Name() != config.SourceBinance
}

var newYork = loadNewYork()

func loadNewYork() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// MarketOpen reports whether now falls inside the regular US equity session,
// 09:30 to 16:00 New York time on weekdays. Exchange holidays are not modelled.
func MarketOpen(now time.Time) bool {
	t := now.In(newYork)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}

	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}
