package services

import (
	"context"
	"fmt"
	"time"

	"option-chain-analyzer/interfaces"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sirupsen/logrus"
)

// alpacaBarsClient is the subset of the Alpaca market data client used here
type alpacaBarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaDataService fetches stock bars from Alpaca and falls back to mock prices
type AlpacaDataService struct {
	client alpacaBarsClient
	feed   marketdata.Feed
	now    func() time.Time
	logger *logrus.Logger
}

// NewAlpacaDataService creates a new Alpaca data service. With empty keys the
// service runs unconfigured and every lookup uses the mock price table.
func NewAlpacaDataService(apiKey, secretKey, feed string) *AlpacaDataService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	var client alpacaBarsClient
	if apiKey != "" && secretKey != "" {
		client = marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: secretKey,
		})
	} else {
		logger.Warn("Alpaca credentials missing, using mock prices")
	}

	if feed == "" {
		feed = string(marketdata.IEX)
	}

	return &AlpacaDataService{
		client: client,
		feed:   marketdata.Feed(feed),
		now:    time.Now,
		logger: logger,
	}
}

func (s *AlpacaDataService) Name() string {
	return "alpaca"
}

// GetHistoricalData returns bars for the last `days` days. timeframe is "5Min",
// "1Min", "1Hour" or "1Day". The window stops 15 minutes short of now so that
// the free IEX feed does not reject the request.
func (s *AlpacaDataService) GetHistoricalData(ctx context.Context, symbol string, timeframe string, days int) ([]*interfaces.Bar, error) {
	if s.client == nil {
		return nil, fmt.Errorf("alpaca client not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tf, err := parseTimeFrame(timeframe)
	if err != nil {
		return nil, err
	}

	end := s.now().Add(-15 * time.Minute)
	start := end.AddDate(0, 0, -days)

	bars, err := s.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     start,
		End:       end,
		Feed:      s.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}

	result := make([]*interfaces.Bar, len(bars))
	for i, bar := range bars {
		result[i] = &interfaces.Bar{
			Symbol:    symbol,
			Timestamp: bar.Timestamp,
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    int64(bar.Volume),
			VWAP:      bar.VWAP,
		}
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":    symbol,
		"timeframe": timeframe,
		"count":     len(result),
	}).Debug("Fetched Alpaca bars")

	return result, nil
}

// GetCurrentPrice returns the close of the latest 5-minute bar of the last day
func (s *AlpacaDataService) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	bars, err := s.GetHistoricalData(ctx, symbol, "5Min", 1)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Alpaca price unavailable, using mock price")
		return MockBasePrice(symbol), nil
	}
	if len(bars) == 0 {
		s.logger.WithField("symbol", symbol).Warn("No Alpaca bars returned, using mock price")
		return MockBasePrice(symbol), nil
	}

	return bars[len(bars)-1].Close, nil
}

func parseTimeFrame(timeframe string) (marketdata.TimeFrame, error) {
	switch timeframe {
	case "1Min":
		return marketdata.OneMin, nil
	case "5Min":
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case "15Min":
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case "1Hour":
		return marketdata.OneHour, nil
	case "1Day":
		return marketdata.OneDay, nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe %q", timeframe)
}
