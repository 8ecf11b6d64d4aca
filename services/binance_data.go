package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"option-chain-analyzer/interfaces"

	"github.com/sirupsen/logrus"
)

// BinanceDataService reads spot prices from the public Binance klines endpoint
type BinanceDataService struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewBinanceDataService creates a new Binance data service
func NewBinanceDataService(baseURL string) *BinanceDataService {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	return &BinanceDataService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  newServiceLogger(),
	}
}

func (s *BinanceDataService) Name() string {
	return "binance"
}

// GetCurrentPrice returns the close of the latest 1-minute kline
func (s *BinanceDataService) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	bars, err := s.klines(ctx, symbol, "1m", 1)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no klines returned for %s", symbol)
	}
	return bars[len(bars)-1].Close, nil
}

// binanceIntervals maps timeframes to Binance interval names. Alpaca-style
// names are accepted so one query works against every feed.
var binanceIntervals = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "1h": "1h", "1d": "1d",
	"1min": "1m", "5min": "5m", "15min": "15m", "1hour": "1h", "1day": "1d",
}

var barsPerDay = map[string]int{"1m": 1440, "5m": 288, "15m": 96, "1h": 24, "1d": 1}

// GetHistoricalData returns klines covering the last `days` days. timeframe
// is a Binance interval ("1m", "1h", "1d") or its Alpaca name ("1Min", "1Hour", "1Day").
func (s *BinanceDataService) GetHistoricalData(ctx context.Context, symbol string, timeframe string, days int) ([]*interfaces.Bar, error) {
	interval, ok := binanceIntervals[strings.ToLower(timeframe)]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	limit := barsPerDay[interval] * days
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.klines(ctx, symbol, interval, limit)
}

func (s *BinanceDataService) klines(ctx context.Context, symbol, interval string, limit int) ([]*interfaces.Bar, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	reqURL := fmt.Sprintf("%s/api/v3/klines?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Error("Binance API error")
		return nil, fmt.Errorf("binance API error: %s - %s", resp.Status, string(body))
	}

	// each kline is [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse klines: %w", err)
	}

	bars := make([]*interfaces.Bar, 0, len(raw))
	for _, k := range raw {
		bar, err := parseKline(symbol, k)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseKline(symbol string, k []json.RawMessage) (*interfaces.Bar, error) {
	if len(k) < 6 {
		return nil, fmt.Errorf("malformed kline with %d fields", len(k))
	}

	var openTime int64
	if err := json.Unmarshal(k[0], &openTime); err != nil {
		return nil, fmt.Errorf("failed to parse kline open time: %w", err)
	}

	vals := make([]float64, 5)
	for i := range vals {
		var s string
		if err := json.Unmarshal(k[i+1], &s); err != nil {
			return nil, fmt.Errorf("failed to parse kline field %d: %w", i+1, err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse kline field %d: %w", i+1, err)
		}
		vals[i] = f
	}

	return &interfaces.Bar{
		Symbol:    strings.ToUpper(symbol),
		Timestamp: time.UnixMilli(openTime).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    int64(vals[4]),
	}, nil
}
