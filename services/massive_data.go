package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"option-chain-analyzer/interfaces"

	"github.com/sirupsen/logrus"
)

// MassiveDataService reads underlying prices from the Massive (Polygon-style) aggregates API
type MassiveDataService struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	retryAfter time.Duration
	logger     *logrus.Logger
}

// NewMassiveDataService creates a new Massive data service
func NewMassiveDataService(apiKey, baseURL string) *MassiveDataService {
	if baseURL == "" {
		baseURL = "https://api.massive.com"
	}
	return &MassiveDataService{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: 30 * time.Second},
		retryAfter: 15 * time.Second,
		logger:     newServiceLogger(),
	}
}

func (s *MassiveDataService) Name() string {
	return "massive"
}

// massiveAggsResponse is the aggregates payload
type massiveAggsResponse struct {
	Ticker  string `json:"ticker"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Results []struct {
		Open      float64 `json:"o"`
		Close     float64 `json:"c"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		VWAP      float64 `json:"vw"`
		Volume    float64 `json:"v"`
		Timestamp int64   `json:"t"` // epoch millis
	} `json:"results"`
}

// GetCurrentPrice returns the previous session close for the symbol
func (s *MassiveDataService) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	bars, err := s.fetchAggs(ctx, fmt.Sprintf("/v2/aggs/ticker/%s/prev", url.PathEscape(symbol)), symbol)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no massive aggregates for %s", symbol)
	}
	return bars[len(bars)-1].Close, nil
}

// GetHistoricalData returns daily bars for the last `days` days. Only "1Day" is supported.
func (s *MassiveDataService) GetHistoricalData(ctx context.Context, symbol string, timeframe string, days int) ([]*interfaces.Bar, error) {
	if timeframe != "1Day" {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		url.PathEscape(symbol), from.Format("2006-01-02"), to.Format("2006-01-02"))

	return s.fetchAggs(ctx, path, symbol)
}

func (s *MassiveDataService) fetchAggs(ctx context.Context, path, symbol string) ([]*interfaces.Bar, error) {
	reqURL := s.baseURL + path + "?adjusted=true&sort=asc"

	body, err := s.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp massiveAggsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing massive response: %w", err)
	}

	bars := make([]*interfaces.Bar, 0, len(resp.Results))
	for _, r := range resp.Results {
		bars = append(bars, &interfaces.Bar{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(r.Timestamp).UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    int64(r.Volume),
			VWAP:      r.VWAP,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"count":  len(bars),
	}).Debug("Fetched Massive aggregates")

	return bars, nil
}

// get performs the request, waiting once and retrying on HTTP 429
func (s *MassiveDataService) get(ctx context.Context, reqURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("massive api request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			s.logger.WithField("wait", s.retryAfter).Warn("Massive rate limit hit, retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retryAfter):
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var dbg struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(body, &dbg)
			return nil, fmt.Errorf("massive returned status %d: %s", resp.StatusCode, dbg.Message)
		}
		return body, nil
	}
}
