package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"option-chain-analyzer/chain"

	"github.com/sirupsen/logrus"
)

// Activity types written to the daily session log
const (
	ActivityFeedStarted       = "FEED_STARTED"
	ActivityFeedStopped       = "FEED_STOPPED"
	ActivityFeedError         = "FEED_ERROR"
	ActivityParametersUpdated = "PARAMETERS_UPDATED"
)

// maxActivities bounds the per-day activity list.
const maxActivities = 1000

// ActivityLogger records streaming sessions and chain refreshes to daily JSON files
type ActivityLogger struct {
	mu         sync.Mutex
	logger     *logrus.Logger
	logDir     string
	now        func() time.Time
	currentLog *DailyActivityLog
}

// DailyActivityLog represents one day of analyzer activity
type DailyActivityLog struct {
	Date         string         `json:"date"`
	SessionStart time.Time      `json:"session_start"`
	SessionEnd   time.Time      `json:"session_end,omitempty"`
	Symbol       string         `json:"symbol"`
	Source       string         `json:"source"`
	Summary      SessionSummary `json:"summary"`
	Activities   []Activity     `json:"activities"`
}

// SessionSummary provides high-level stats for the session
type SessionSummary struct {
	ChainsComputed int       `json:"chains_computed"`
	SnapshotsSaved int       `json:"snapshots_saved"`
	FeedErrors     int       `json:"feed_errors"`
	FirstPrice     float64   `json:"first_price"`
	LastPrice      float64   `json:"last_price"`
	HighPrice      float64   `json:"high_price"`
	LowPrice       float64   `json:"low_price"`
	LastATMStrike  float64   `json:"last_atm_strike"`
	LastComputedAt time.Time `json:"last_computed_at,omitempty"`
}

// Activity represents a single notable event
type Activity struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Symbol    string                 `json:"symbol,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// NewActivityLogger creates a new activity logger
func NewActivityLogger(logDir string) *ActivityLogger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := os.MkdirAll(logDir, 0755); err != nil {
		logger.WithError(err).Error("Failed to create activity log directory")
	}

	return &ActivityLogger{
		logger: logger,
		logDir: logDir,
		now:    time.Now,
	}
}

// StartSession opens (or resumes) the log for today
func (al *ActivityLogger) StartSession(symbol, source string) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	now := al.now()
	date := now.Format("2006-01-02")

	if existing, err := al.readLog(date); err == nil {
		al.currentLog = existing
		al.currentLog.SessionEnd = time.Time{}
	} else {
		al.currentLog = &DailyActivityLog{
			Date:         date,
			SessionStart: now,
			Activities:   make([]Activity, 0),
		}
	}
	al.currentLog.Symbol = symbol
	al.currentLog.Source = source

	al.appendLocked(ActivityFeedStarted, symbol, fmt.Sprintf("streaming %s from %s", symbol, source), nil)

	al.logger.WithFields(logrus.Fields{
		"date":   date,
		"symbol": symbol,
		"source": source,
	}).Info("Activity session started")

	return al.saveLocked()
}

// EndSession closes the current session
func (al *ActivityLogger) EndSession() error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if al.currentLog == nil {
		return fmt.Errorf("no active session")
	}

	al.currentLog.SessionEnd = al.now()
	al.appendLocked(ActivityFeedStopped, al.currentLog.Symbol, "streaming stopped", nil)
	return al.saveLocked()
}

// LogActivity records a free-form event
func (al *ActivityLogger) LogActivity(activityType, symbol, message string, details map[string]interface{}) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if al.currentLog == nil {
		return fmt.Errorf("no active session")
	}

	al.appendLocked(activityType, symbol, message, details)
	if activityType == ActivityFeedError {
		al.currentLog.Summary.FeedErrors++
	}
	return al.saveLocked()
}

// RecordChain folds one computed chain into the session summary.
// It only touches memory; the file is written on the next event or snapshot.
func (al *ActivityLogger) RecordChain(summary chain.Summary, computedAt time.Time) {
	al.mu.Lock()
	defer al.mu.Unlock()

	if al.currentLog == nil || !summary.Ready {
		return
	}

	s := &al.currentLog.Summary
	price := summary.UnderlyingPrice
	if s.ChainsComputed == 0 {
		s.FirstPrice, s.HighPrice, s.LowPrice = price, price, price
	}
	if price > s.HighPrice {
		s.HighPrice = price
	}
	if price < s.LowPrice {
		s.LowPrice = price
	}
	s.LastPrice = price
	s.LastATMStrike = summary.ATMStrike
	s.LastComputedAt = computedAt
	s.ChainsComputed++
}

// RecordSnapshot notes a persisted snapshot and flushes the log
func (al *ActivityLogger) RecordSnapshot(symbol string, strikes int) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if al.currentLog == nil {
		return nil
	}

	al.currentLog.Summary.SnapshotsSaved++
	al.logger.WithFields(logrus.Fields{
		"symbol":  symbol,
		"strikes": strikes,
	}).Debug("Snapshot recorded")
	return al.saveLocked()
}

// GetCurrentLog returns a copy of the current session's log
func (al *ActivityLogger) GetCurrentLog() (*DailyActivityLog, error) {
	al.mu.Lock()
	defer al.mu.Unlock()

	if al.currentLog == nil {
		return nil, fmt.Errorf("no active session")
	}

	cp := *al.currentLog
	cp.Activities = append([]Activity(nil), al.currentLog.Activities...)
	return &cp, nil
}

// GetLogForDate retrieves the log for a specific date
func (al *ActivityLogger) GetLogForDate(date string) (*DailyActivityLog, error) {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.readLog(date)
}

// ListAvailableLogs returns the dates that have a log file, newest first
func (al *ActivityLogger) ListAvailableLogs() ([]string, error) {
	files, err := os.ReadDir(al.logDir)
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0)
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || filepath.Ext(name) != ".json" || !strings.HasPrefix(name, "activity_") {
			continue
		}
		// activity_2024-03-01.json
		dates = append(dates, strings.TrimSuffix(strings.TrimPrefix(name, "activity_"), ".json"))
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

func (al *ActivityLogger) appendLocked(activityType, symbol, message string, details map[string]interface{}) {
	al.currentLog.Activities = append(al.currentLog.Activities, Activity{
		Timestamp: al.now(),
		Type:      activityType,
		Symbol:    symbol,
		Message:   message,
		Details:   details,
	})
	if n := len(al.currentLog.Activities); n > maxActivities {
		al.currentLog.Activities = al.currentLog.Activities[n-maxActivities:]
	}
}

func (al *ActivityLogger) readLog(date string) (*DailyActivityLog, error) {
	filename := filepath.Join(al.logDir, fmt.Sprintf("activity_%s.json", date))

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("log not found for date %s: %w", date, err)
	}

	var log DailyActivityLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to parse log: %w", err)
	}
	return &log, nil
}

// saveLocked writes the current log to disk; callers hold mu
func (al *ActivityLogger) saveLocked() error {
	if al.currentLog == nil {
		return fmt.Errorf("no active log to save")
	}

	filename := filepath.Join(al.logDir, fmt.Sprintf("activity_%s.json", al.currentLog.Date))

	data, err := json.MarshalIndent(al.currentLog, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	return nil
}
