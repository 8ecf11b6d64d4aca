package services

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"option-chain-analyzer/chain"
)

func newTestActivityLogger(t *testing.T, now time.Time) *ActivityLogger {
	t.Helper()
	al := NewActivityLogger(t.TempDir())
	al.logger.SetOutput(io.Discard)
	al.now = func() time.Time { return now }
	return al
}

func TestActivitySessionLifecycle(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	al := newTestActivityLogger(t, now)

	if err := al.LogActivity(ActivityFeedError, "AAPL", "boom", nil); err == nil {
		t.Fatal("logging without a session should fail")
	}

	if err := al.StartSession("AAPL", "mock"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	al.RecordChain(chain.Summary{Ready: true, UnderlyingPrice: 181, ATMStrike: 180}, now)
	al.RecordChain(chain.Summary{Ready: true, UnderlyingPrice: 183, ATMStrike: 185}, now)
	al.RecordChain(chain.Summary{Ready: true, UnderlyingPrice: 179.5, ATMStrike: 180}, now)
	al.RecordChain(chain.Summary{}, now)

	if err := al.LogActivity(ActivityFeedError, "AAPL", "timeout", nil); err != nil {
		t.Fatal(err)
	}
	if err := al.RecordSnapshot("AAPL", 21); err != nil {
		t.Fatal(err)
	}
	if err := al.EndSession(); err != nil {
		t.Fatal(err)
	}

	log, err := al.GetLogForDate("2024-03-01")
	if err != nil {
		t.Fatalf("GetLogForDate: %v", err)
	}
	s := log.Summary
	if s.ChainsComputed != 3 || s.FeedErrors != 1 || s.SnapshotsSaved != 1 {
		t.Fatalf("summary counters = %+v", s)
	}
	if s.FirstPrice != 181 || s.HighPrice != 183 || s.LowPrice != 179.5 || s.LastPrice != 179.5 || s.LastATMStrike != 180 {
		t.Fatalf("summary prices = %+v", s)
	}

	var types []string
	for _, a := range log.Activities {
		types = append(types, a.Type)
	}
	if strings.Join(types, ",") != "FEED_STARTED,FEED_ERROR,FEED_STOPPED" {
		t.Fatalf("activities = %v", types)
	}
	if log.SessionEnd.IsZero() {
		t.Fatal("session end not recorded")
	}
}

func TestActivitySessionResumesSameDay(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	al := newTestActivityLogger(t, now)

	if err := al.StartSession("AAPL", "mock"); err != nil {
		t.Fatal(err)
	}
	al.RecordChain(chain.Summary{Ready: true, UnderlyingPrice: 181}, now)
	if err := al.RecordSnapshot("AAPL", 9); err != nil {
		t.Fatal(err)
	}
	if err := al.EndSession(); err != nil {
		t.Fatal(err)
	}

	if err := al.StartSession("AAPL", "alpaca"); err != nil {
		t.Fatal(err)
	}
	log, err := al.GetCurrentLog()
	if err != nil {
		t.Fatal(err)
	}
	if log.Summary.ChainsComputed != 1 || log.Source != "alpaca" || !log.SessionEnd.IsZero() {
		t.Fatalf("resumed log = %+v", log)
	}
}

func TestListAvailableLogs(t *testing.T) {
	al := newTestActivityLogger(t, time.Now())
	for _, name := range []string{"activity_2024-03-01.json", "activity_2024-03-04.json", "notes.txt", "other.json"} {
		if err := os.WriteFile(filepath.Join(al.logDir, name), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	dates, err := al.ListAvailableLogs()
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 2 || dates[0] != "2024-03-04" || dates[1] != "2024-03-01" {
		t.Fatalf("dates = %v", dates)
	}
}

func TestNewLoggerWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := NewLogger(LogConfig{Dir: dir, Level: "debug"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("hello from test")
	closer.Close()

	name := filepath.Join(dir, "option_pricing_"+time.Now().Format("20060102")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Fatalf("log file content = %q", data)
	}

	if _, _, err := NewLogger(LogConfig{Level: "loud"}); err == nil {
		t.Fatal("invalid level should fail")
	}
}
