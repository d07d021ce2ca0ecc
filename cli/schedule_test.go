package cli

import (
	"testing"
	"time"
)

func TestSchedule(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	jobs := parseSchedule(map[string]string{
		"*/5 * * * *": "reload",
		"@hourly":     "status",
		"not cron":    "quit",
	}, start)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 valid jobs, got %d", len(jobs))
	}
	if jobs[0].cmd != "reload" {
		t.Errorf("jobs not ordered by next run: first is %q", jobs[0].cmd)
	}

	if got := due(jobs, start.Add(time.Minute)); len(got) != 0 {
		t.Errorf("nothing should be due yet, got %v", got)
	}
	if got := due(jobs, time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)); len(got) != 1 || got[0] != "reload" {
		t.Errorf("expected reload at 12:05, got %v", got)
	}
	// Advanced past 12:05.
	if got := due(jobs, time.Date(2025, 6, 1, 12, 5, 1, 0, time.UTC)); len(got) != 0 {
		t.Errorf("reload ran twice: %v", got)
	}
	if got := due(jobs, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)); len(got) != 2 {
		t.Errorf("expected both jobs at 13:00, got %v", got)
	}
}
