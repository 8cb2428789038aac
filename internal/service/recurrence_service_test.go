package service

import (
	"testing"
	"time"
)

func TestNextOccurrence_NamedRules(t *testing.T) {
	after := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	next, err := NextOccurrence("daily", after)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("daily next = %v, want %v", next, want)
	}

	next, err = NextOccurrence("monthly", after)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	want = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("monthly next = %v, want %v", next, want)
	}
}

func TestNextOccurrence_CronSpec(t *testing.T) {
	after := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	// Every Monday at 09:00.
	next, err := NextOccurrence("0 9 * * 1", after)
	if err != nil {
		t.Fatalf("cron spec: %v", err)
	}
	if next.Weekday() != time.Monday || next.Hour() != 9 {
		t.Errorf("next = %v, want a Monday 09:00", next)
	}
	if !next.After(after) {
		t.Errorf("next = %v is not after %v", next, after)
	}
}

func TestNextOccurrence_InvalidRule(t *testing.T) {
	if _, err := NextOccurrence("every other blue moon", time.Now()); err == nil {
		t.Error("expected error for unparseable rule")
	}
}
