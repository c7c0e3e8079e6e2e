package cron

import (
	"testing"
	"time"
)

func TestMatchField(t *testing.T) {
	tests := []struct {
		field string
		value int
		min   int
		max   int
		want  bool
	}{
		{"*", 30, 0, 59, true},
		{"*", 0, 0, 59, true},
		{"*/5", 15, 0, 59, true},
		{"*/5", 17, 0, 59, false},
		{"*/15", 0, 0, 59, true},
		{"0", 0, 0, 59, true},
		{"0", 1, 0, 59, false},
		{"1,15,30", 15, 0, 59, true},
		{"1,15,30", 16, 0, 59, false},
		{"9-17", 12, 0, 23, true},
		{"9-17", 9, 0, 23, true},
		{"9-17", 17, 0, 23, true},
		{"9-17", 18, 0, 23, false},
		{"1-5,10", 10, 0, 59, true},
		// Out-of-range literals never match.
		{"60", 0, 0, 59, false},
		{"25", 25, 0, 23, false},
		// Unsupported combined syntax falls through to no match.
		{"0-30/5", 10, 0, 59, false},
		{"MON", 1, 0, 6, false},
		{"*/0", 0, 0, 59, false},
		{"abc", 5, 0, 59, false},
	}
	for _, tc := range tests {
		if got := MatchField(tc.field, tc.value, tc.min, tc.max); got != tc.want {
			t.Errorf("MatchField(%q, %d) = %v, want %v", tc.field, tc.value, got, tc.want)
		}
	}
}

func TestMatchesAllFields(t *testing.T) {
	// 2026-02-15 is a Sunday (weekday 0).
	at := time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want bool
	}{
		{"* * * * *", true},
		{"30 10 15 2 0", true},
		{"30 10 * * *", true},
		{"31 10 * * *", false},
		{"30 11 * * *", false},
		{"30 10 14 * *", false},
		{"30 10 * 3 *", false},
		// Both day fields must match: AND semantics, not POSIX OR.
		{"30 10 15 * 1", false},
		{"30 10 14 * 0", false},
		{"bad expr", false},
		{"* * * *", false},
	}
	for _, tc := range tests {
		if got := Matches(tc.expr, at); got != tc.want {
			t.Errorf("Matches(%q, %v) = %v, want %v", tc.expr, at, got, tc.want)
		}
	}
}

func TestShouldFireDedup(t *testing.T) {
	now := time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC)

	// Matching expression, fired 30s ago: suppressed.
	last := now.Add(-30 * time.Second)
	if ShouldFire("* * * * *", "UTC", &last, now) {
		t.Error("fire within 60s dedup window should be suppressed")
	}

	// Matching expression, fired 90s ago: fires.
	last = now.Add(-90 * time.Second)
	if !ShouldFire("* * * * *", "UTC", &last, now) {
		t.Error("fire after dedup window should be allowed")
	}

	// Never fired: fires.
	if !ShouldFire("* * * * *", "UTC", nil, now) {
		t.Error("schedule with no prior fire should be allowed")
	}

	// Dedup applies even when the expression matches.
	last = now.Add(-10 * time.Second)
	if ShouldFire("30 10 * * *", "UTC", &last, now) {
		t.Error("dedup must win over a matching expression")
	}
}

func TestShouldFireTimezone(t *testing.T) {
	// 12:00 America/Chicago in February is 18:00 UTC (CST, UTC-6).
	noonChicago := time.Date(2026, 2, 16, 18, 0, 0, 0, time.UTC)

	if !ShouldFire("0 12 * * *", "America/Chicago", nil, noonChicago) {
		t.Error("schedule should fire at noon local time")
	}
	if ShouldFire("0 12 * * *", "UTC", nil, noonChicago) {
		t.Error("same instant in UTC is 18:00 and should not match")
	}

	// Re-evaluated 10 seconds later with the fire recorded: dedup.
	fired := noonChicago
	if ShouldFire("0 12 * * *", "America/Chicago", &fired, noonChicago.Add(10*time.Second)) {
		t.Error("re-evaluation 10s after firing should dedup")
	}
}

func TestShouldFireBadTimezone(t *testing.T) {
	// Unknown zone falls back to UTC.
	at := time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC)
	if !ShouldFire("0 12 * * *", "Not/AZone", nil, at) {
		t.Error("bad timezone should evaluate in UTC")
	}
}

func TestNextFireAt(t *testing.T) {
	now := time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		expr string
	}{
		{"* * * * *"},
		{"*/5 * * * *"},
		{"0 12 * * *"},
		{"0 0 * * 1"},
		{"30 4 16 * *"},
	}
	for _, tc := range tests {
		next := NextFireAt(tc.expr, "UTC", now)
		if !next.After(now) {
			t.Errorf("NextFireAt(%q) = %v, not after now", tc.expr, next)
		}
		if !Matches(tc.expr, next) {
			t.Errorf("NextFireAt(%q) = %v does not satisfy its own expression", tc.expr, next)
		}
	}
}

func TestNextFireAtEveryMinute(t *testing.T) {
	now := time.Date(2026, 2, 15, 10, 30, 20, 0, time.UTC)
	next := NextFireAt("* * * * *", "UTC", now)
	want := time.Date(2026, 2, 15, 10, 31, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("NextFireAt = %v, want %v", next, want)
	}
}

func TestNextFireAtNoMatchFallback(t *testing.T) {
	// Feb 30 never matches; fallback is now+24h.
	now := time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC)
	next := NextFireAt("0 0 30 2 *", "UTC", now)
	if got, want := next, now.Add(24*time.Hour); !got.Equal(want) {
		t.Errorf("fallback NextFireAt = %v, want %v", got, want)
	}
}
