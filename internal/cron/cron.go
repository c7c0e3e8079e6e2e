// Package cron evaluates 5-field cron expressions against wall-clock time
// in a schedule's own timezone, with a 60-second fire-dedup window.
package cron

import (
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // schedules carry IANA zone names; don't depend on host tzdata
)

// dedupWindow suppresses a repeat fire of the same schedule within one
// minute, so re-evaluating inside the same minute cannot double-fire.
const dedupWindow = 60 * time.Second

// MatchField reports whether value matches one cron field. Supported
// syntaxes: "*", "*/N", comma-separated literals, and "A-B" inclusive
// ranges. Combined forms like "A-B/N" and named days/months are out of
// scope and match nothing.
func MatchField(field string, value, min, max int) bool {
	if field == "*" {
		return true
	}
	if strings.HasPrefix(field, "*/") {
		step, err := strconv.Atoi(field[2:])
		if err != nil || step <= 0 {
			return false
		}
		return value%step == 0
	}
	for _, part := range strings.Split(field, ",") {
		if matchPart(part, value, min, max) {
			return true
		}
	}
	return false
}

func matchPart(part string, value, min, max int) bool {
	if i := strings.IndexByte(part, '-'); i > 0 {
		lo, err1 := strconv.Atoi(part[:i])
		hi, err2 := strconv.Atoi(part[i+1:])
		if err1 != nil || err2 != nil {
			return false
		}
		if lo < min || hi > max || lo > hi {
			return false
		}
		return value >= lo && value <= hi
	}
	n, err := strconv.Atoi(part)
	if err != nil || n < min || n > max {
		return false
	}
	return value == n
}

// Matches reports whether t satisfies all five fields of expr. Day-of-month
// and day-of-week are both required to match when both are restricted,
// unlike POSIX cron where they are OR'd.
func Matches(expr string, t time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}
	return MatchField(fields[0], t.Minute(), 0, 59) &&
		MatchField(fields[1], t.Hour(), 0, 23) &&
		MatchField(fields[2], t.Day(), 1, 31) &&
		MatchField(fields[3], int(t.Month()), 1, 12) &&
		MatchField(fields[4], int(t.Weekday()), 0, 6)
}

// InZone converts t to the named IANA timezone, falling back to UTC when
// the name does not resolve.
func InZone(t time.Time, tz string) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}

// ShouldFire decides whether a schedule fires at now: the expression must
// match now in the schedule's timezone, and at least the dedup window must
// have elapsed since the last fire.
func ShouldFire(expr, tz string, lastFiredAt *time.Time, now time.Time) bool {
	if lastFiredAt != nil && now.Sub(*lastFiredAt) < dedupWindow {
		return false
	}
	return Matches(expr, InZone(now, tz))
}

// NextFireAt estimates the next matching time after now by scanning forward
// in one-minute steps, bounded to 7 days. When nothing matches in that
// window it falls back to now+24h. Linear in the fire interval; fine at
// seed-data scale.
func NextFireAt(expr, tz string, now time.Time) time.Time {
	local := InZone(now, tz)
	candidate := local.Truncate(time.Minute).Add(time.Minute)
	limit := local.Add(7 * 24 * time.Hour)

	for candidate.Before(limit) {
		if Matches(expr, candidate) {
			return candidate
		}
		candidate = candidate.Add(time.Minute)
	}
	return local.Add(24 * time.Hour)
}
