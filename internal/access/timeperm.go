package access

import (
	"strconv"
	"strings"
	"time"
)

// TimeRange bounds a permission grant with absolute Unix timestamps.
type TimeRange struct {
	Begin int64
	End   int64
}

// TimeConfig is the evaluator input for one permission's time window.
// Pointer fields distinguish "not configured" from a zero value:
// a daily window starting at midnight is DailyBegin pointing at 0,
// not nil.
type TimeConfig struct {
	Type       int
	Range      *TimeRange
	DailyBegin *int64            // seconds since local midnight, type 2
	DailyEnd   *int64            // seconds since local midnight, type 2
	WeekPeriod map[string]string // weekday "1".."7" -> slot list, type 3
}

// EvaluateTime reports whether tc grants access at now. It is a pure
// function with no I/O: malformed or incomplete configurations and
// unknown types evaluate to false, never to an error, because a grant
// must fail closed.
//
// Bounds are inclusive on both ends. Weekday and time-of-day are taken
// in now's location; weekdays are numbered 1 (Monday) through 7
// (Sunday). A weekly slot whose end offset is numerically below its
// start spans midnight and matches when the time-of-day is at or after
// the start or at or before the end.
func EvaluateTime(tc TimeConfig, now time.Time) bool {
	switch tc.Type {
	case TimeTypeAlways:
		return true

	case TimeTypeRange:
		if tc.Range == nil {
			return false
		}
		return inRange(tc.Range, now.Unix())

	case TimeTypeDaily:
		if tc.Range == nil || tc.DailyBegin == nil || tc.DailyEnd == nil {
			return false
		}
		if !inRange(tc.Range, now.Unix()) {
			return false
		}
		tod := secondsIntoDay(now)
		return tod >= *tc.DailyBegin && tod <= *tc.DailyEnd

	case TimeTypeWeekly:
		if tc.Range == nil || len(tc.WeekPeriod) == 0 {
			return false
		}
		if !inRange(tc.Range, now.Unix()) {
			return false
		}
		slots, ok := tc.WeekPeriod[strconv.Itoa(isoWeekday(now))]
		if !ok || slots == "" {
			return false
		}
		tod := secondsIntoDay(now)
		for _, slot := range strings.Split(slots, "|") {
			if inSlot(tod, slot) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

func inRange(r *TimeRange, now int64) bool {
	return now >= r.Begin && now <= r.End
}

// secondsIntoDay returns whole minutes since local midnight expressed
// in seconds. Seconds within the current minute are ignored so that a
// window ending at "18:00" still matches at 18:00:59, matching the
// slot granularity of the wire format.
func secondsIntoDay(now time.Time) int64 {
	return int64(now.Hour())*3600 + int64(now.Minute())*60
}

// isoWeekday maps time.Weekday to the protocol numbering, where Monday
// is 1 and Sunday is 7.
func isoWeekday(now time.Time) int {
	wd := int(now.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// inSlot reports whether tod (seconds since midnight) falls in a
// "HH:MM-HH:MM" slot. Unparseable slots never match.
func inSlot(tod int64, slot string) bool {
	begin, end, ok := parseSlot(slot)
	if !ok {
		return false
	}
	if end < begin {
		// Spans midnight, e.g. "22:00-02:00".
		return tod >= begin || tod <= end
	}
	return tod >= begin && tod <= end
}

func parseSlot(slot string) (begin, end int64, ok bool) {
	parts := strings.SplitN(slot, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	begin, ok = parseClock(parts[0])
	if !ok {
		return 0, 0, false
	}
	end, ok = parseClock(parts[1])
	if !ok {
		return 0, 0, false
	}
	return begin, end, true
}

func parseClock(s string) (int64, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return int64(hour)*3600 + int64(minute)*60, true
}
