// Package availability computes a venue's OPEN/CLOSED verdict from two
// read-only signals: declared operating hours evaluated in the venue's
// local time, and the crowd vote tally since the daily reset boundary.
// Nothing in this package persists state; every verdict is a fresh
// recomputation.
package availability

import (
	"time"

	"github.com/nightpulse/nightpulse/internal/model"
)

// WithinHours reports whether localNow falls inside the venue's
// declared operating window for today.  The second return value is
// false when the venue declares no usable hours for today, in which
// case the caller decides the default.
//
// An explicit closed weekday always yields (false, true).  A window
// whose start is after its end wraps past midnight: 22:00–04:00 covers
// 23:30 and 02:00 without consulting the neighbouring days' windows.
// A window with a start but no end means open from start onward.
func WithinHours(v *model.Venue, localNow time.Time) (within bool, known bool) {
	weekday := int(localNow.Weekday())
	if v.ClosedOn(weekday) {
		return false, true
	}
	w := v.WindowFor(weekday)
	if w == nil || (w.Start == nil && w.End == nil) {
		return false, false
	}

	nowMin := localNow.Hour()*60 + localNow.Minute()
	start, startOK := parseClock(w.Start)
	end, endOK := parseClock(w.End)

	switch {
	case startOK && !endOK:
		return nowMin >= start, true
	case !startOK && endOK:
		return nowMin <= end, true
	case start <= end:
		return nowMin >= start && nowMin <= end, true
	default: // overnight wrap
		return nowMin >= start || nowMin <= end, true
	}
}

// parseClock converts an "HH:MM" time-of-day into minutes since
// midnight.  Seconds, when present, are ignored.
func parseClock(s *string) (int, bool) {
	if s == nil || *s == "" {
		return 0, false
	}
	t, err := time.Parse("15:04", *s)
	if err != nil {
		if t, err = time.Parse("15:04:05", *s); err != nil {
			return 0, false
		}
	}
	return t.Hour()*60 + t.Minute(), true
}
