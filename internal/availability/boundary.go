package availability

import "time"

// ResetBoundary returns the instant after which votes count toward
// "today's" tally: the most recent occurrence of resetHour o'clock in
// the reference timezone at or before now.  The boundary is anchored to
// a single reference zone rather than each venue's local zone so that
// the reset happens simultaneously for every venue worldwide.
func ResetBoundary(now time.Time, ref *time.Location, resetHour int) time.Time {
	local := now.In(ref)
	boundary := time.Date(local.Year(), local.Month(), local.Day(), resetHour, 0, 0, 0, ref)
	if local.Before(boundary) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	return boundary
}
