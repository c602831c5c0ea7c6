package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightpulse/nightpulse/internal/model"
)

func strp(s string) *string { return &s }

// venueWithWindow declares the same window for every weekday so tests
// can pick an arbitrary date.
func venueWithWindow(start, end *string) *model.Venue {
	v := &model.Venue{ID: 1, Name: "The Spot"}
	for d := 0; d < 7; d++ {
		v.Windows = append(v.Windows, model.OperatingWindow{VenueID: 1, Weekday: d, Start: start, End: end})
	}
	return v
}

// at builds a local time on a fixed Wednesday.
func at(hour, min int) time.Time {
	return time.Date(2025, time.June, 11, hour, min, 0, 0, time.UTC)
}

func TestWithinHoursOvernightWrap(t *testing.T) {
	v := venueWithWindow(strp("22:00"), strp("04:00"))

	for _, tc := range []struct {
		now    time.Time
		within bool
	}{
		{at(23, 30), true},
		{at(2, 0), true},
		{at(12, 0), false},
		{at(22, 0), true}, // boundary inclusive
		{at(4, 0), true},  // boundary inclusive
		{at(4, 1), false},
	} {
		within, known := WithinHours(v, tc.now)
		assert.True(t, known)
		assert.Equalf(t, tc.within, within, "at %s", tc.now.Format("15:04"))
	}
}

func TestWithinHoursSameDayWindow(t *testing.T) {
	v := venueWithWindow(strp("09:00"), strp("17:00"))

	within, known := WithinHours(v, at(12, 0))
	assert.True(t, known)
	assert.True(t, within)

	within, _ = WithinHours(v, at(8, 59))
	assert.False(t, within)
}

func TestWithinHoursOpenEnded(t *testing.T) {
	// No end time: open from start onward.
	v := venueWithWindow(strp("20:00"), nil)

	within, known := WithinHours(v, at(23, 59))
	assert.True(t, known)
	assert.True(t, within)

	within, _ = WithinHours(v, at(19, 0))
	assert.False(t, within)
}

func TestWithinHoursClosedWeekday(t *testing.T) {
	v := venueWithWindow(strp("09:00"), strp("17:00"))
	v.ClosedDays = []int{int(at(12, 0).Weekday())}

	within, known := WithinHours(v, at(12, 0))
	assert.True(t, known)
	assert.False(t, within)
}

func TestWithinHoursUndeclared(t *testing.T) {
	v := &model.Venue{ID: 1}
	_, known := WithinHours(v, at(12, 0))
	assert.False(t, known)

	// A window row with neither bound is still unknown.
	v = venueWithWindow(nil, nil)
	_, known = WithinHours(v, at(12, 0))
	assert.False(t, known)
}

func TestResetBoundary(t *testing.T) {
	ref, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 10:00 local, reset hour 6 -> boundary is 06:00 today.
	now := time.Date(2025, time.June, 11, 10, 0, 0, 0, ref)
	b := ResetBoundary(now, ref, 6)
	assert.Equal(t, time.Date(2025, time.June, 11, 6, 0, 0, 0, ref), b)

	// 05:59 local -> boundary is 06:00 yesterday.
	now = time.Date(2025, time.June, 11, 5, 59, 0, 0, ref)
	b = ResetBoundary(now, ref, 6)
	assert.Equal(t, time.Date(2025, time.June, 10, 6, 0, 0, 0, ref), b)

	// Exactly at the reset instant the boundary is "now" itself.
	now = time.Date(2025, time.June, 11, 6, 0, 0, 0, ref)
	b = ResetBoundary(now, ref, 6)
	assert.Equal(t, now, b)

	// The anchor is the reference zone regardless of the input's zone.
	utcNow := time.Date(2025, time.June, 11, 2, 0, 0, 0, time.UTC) // 22:00 June 10 in NY
	b = ResetBoundary(utcNow, ref, 6)
	assert.Equal(t, time.Date(2025, time.June, 10, 6, 0, 0, 0, ref).Unix(), b.Unix())
}

func votes(open, closed int) []model.Vote {
	var out []model.Vote
	for i := 0; i < open; i++ {
		out = append(out, model.Vote{IsOpen: true})
	}
	for i := 0; i < closed; i++ {
		out = append(out, model.Vote{IsOpen: false})
	}
	return out
}

func TestResolveMajority(t *testing.T) {
	v := &model.Venue{ID: 1} // no hours declared
	p := Policy{TieFavorsOpen: true}

	assert.Equal(t, StatusOpen, Resolve(v, at(12, 0), votes(3, 1), p))
	assert.Equal(t, StatusClosed, Resolve(v, at(12, 0), votes(1, 3), p))
}

func TestResolveTieBreak(t *testing.T) {
	v := &model.Venue{ID: 1}

	assert.Equal(t, StatusOpen, Resolve(v, at(12, 0), votes(1, 1), Policy{TieFavorsOpen: true}))
	assert.Equal(t, StatusClosed, Resolve(v, at(12, 0), votes(1, 1), Policy{TieFavorsOpen: false}))
}

func TestResolveHoursOverrideVotes(t *testing.T) {
	// Outside the declared window the venue is CLOSED even with an
	// all-open tally.
	v := venueWithWindow(strp("22:00"), strp("04:00"))
	got := Resolve(v, at(12, 0), votes(5, 0), Policy{TieFavorsOpen: true})
	assert.Equal(t, StatusClosed, got)
}

func TestResolveHoursAloneSufficient(t *testing.T) {
	v := venueWithWindow(strp("09:00"), strp("17:00"))
	got := Resolve(v, at(12, 0), nil, Policy{TieFavorsOpen: true})
	assert.Equal(t, StatusOpen, got)
}

func TestResolveNoSignals(t *testing.T) {
	v := &model.Venue{ID: 1}
	got := Resolve(v, at(12, 0), nil, Policy{TieFavorsOpen: true})
	assert.Equal(t, StatusNotVoted, got)
}

func TestResolveVotesDecideWhenGatePasses(t *testing.T) {
	// Gate passes but the crowd says closed; votes win inside the window.
	v := venueWithWindow(strp("09:00"), strp("17:00"))
	got := Resolve(v, at(12, 0), votes(0, 2), Policy{TieFavorsOpen: true})
	assert.Equal(t, StatusClosed, got)
}

func TestTally(t *testing.T) {
	s := Tally(votes(2, 3))
	assert.Equal(t, model.VoteStats{Total: 5, Open: 2, Closed: 3}, s)
}
