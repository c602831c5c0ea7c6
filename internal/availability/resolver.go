package availability

import (
	"time"

	"github.com/nightpulse/nightpulse/internal/model"
)

// Status is the resolved availability verdict for a venue.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
	// StatusNotVoted marks a venue with no usable hours and no votes
	// since the boundary; the crowd has not weighed in yet.
	StatusNotVoted Status = "NOT_VOTED"
)

// Policy holds the operator-tunable resolution knobs.
type Policy struct {
	// TieFavorsOpen selects the vote tie-break: when true an equal
	// open/closed tally resolves OPEN, otherwise CLOSED.
	TieFavorsOpen bool
}

// Tally counts the votes by value.
func Tally(votes []model.Vote) model.VoteStats {
	s := model.VoteStats{Total: len(votes)}
	for _, v := range votes {
		if v.IsOpen {
			s.Open++
		} else {
			s.Closed++
		}
	}
	return s
}

// Resolve computes the venue's verdict from its declared hours and the
// votes cast since the reset boundary.  localNow must be the current
// time in the venue's local timezone.
//
// The hours gate overrides votes: a venue outside its declared window
// is CLOSED no matter the tally.  When the gate passes or hours are
// undeclared, the vote majority decides; with no votes at all, passing
// hours alone are enough to call the venue OPEN, and the absence of
// both signals yields StatusNotVoted.
func Resolve(v *model.Venue, localNow time.Time, votes []model.Vote, p Policy) Status {
	within, known := WithinHours(v, localNow)
	if known && !within {
		return StatusClosed
	}

	stats := Tally(votes)
	if stats.Total > 0 {
		if stats.Open > stats.Closed {
			return StatusOpen
		}
		if stats.Open == stats.Closed && p.TieFavorsOpen {
			return StatusOpen
		}
		return StatusClosed
	}

	if known && within {
		return StatusOpen
	}
	return StatusNotVoted
}
