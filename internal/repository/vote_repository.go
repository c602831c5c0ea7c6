package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/nightpulse/nightpulse/internal/model"
)

// VoteRepo provides data access to the votes table.  Votes are
// append-only; the repo exposes no update or delete.
type VoteRepo struct {
	db *sql.DB
}

// NewVoteRepo returns a new VoteRepo bound to the provided database.
func NewVoteRepo(db *sql.DB) *VoteRepo { return &VoteRepo{db: db} }

// Create appends a vote.  CreatedAt must already be set by the caller
// (the service assigns it from its clock so tests can fix time).
func (r *VoteRepo) Create(ctx context.Context, v *model.Vote) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO votes (venue_id, user_id, is_open, created_at) VALUES (?, ?, ?, ?)`,
		v.VenueID, v.UserID, v.IsOpen, v.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// ListSince returns all votes for a venue created at or after the
// boundary, newest first.
func (r *VoteRepo) ListSince(ctx context.Context, venueID uint64, boundary time.Time) ([]model.Vote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, venue_id, user_id, is_open, created_at FROM votes
		 WHERE venue_id = ? AND created_at >= ? ORDER BY created_at DESC`,
		venueID, boundary.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVotes(rows)
}

// ListSinceForVenues returns the votes since the boundary for every
// venue in ids, grouped by venue.  One IN-clause query backs a whole
// aggregation page.
func (r *VoteRepo) ListSinceForVenues(ctx context.Context, ids []uint64, boundary time.Time) (map[uint64][]model.Vote, error) {
	out := make(map[uint64][]model.Vote, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		ph = append(ph, "?")
		args = append(args, id)
	}
	args = append(args, boundary.UTC())

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, venue_id, user_id, is_open, created_at FROM votes
		 WHERE venue_id IN (`+strings.Join(ph, ",")+`) AND created_at >= ?
		 ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	votes, err := collectVotes(rows)
	if err != nil {
		return nil, err
	}
	for _, v := range votes {
		out[v.VenueID] = append(out[v.VenueID], v)
	}
	return out, nil
}

// LatestByUser returns the most recent vote by a user on a venue, or
// nil when the user has never voted on it.  Backs the cooldown check.
func (r *VoteRepo) LatestByUser(ctx context.Context, userID, venueID uint64) (*model.Vote, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, venue_id, user_id, is_open, created_at FROM votes
		 WHERE user_id = ? AND venue_id = ? ORDER BY created_at DESC LIMIT 1`,
		userID, venueID)
	var v model.Vote
	if err := row.Scan(&v.ID, &v.VenueID, &v.UserID, &v.IsOpen, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func collectVotes(rows *sql.Rows) ([]model.Vote, error) {
	var out []model.Vote
	for rows.Next() {
		var v model.Vote
		if err := rows.Scan(&v.ID, &v.VenueID, &v.UserID, &v.IsOpen, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
