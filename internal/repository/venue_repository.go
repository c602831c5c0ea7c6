package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/nightpulse/nightpulse/internal/geo"
	"github.com/nightpulse/nightpulse/internal/model"
)

// VenueRepo provides data access to the venues, operating_windows and
// venue_closed_days tables.  All reads return venues with their windows
// and closed-day sets populated so the resolver never needs a second
// round trip.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo returns a new VenueRepo bound to the provided database.
func NewVenueRepo(db *sql.DB) *VenueRepo { return &VenueRepo{db: db} }

const venueColumns = `v.id, v.name, v.description, v.location, v.category, v.subcategory,
	v.latitude, v.longitude, v.google_place_id, v.image_url, v.created_at, v.updated_at`

func scanVenue(row interface{ Scan(...any) error }) (*model.Venue, error) {
	var v model.Venue
	var desc, loc, cat, sub sql.NullString
	var placeID, imageURL sql.NullString
	if err := row.Scan(&v.ID, &v.Name, &desc, &loc, &cat, &sub,
		&v.Latitude, &v.Longitude, &placeID, &imageURL, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.Description = desc.String
	v.Location = loc.String
	v.Category = cat.String
	v.Subcategory = sub.String
	if placeID.Valid {
		v.GooglePlaceID = &placeID.String
	}
	if imageURL.Valid {
		v.ImageURL = &imageURL.String
	}
	return &v, nil
}

// GetByID returns a single venue with hours data loaded.
func (r *VenueRepo) GetByID(ctx context.Context, id uint64) (*model.Venue, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+venueColumns+` FROM venues v WHERE v.id = ?`, id)
	v, err := scanVenue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	if err := r.attachHours(ctx, []*model.Venue{v}); err != nil {
		return nil, err
	}
	return v, nil
}

// GetByPlaceID returns the venue linked to the given provider place id,
// or ErrVenueNotFound when the place has never been promoted.
func (r *VenueRepo) GetByPlaceID(ctx context.Context, placeID string) (*model.Venue, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+venueColumns+` FROM venues v WHERE v.google_place_id = ?`, placeID)
	v, err := scanVenue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	if err := r.attachHours(ctx, []*model.Venue{v}); err != nil {
		return nil, err
	}
	return v, nil
}

// ListWithinBox returns venues whose coordinates fall inside the
// bounding box.  The box is an over-approximation; exact distance
// filtering and ranking happen in the aggregation pipeline.
func (r *VenueRepo) ListWithinBox(ctx context.Context, box geo.BoundingBox) ([]model.Venue, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+venueColumns+` FROM venues v
		 WHERE v.latitude BETWEEN ? AND ? AND v.longitude BETWEEN ? AND ?`,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

// SearchText returns venues matching the free-text term across name,
// description, location and category fields.  Locality is intentionally
// ignored: a user searching by name wants the venue wherever it is.
func (r *VenueRepo) SearchText(ctx context.Context, term string) ([]model.Venue, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+venueColumns+` FROM venues v
		 WHERE LOWER(v.name) LIKE ? OR LOWER(v.description) LIKE ?
		    OR LOWER(v.location) LIKE ? OR LOWER(v.category) LIKE ? OR LOWER(v.subcategory) LIKE ?`,
		like, like, like, like, like)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

func (r *VenueRepo) collect(ctx context.Context, rows *sql.Rows) ([]model.Venue, error) {
	defer rows.Close()
	var out []model.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ptrs := make([]*model.Venue, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := r.attachHours(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

// attachHours loads operating windows and closed-day sets for the given
// venues in two IN-clause queries.
func (r *VenueRepo) attachHours(ctx context.Context, venues []*model.Venue) error {
	if len(venues) == 0 {
		return nil
	}
	byID := make(map[uint64]*model.Venue, len(venues))
	args := make([]any, 0, len(venues))
	ph := make([]string, 0, len(venues))
	for _, v := range venues {
		byID[v.ID] = v
		args = append(args, v.ID)
		ph = append(ph, "?")
	}
	in := strings.Join(ph, ",")

	rows, err := r.db.QueryContext(ctx,
		`SELECT venue_id, weekday, start_time, end_time FROM operating_windows
		 WHERE venue_id IN (`+in+`) ORDER BY venue_id, weekday`, args...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var w model.OperatingWindow
		var start, end sql.NullString
		if err := rows.Scan(&w.VenueID, &w.Weekday, &start, &end); err != nil {
			rows.Close()
			return err
		}
		if start.Valid {
			w.Start = &start.String
		}
		if end.Valid {
			w.End = &end.String
		}
		if v := byID[w.VenueID]; v != nil {
			v.Windows = append(v.Windows, w)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx,
		`SELECT venue_id, weekday FROM venue_closed_days WHERE venue_id IN (`+in+`)`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var venueID uint64
		var weekday int
		if err := rows.Scan(&venueID, &weekday); err != nil {
			return err
		}
		if v := byID[venueID]; v != nil {
			v.ClosedDays = append(v.ClosedDays, weekday)
		}
	}
	return rows.Err()
}

// Create inserts a venue together with its windows and closed days in
// one transaction and returns the new id.  Used by promotion; windows
// are inserted wholesale, matching the replace-on-update ownership
// model.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO venues (name, description, location, category, subcategory,
			latitude, longitude, google_place_id, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP(), UTC_TIMESTAMP())`,
		v.Name, v.Description, v.Location, v.Category, v.Subcategory,
		v.Latitude, v.Longitude, v.GooglePlaceID, v.ImageURL)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, w := range v.Windows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO operating_windows (venue_id, weekday, start_time, end_time)
			 VALUES (?, ?, ?, ?)`,
			id, w.Weekday, w.Start, w.End); err != nil {
			return 0, err
		}
	}
	for _, d := range v.ClosedDays {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO venue_closed_days (venue_id, weekday) VALUES (?, ?)`, id, d); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	v.ID = uint64(id)
	return v.ID, nil
}

// SetImageURL stores the representative image reference fetched during
// promotion.  Called after the venue row exists because the image fetch
// is best-effort.
func (r *VenueRepo) SetImageURL(ctx context.Context, id uint64, url string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE venues SET image_url = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, url, id)
	return err
}
