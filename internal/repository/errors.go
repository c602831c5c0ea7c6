// Package repository provides raw-SQL data access for venues and
// votes.  Sentinel errors let handlers map storage failures onto a
// legible HTTP taxonomy instead of generic 500s.
package repository

import "errors"

// ErrVenueNotFound is returned when a lookup by id or provider place id
// matches no venue row.  Handlers translate this into HTTP 404.
var ErrVenueNotFound = errors.New("venue not found")
