// Package repository implements the persistence layer of the booking
// core on plain database/sql over MySQL.  It defines the typed error
// taxonomy shared by the service and handler layers.  Lifecycle guard
// failures are expected results, not exceptional conditions: callers
// branch on them with errors.Is and translate them into HTTP status
// codes at the boundary.
package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a referenced row (showtime, seat,
// reservation, booking or ticket type) does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable is returned when a requested seat exists but is not
// AVAILABLE.  Handlers should translate this into an HTTP 409 response.
var ErrUnavailable = errors.New("seat unavailable")

// ErrConflict is returned when a version-checked write loses a race:
// the row changed between the read and the conditional update.  The
// whole enclosing transaction is rolled back; no partial writes survive.
var ErrConflict = errors.New("conflict")

// ErrUnauthorized is returned when the caller does not own the
// reservation or booking being acted upon.
var ErrUnauthorized = errors.New("unauthorized")

// ErrInvalidState is returned when a guarded transition finds the row
// in a state other than the one required, e.g. confirming a reservation
// that is already CONFIRMED or CANCELLED.
var ErrInvalidState = errors.New("invalid state")

// ErrExpired is returned when a pending reservation's TTL has elapsed.
// Expiry is checked against expires_at directly, so a confirm arriving
// after the deadline is rejected even before the sweeper has run.
var ErrExpired = errors.New("reservation expired")

// SeatsNotFoundError reports seat numbers that do not exist for the
// requested showtime.  It unwraps to ErrNotFound.
type SeatsNotFoundError struct {
	Missing []string
}

func (e *SeatsNotFoundError) Error() string {
	return fmt.Sprintf("seats not found: %s", strings.Join(e.Missing, ", "))
}

func (e *SeatsNotFoundError) Unwrap() error { return ErrNotFound }

// SeatsUnavailableError reports seat numbers that exist but are not
// AVAILABLE.  It unwraps to ErrUnavailable.
type SeatsUnavailableError struct {
	Seats []string
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.Seats, ", "))
}

func (e *SeatsUnavailableError) Unwrap() error { return ErrUnavailable }
