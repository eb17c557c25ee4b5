package model

import "time"

// Showtime is the scheduling unit seats are sold against.  Movie, hall
// and screen management live in an external data layer; the booking core
// only needs the start time (holds and cancellations are rejected once
// the showtime has started) and the hall reference.
type Showtime struct {
	ID        uint64    // showtimes.id
	HallID    uint64    // showtimes.hall_id
	Title     string    // showtimes.title
	StartsAt  time.Time // showtimes.starts_at
	CreatedAt time.Time // showtimes.created_at
}
