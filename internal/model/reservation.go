package model

import "time"

// ReservationStatus enumerates the lifecycle states of a reservation.
// PENDING is entered only together with a successful seat hold; the
// three terminal states are reached through guarded transitions and a
// second transition attempt on a non-pending row is rejected.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// Reservation is a short-lived hold of one or more seats under a single
// pending transaction.  While PENDING every referenced seat is RESERVED
// and points back at this reservation; the expiration sweeper reclaims
// rows whose ExpiresAt has passed.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – user who placed the hold.
//  ShowtimeID       – showtime being reserved.
//  Status           – lifecycle state (PENDING, CONFIRMED, CANCELLED, EXPIRED).
//  TotalAmountCents – exact sum of the line item unit prices.
//  Lines            – ordered line items, one per held seat.
//  CreatedAt        – creation timestamp.
//  ExpiresAt        – CreatedAt + hold TTL; checked at confirm time.
type Reservation struct {
	ID               uint64            // reservations.id
	UserID           uint64            // reservations.user_id
	ShowtimeID       uint64            // reservations.showtime_id
	Status           ReservationStatus // reservations.status
	TotalAmountCents uint32            // reservations.total_amount_cents
	Lines            []LineItem        // reservation_seats rows
	CreatedAt        time.Time         // reservations.created_at
	ExpiresAt        time.Time         // reservations.expires_at
}

// LineItem prices one seat within a reservation or booking.  The unit
// price is a snapshot taken at hold time: round(seat price × ticket type
// modifier) in cents.  Line items never duplicate mutable seat state.
type LineItem struct {
	SeatNumber     string // reservation_seats.seat_number
	TicketTypeID   uint64 // reservation_seats.ticket_type_id
	UnitPriceCents uint32 // reservation_seats.unit_price_cents
}

// Expired reports whether the reservation's hold TTL has elapsed at the
// given instant.  Expiry is data-level: callers must gate on it even
// before the sweeper has marked the row EXPIRED.
func (r *Reservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
