package model

import "time"

// SeatStatus enumerates the occupancy states of a showtime seat.
// Transitions are driven exclusively by the seat repository through
// version-checked updates; no other component writes seat rows.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE" // free for holding
	SeatReserved  SeatStatus = "RESERVED"  // held under a pending reservation
	SeatBooked    SeatStatus = "BOOKED"    // sold; only a booking cancellation frees it
)

// ShowtimeSeat is one sellable seat of a showtime.  Rows are created in
// bulk when a showtime is scheduled and are never deleted afterwards.
// The composite key is (ShowtimeID, SeatNumber).
//
// Fields:
//  ShowtimeID    – showtime to which this seat belongs.
//  SeatNumber    – human seat label, e.g. "A1".
//  SeatType      – seat category (REGULAR, PREMIUM, ...).
//  PriceCents    – base price in cents before ticket-type modifiers.
//  Status        – occupancy status (AVAILABLE, RESERVED, BOOKED).
//  ReservationID – owning reservation while RESERVED, nil otherwise.
//  ReservedUntil – hold expiry while RESERVED, nil otherwise.
//  Version       – optimistic concurrency token; every write supplies
//                  the version it read and bumps it by one.
type ShowtimeSeat struct {
	ShowtimeID    uint64     // showtime_seats.showtime_id
	SeatNumber    string     // showtime_seats.seat_number
	SeatType      string     // showtime_seats.seat_type
	PriceCents    uint32     // showtime_seats.price_cents
	Status        SeatStatus // showtime_seats.status
	ReservationID *uint64    // showtime_seats.reservation_id (nullable)
	ReservedUntil *time.Time // showtime_seats.reserved_until (nullable)
	Version       uint64     // showtime_seats.version
}

// Availability groups the seat numbers of one showtime by occupancy
// status.  It is the read model returned to clients browsing a seat map.
type Availability struct {
	ShowtimeID uint64   `json:"showtime_id"`
	Available  []string `json:"available"`
	Reserved   []string `json:"reserved"`
	Booked     []string `json:"booked"`
}
