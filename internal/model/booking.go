package model

import "time"

// BookingStatus enumerates the states of a finalized booking.  A booking
// is created CONFIRMED in the same transaction that finalizes its seats
// and is immutable except for the cancellation transition.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking is the durable record of a paid reservation.  Line items are
// copied from the reservation at confirm time so the booking stays
// self-contained once the reservation row reaches its terminal state.
//
// Fields:
//  ID               – primary key identifier.
//  BookingNumber    – human-facing unique reference, e.g. "BK-3F9A0C12".
//  UserID           – owner of the booking.
//  ShowtimeID       – showtime the seats belong to.
//  ReservationID    – reservation this booking was confirmed from.
//  Status           – CONFIRMED or CANCELLED.
//  TotalAmountCents – amount charged, equal to the reservation total.
//  PaymentID        – payment row created in the same transaction.
//  Lines            – line items copied from the reservation.
//  BookedAt         – confirmation timestamp.
//  CancelledAt      – cancellation timestamp, nil while confirmed.
type Booking struct {
	ID               uint64        // bookings.id
	BookingNumber    string        // bookings.booking_number
	UserID           uint64        // bookings.user_id
	ShowtimeID       uint64        // bookings.showtime_id
	ReservationID    uint64        // bookings.reservation_id
	Status           BookingStatus // bookings.status
	TotalAmountCents uint32        // bookings.total_amount_cents
	PaymentID        uint64        // bookings.payment_id
	Lines            []LineItem    // booking_seats rows
	BookedAt         time.Time     // bookings.booked_at
	CancelledAt      *time.Time    // bookings.cancelled_at (nullable)
}

// PaymentRecord stores the gateway's answer to a successful charge.  It
// is written in the finalize transaction so a booking always references
// a durable payment row.
type PaymentRecord struct {
	ID            uint64    // payments.id
	TransactionID string    // payments.transaction_id
	AmountCents   uint32    // payments.amount_cents
	Method        string    // payments.method
	ProcessedAt   time.Time // payments.processed_at
}
