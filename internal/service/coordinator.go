// Package service contains the booking transaction coordinator and the
// expiration sweeper.  The coordinator orchestrates the two-phase flow
// (hold, then confirm) around the atomic store operations, talking to
// the payment and loyalty collaborators at the boundaries.  The durable
// reservation row is the crash-safe checkpoint between the phases.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/showtime-booking/internal/loyalty"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/payment"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

// ErrInvalidSelection is returned when a hold request is malformed:
// no seats, a duplicated seat number, or a zero ticket type.
var ErrInvalidSelection = errors.New("invalid seat selection")

// Store is the persistence surface the coordinator drives.  Every
// method is atomic: it either commits all of its writes or none of
// them.  *repository.Store is the production implementation.
type Store interface {
	CreateHold(ctx context.Context, userID, showtimeID uint64, selections []model.SeatSelection, types map[uint64]model.TicketType, ttl time.Duration) (*model.Reservation, error)
	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	ConfirmReservation(ctx context.Context, reservationID uint64, pay *model.PaymentRecord) (*model.Booking, error)
	CancelHold(ctx context.Context, reservationID uint64) error
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	GetPayment(ctx context.Context, id uint64) (*model.PaymentRecord, error)
	CancelBooking(ctx context.Context, bookingID uint64, cancelledAt time.Time) error
	GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error)
	ActiveTicketTypes(ctx context.Context, ids []uint64) (map[uint64]model.TicketType, error)
	Availability(ctx context.Context, showtimeID uint64) (*model.Availability, error)
}

// PaymentInfo carries what the gateway needs to charge a customer.
type PaymentInfo struct {
	Method     string `json:"method"`
	Instrument string `json:"instrument"`
}

// Coordinator implements the booking flow exposed to the API layer:
// hold, confirm, cancel-hold, cancel-booking and availability.  It
// holds no state beyond its collaborators and is safe for concurrent
// use; seat contention is resolved entirely by the store's version
// checks.
type Coordinator struct {
	store   Store
	gateway payment.Gateway
	loyalty loyalty.Ledger
	holdTTL time.Duration
	now     func() time.Time
}

// NewCoordinator wires a Coordinator.  holdTTL is the reservation TTL
// applied to every hold.
func NewCoordinator(store Store, gateway payment.Gateway, ledger loyalty.Ledger, holdTTL time.Duration) *Coordinator {
	return &Coordinator{
		store:   store,
		gateway: gateway,
		loyalty: ledger,
		holdTTL: holdTTL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// HoldSeats is phase A of the booking flow.  It validates the showtime
// (it must exist and start in the future) and the requested ticket
// types (they must exist and be active), then delegates to the store,
// which holds the seats and creates the PENDING reservation in a single
// transaction.  On any failure no reservation row and no seat mutation
// survives.
func (c *Coordinator) HoldSeats(ctx context.Context, userID, showtimeID uint64, selections []model.SeatSelection) (*model.Reservation, error) {
	if len(selections) == 0 {
		return nil, fmt.Errorf("%w: no seats requested", ErrInvalidSelection)
	}
	seen := make(map[string]struct{}, len(selections))
	for _, sel := range selections {
		if sel.SeatNumber == "" || sel.TicketTypeID == 0 {
			return nil, fmt.Errorf("%w: seat number and ticket type are required", ErrInvalidSelection)
		}
		if _, dup := seen[sel.SeatNumber]; dup {
			return nil, fmt.Errorf("%w: seat %s requested twice", ErrInvalidSelection, sel.SeatNumber)
		}
		seen[sel.SeatNumber] = struct{}{}
	}

	showtime, err := c.store.GetShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if !showtime.StartsAt.After(c.now()) {
		return nil, fmt.Errorf("%w: showtime already started", repository.ErrInvalidState)
	}

	typeIDs := make([]uint64, 0, len(selections))
	requested := make(map[uint64]struct{}, len(selections))
	for _, sel := range selections {
		if _, ok := requested[sel.TicketTypeID]; !ok {
			requested[sel.TicketTypeID] = struct{}{}
			typeIDs = append(typeIDs, sel.TicketTypeID)
		}
	}
	types, err := c.store.ActiveTicketTypes(ctx, typeIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range typeIDs {
		if _, ok := types[id]; !ok {
			return nil, fmt.Errorf("%w: ticket type %d is unknown or inactive", repository.ErrNotFound, id)
		}
	}

	return c.store.CreateHold(ctx, userID, showtimeID, selections, types, c.holdTTL)
}

// ConfirmBooking is phase B.  It re-validates the reservation (owner,
// still PENDING, TTL not elapsed; expiry may occur between the phases,
// so it is always re-checked here rather than left to the sweeper),
// charges the gateway for the exact reservation total before opening
// the finalize transaction, and then commits booking + payment + seat
// finalize + reservation transition atomically.  A declined charge
// leaves the reservation PENDING with its seats held, retryable until
// the TTL elapses.  The loyalty stamp is added after the commit and its
// failure never undoes the booking.
func (c *Coordinator) ConfirmBooking(ctx context.Context, userID, reservationID uint64, info PaymentInfo) (*model.Booking, error) {
	res, err := c.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, repository.ErrUnauthorized
	}
	if res.Status != model.ReservationPending {
		return nil, fmt.Errorf("%w: reservation is %s", repository.ErrInvalidState, res.Status)
	}
	if res.Expired(c.now()) {
		return nil, repository.ErrExpired
	}

	charge, err := c.gateway.Charge(ctx, res.TotalAmountCents, info.Method, info.Instrument)
	if err != nil {
		if errors.Is(err, payment.ErrDeclined) {
			return nil, err
		}
		return nil, fmt.Errorf("charge reservation %d: %w", reservationID, err)
	}

	pay := &model.PaymentRecord{
		TransactionID: charge.TransactionID,
		AmountCents:   res.TotalAmountCents,
		Method:        info.Method,
		ProcessedAt:   charge.ProcessedAt,
	}
	booking, err := c.store.ConfirmReservation(ctx, reservationID, pay)
	if err != nil {
		// The customer has been charged but the finalize lost its race
		// (expiry, sweeper or concurrent confirm committed first).
		// Refund best-effort and surface the guard failure.
		log.Printf("coordinator: finalize failed after charge tx=%s reservation=%d user=%d amount=%d: %v",
			charge.TransactionID, reservationID, userID, res.TotalAmountCents, err)
		if _, refundErr := c.gateway.Refund(ctx, charge.TransactionID); refundErr != nil {
			log.Printf("coordinator: refund failed tx=%s reservation=%d: %v", charge.TransactionID, reservationID, refundErr)
		}
		return nil, err
	}

	if err := c.loyalty.AddStamp(ctx, userID, booking.BookingNumber); err != nil {
		log.Printf("coordinator: loyalty stamp add failed user=%d booking=%s: %v", userID, booking.BookingNumber, err)
	}
	return booking, nil
}

// CancelHold releases a pending reservation on behalf of its owner.
// The guarded transition inside the store rejects reservations that
// already left PENDING.
func (c *Coordinator) CancelHold(ctx context.Context, userID, reservationID uint64) error {
	res, err := c.store.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if res.UserID != userID {
		return repository.ErrUnauthorized
	}
	return c.store.CancelHold(ctx, reservationID)
}

// CancelBooking cancels a confirmed booking while its showtime is still
// in the future.  The refund is best-effort and attempted first; the
// seats must free and the booking must cancel regardless of the refund
// outcome, so refund failures are logged and the flow continues.  The
// loyalty stamp reversal follows the commit, fire-and-forget.
func (c *Coordinator) CancelBooking(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
	booking, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, repository.ErrUnauthorized
	}
	if booking.Status != model.BookingConfirmed {
		return nil, fmt.Errorf("%w: booking is %s", repository.ErrInvalidState, booking.Status)
	}
	showtime, err := c.store.GetShowtime(ctx, booking.ShowtimeID)
	if err != nil {
		return nil, err
	}
	if !showtime.StartsAt.After(c.now()) {
		return nil, fmt.Errorf("%w: showtime already started", repository.ErrInvalidState)
	}

	if pay, err := c.store.GetPayment(ctx, booking.PaymentID); err != nil {
		log.Printf("coordinator: payment lookup failed booking=%d payment=%d: %v", bookingID, booking.PaymentID, err)
	} else if _, err := c.gateway.Refund(ctx, pay.TransactionID); err != nil {
		log.Printf("coordinator: refund failed booking=%d tx=%s: %v", bookingID, pay.TransactionID, err)
	}

	cancelledAt := c.now()
	if err := c.store.CancelBooking(ctx, bookingID, cancelledAt); err != nil {
		return nil, err
	}
	if err := c.loyalty.RemoveStamp(ctx, userID, booking.BookingNumber); err != nil {
		log.Printf("coordinator: loyalty stamp remove failed user=%d booking=%s: %v", userID, booking.BookingNumber, err)
	}
	booking.Status = model.BookingCancelled
	booking.CancelledAt = &cancelledAt
	return booking, nil
}

// Availability returns a showtime's seat map grouped by status.
func (c *Coordinator) Availability(ctx context.Context, showtimeID uint64) (*model.Availability, error) {
	return c.store.Availability(ctx, showtimeID)
}
