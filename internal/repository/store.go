package repository

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// Store composes the per-table repositories into the multi-row
// operations the booking flow needs to be atomic.  Each method opens
// its own transaction and either commits everything or rolls everything
// back; callers never observe a reservation without its seats held or a
// booking without its payment.  Cross-request mutual exclusion for seat
// contention is delegated entirely to the seat ledger's version checks,
// so none of these methods take in-process locks.
type Store struct {
	db           *sql.DB
	Seats        *SeatRepo
	Reservations *ReservationRepo
	Bookings     *BookingRepo
	Showtimes    *ShowtimeRepo
	TicketTypes  *TicketTypeRepo
}

// NewStore builds a Store and its repositories over one database pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		Seats:        NewSeatRepo(db),
		Reservations: NewReservationRepo(db),
		Bookings:     NewBookingRepo(db),
		Showtimes:    NewShowtimeRepo(db),
		TicketTypes:  NewTicketTypeRepo(db),
	}
}

// DB exposes the underlying pool, mainly for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// CreateHold performs the persistence half of hold phase: in one
// transaction it verifies the requested seats are available, creates the
// PENDING reservation with priced line items, and CAS-marks every seat
// RESERVED against the new reservation id.  Any failure (a missing
// seat, an occupied seat, a lost version race) rolls the whole
// transaction back, so no reservation row or seat mutation survives a
// failed hold.  Ticket types must already be validated by the caller.
func (s *Store) CreateHold(ctx context.Context, userID, showtimeID uint64, selections []model.SeatSelection, types map[uint64]model.TicketType, ttl time.Duration) (*model.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	seatNumbers := make([]string, len(selections))
	for i, sel := range selections {
		seatNumbers[i] = sel.SeatNumber
	}
	// Sorted so concurrent holds of overlapping seat sets acquire their
	// row locks in the same order and cannot deadlock each other.
	sort.Strings(seatNumbers)
	seats, err := s.Seats.SeatsForHoldTx(ctx, tx, showtimeID, seatNumbers)
	if err != nil {
		return nil, err
	}
	bySeat := make(map[string]model.ShowtimeSeat, len(seats))
	for _, seat := range seats {
		bySeat[seat.SeatNumber] = seat
	}

	now := time.Now().UTC()
	res := &model.Reservation{
		UserID:     userID,
		ShowtimeID: showtimeID,
		Status:     model.ReservationPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	for _, sel := range selections {
		seat := bySeat[sel.SeatNumber]
		tt := types[sel.TicketTypeID]
		res.Lines = append(res.Lines, model.LineItem{
			SeatNumber:     sel.SeatNumber,
			TicketTypeID:   tt.ID,
			UnitPriceCents: model.UnitPriceCents(seat.PriceCents, tt.PriceModifier),
		})
	}
	res.TotalAmountCents = model.SumLineItems(res.Lines)

	if err := s.Reservations.CreateTx(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := s.Seats.HoldTx(ctx, tx, res.ID, res.ExpiresAt, seats); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

// GetReservation loads a reservation outside any transaction, for the
// coordinator's pre-charge guards.
func (s *Store) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.Reservations.GetByID(ctx, id)
}

// ConfirmReservation performs the finalize half of the confirm phase in
// one transaction: the guarded PENDING→CONFIRMED transition, the payment
// record, the booking with copied line items, and the RESERVED→BOOKED
// seat finalize.  The reservation is re-read under FOR UPDATE and the
// pending/expiry guards re-checked inside the transaction, because the
// TTL may elapse, or a sweeper pass or concurrent confirm may win,
// between the caller's pre-check and this commit.  The loser fails
// cleanly with ErrInvalidState or ErrExpired and nothing is written.
func (s *Store) ConfirmReservation(ctx context.Context, reservationID uint64, pay *model.PaymentRecord) (*model.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := s.Reservations.GetForUpdateTx(ctx, tx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != model.ReservationPending {
		return nil, ErrInvalidState
	}
	if res.Expired(time.Now().UTC()) {
		return nil, ErrExpired
	}
	if err := s.Reservations.TransitionTx(ctx, tx, reservationID, model.ReservationPending, model.ReservationConfirmed); err != nil {
		return nil, err
	}
	booking := &model.Booking{
		UserID:           res.UserID,
		ShowtimeID:       res.ShowtimeID,
		ReservationID:    res.ID,
		TotalAmountCents: res.TotalAmountCents,
		Lines:            res.Lines,
	}
	if err := s.Bookings.CreateTx(ctx, tx, booking, pay); err != nil {
		return nil, err
	}
	if err := s.Seats.FinalizeTx(ctx, tx, reservationID, len(res.Lines)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return booking, nil
}

// CancelHold releases a pending reservation in one transaction: the
// guarded PENDING→CANCELLED transition followed by the seat release.
// A reservation that already left PENDING yields ErrInvalidState.
func (s *Store) CancelHold(ctx context.Context, reservationID uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := s.Reservations.TransitionTx(ctx, tx, reservationID, model.ReservationPending, model.ReservationCancelled); err != nil {
		return err
	}
	if err := s.Seats.ReleaseHeldTx(ctx, tx, reservationID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ExpireReservation reclaims one expired hold in its own transaction so
// that a failure on one candidate cannot abort the rest of a sweep.  The
// row is re-read under FOR UPDATE and re-checked: if it is no longer
// PENDING, or its TTL has not actually elapsed, the pass is a no-op and
// the method reports false.  That makes double-processing by redundant
// sweepers harmless.
func (s *Store) ExpireReservation(ctx context.Context, reservationID uint64, now time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := s.Reservations.GetForUpdateTx(ctx, tx, reservationID)
	if err != nil {
		return false, err
	}
	if res.Status != model.ReservationPending || !res.Expired(now) {
		return false, nil
	}
	if err := s.Seats.ReleaseHeldTx(ctx, tx, reservationID); err != nil {
		return false, err
	}
	if err := s.Reservations.TransitionTx(ctx, tx, reservationID, model.ReservationPending, model.ReservationExpired); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// ExpiredCandidates lists pending reservations whose TTL elapsed at or
// before now.  See ReservationRepo.ExpiredCandidates.
func (s *Store) ExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	return s.Reservations.ExpiredCandidates(ctx, now, limit)
}

// GetBooking loads a booking with its line items outside any
// transaction, for the coordinator's cancel guards and refund lookup.
func (s *Store) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.Bookings.GetByID(ctx, id)
}

// GetPayment loads the payment record referenced by a booking.
func (s *Store) GetPayment(ctx context.Context, id uint64) (*model.PaymentRecord, error) {
	return s.Bookings.PaymentByID(ctx, id)
}

// CancelBooking cancels a confirmed booking in one transaction: the
// guarded CONFIRMED→CANCELLED transition and the release of its seats
// back to AVAILABLE.  The seats must free regardless of the refund
// outcome, so the refund is the caller's concern and happens outside
// this transaction.
func (s *Store) CancelBooking(ctx context.Context, bookingID uint64, cancelledAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	booking, err := s.Bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if err := s.Bookings.CancelTx(ctx, tx, bookingID, cancelledAt); err != nil {
		return err
	}
	seatNumbers := make([]string, len(booking.Lines))
	for i, l := range booking.Lines {
		seatNumbers[i] = l.SeatNumber
	}
	if err := s.Seats.ReleaseBookedTx(ctx, tx, booking.ShowtimeID, seatNumbers); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetShowtime resolves a showtime reference.
func (s *Store) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	return s.Showtimes.Get(ctx, id)
}

// ActiveTicketTypes resolves the requested ticket type ids to their
// active definitions.
func (s *Store) ActiveTicketTypes(ctx context.Context, ids []uint64) (map[uint64]model.TicketType, error) {
	return s.TicketTypes.GetActive(ctx, ids)
}

// Availability returns the seat map of a showtime grouped by status.
func (s *Store) Availability(ctx context.Context, showtimeID uint64) (*model.Availability, error) {
	return s.Seats.Availability(ctx, showtimeID)
}

// ScheduleShowtime creates a showtime and its seat inventory in one
// transaction.  Seats are stamped with the generated showtime id before
// the bulk insert.
func (s *Store) ScheduleShowtime(ctx context.Context, st *model.Showtime, seats []model.ShowtimeSeat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := s.Showtimes.CreateTx(ctx, tx, st); err != nil {
		return err
	}
	for i := range seats {
		seats[i].ShowtimeID = st.ID
	}
	if err := s.Seats.CreateBulkTx(ctx, tx, seats); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
