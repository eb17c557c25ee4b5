package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// SeatRepo is the seat ledger: the single source of truth for seat
// occupancy.  Every mutation is a compare-and-swap against the row's
// version column (`... WHERE version = ?`), so exactly one writer wins
// per seat update and the lost-update race of a naive read-then-write
// cycle cannot occur.  All mutating methods operate within a
// caller-supplied transaction; the caller commits or rolls back.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// CreateBulkTx inserts seat rows for a newly scheduled showtime in a
// single statement.  Seats start AVAILABLE at version 0 and are never
// deleted afterwards.  Passing an empty slice has no effect.
func (r *SeatRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.ShowtimeSeat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO showtime_seats (showtime_id, seat_number, seat_type, price_cents, status, version) VALUES `
	args := make([]interface{}, 0, len(seats)*6)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, 0)"
		args = append(args, s.ShowtimeID, s.SeatNumber, s.SeatType, s.PriceCents, model.SeatAvailable)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// SeatsForHoldTx loads the requested seats of a showtime and verifies
// that every one exists and is AVAILABLE.  Missing seat numbers produce
// a SeatsNotFoundError and occupied ones a SeatsUnavailableError, each
// listing the offending seats.  The returned rows carry the price and
// version used by the subsequent HoldTx call.
func (r *SeatRepo) SeatsForHoldTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatNumbers []string) ([]model.ShowtimeSeat, error) {
	if len(seatNumbers) == 0 {
		return nil, &SeatsNotFoundError{}
	}
	placeholders := make([]string, len(seatNumbers))
	args := make([]interface{}, 0, len(seatNumbers)+1)
	args = append(args, showtimeID)
	for i, n := range seatNumbers {
		placeholders[i] = "?"
		args = append(args, n)
	}
	query := `SELECT showtime_id, seat_number, seat_type, price_cents, status, reservation_id, reserved_until, version
	          FROM showtime_seats
	          WHERE showtime_id = ? AND seat_number IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[string]model.ShowtimeSeat, len(seatNumbers))
	for rows.Next() {
		var s model.ShowtimeSeat
		var resID sql.NullInt64
		var until sql.NullTime
		if err := rows.Scan(&s.ShowtimeID, &s.SeatNumber, &s.SeatType, &s.PriceCents, &s.Status, &resID, &until, &s.Version); err != nil {
			return nil, err
		}
		if resID.Valid {
			id := uint64(resID.Int64)
			s.ReservationID = &id
		}
		if until.Valid {
			t := until.Time
			s.ReservedUntil = &t
		}
		found[s.SeatNumber] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var missing, unavailable []string
	seats := make([]model.ShowtimeSeat, 0, len(seatNumbers))
	for _, n := range seatNumbers {
		s, ok := found[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		if s.Status != model.SeatAvailable {
			unavailable = append(unavailable, n)
			continue
		}
		seats = append(seats, s)
	}
	if len(missing) > 0 {
		return nil, &SeatsNotFoundError{Missing: missing}
	}
	if len(unavailable) > 0 {
		return nil, &SeatsUnavailableError{Seats: unavailable}
	}
	return seats, nil
}

// HoldTx marks the given seats RESERVED for a reservation via one CAS
// update per seat, supplying the version each row had when it was read.
// If any update touches zero rows another writer got there first; the
// method returns ErrConflict and the caller must roll back the whole
// transaction so that no partial hold survives.
func (r *SeatRepo) HoldTx(ctx context.Context, tx *sql.Tx, reservationID uint64, until time.Time, seats []model.ShowtimeSeat) error {
	const q = `UPDATE showtime_seats
	           SET status = ?, reservation_id = ?, reserved_until = ?, version = version + 1
	           WHERE showtime_id = ? AND seat_number = ? AND version = ? AND status = ?`
	for _, s := range seats {
		res, err := tx.ExecContext(ctx, q,
			model.SeatReserved, reservationID, until.UTC(),
			s.ShowtimeID, s.SeatNumber, s.Version, model.SeatAvailable,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return ErrConflict
		}
	}
	return nil
}

// FinalizeTx transitions every seat held by a reservation from RESERVED
// to BOOKED and clears the owner fields.  The update is conditioned on
// the current owner and status, and the affected-row count must match
// the reservation's seat count; anything else means the hold mutated
// underneath us and the transaction must be rolled back (ErrConflict).
func (r *SeatRepo) FinalizeTx(ctx context.Context, tx *sql.Tx, reservationID uint64, expected int) error {
	const q = `UPDATE showtime_seats
	           SET status = ?, reservation_id = NULL, reserved_until = NULL, version = version + 1
	           WHERE reservation_id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.SeatBooked, reservationID, model.SeatReserved)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != int64(expected) {
		return ErrConflict
	}
	return nil
}

// ReleaseHeldTx returns every seat held by a reservation to AVAILABLE
// and clears the owner fields.  Releasing a reservation that no longer
// owns any seats affects zero rows and is a harmless no-op, which is
// what makes redundant sweeper passes safe.
func (r *SeatRepo) ReleaseHeldTx(ctx context.Context, tx *sql.Tx, reservationID uint64) error {
	const q = `UPDATE showtime_seats
	           SET status = ?, reservation_id = NULL, reserved_until = NULL, version = version + 1
	           WHERE reservation_id = ? AND status = ?`
	_, err := tx.ExecContext(ctx, q, model.SeatAvailable, reservationID, model.SeatReserved)
	return err
}

// ReleaseBookedTx frees previously sold seats after a booking
// cancellation, BOOKED back to AVAILABLE.  Booked seats carry no owner
// reference, so the caller supplies the seat numbers from the booking's
// line items.
func (r *SeatRepo) ReleaseBookedTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatNumbers []string) error {
	if len(seatNumbers) == 0 {
		return nil
	}
	placeholders := make([]string, len(seatNumbers))
	args := make([]interface{}, 0, len(seatNumbers)+3)
	args = append(args, model.SeatAvailable, showtimeID)
	for i, n := range seatNumbers {
		placeholders[i] = "?"
		args = append(args, n)
	}
	args = append(args, model.SeatBooked)
	query := `UPDATE showtime_seats
	          SET status = ?, reservation_id = NULL, reserved_until = NULL, version = version + 1
	          WHERE showtime_id = ? AND seat_number IN (` + strings.Join(placeholders, ",") + `) AND status = ?`
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// Availability returns the seat numbers of a showtime grouped by
// occupancy status, each group sorted for deterministic output.  A
// showtime with no seat rows yields ErrNotFound.
func (r *SeatRepo) Availability(ctx context.Context, showtimeID uint64) (*model.Availability, error) {
	const q = `SELECT seat_number, status FROM showtime_seats WHERE showtime_id = ?`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	av := &model.Availability{
		ShowtimeID: showtimeID,
		Available:  []string{},
		Reserved:   []string{},
		Booked:     []string{},
	}
	count := 0
	for rows.Next() {
		var number string
		var status model.SeatStatus
		if err := rows.Scan(&number, &status); err != nil {
			return nil, err
		}
		count++
		switch status {
		case model.SeatReserved:
			av.Reserved = append(av.Reserved, number)
		case model.SeatBooked:
			av.Booked = append(av.Booked, number)
		default:
			av.Available = append(av.Available, number)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	sort.Strings(av.Available)
	sort.Strings(av.Reserved)
	sort.Strings(av.Booked)
	return av, nil
}
