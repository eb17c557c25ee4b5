package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// BookingRepo provides data access to bookings, their copied line items
// and the payment records created alongside them.  A booking row is
// written only inside the confirm transaction, together with the seat
// finalize and the reservation transition, so it can never exist without
// a payment.  Bookings are immutable except for the cancel transition.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// newBookingNumber generates the human-facing booking reference: "BK-"
// followed by ten uppercase hex characters from a secure random source.
// The column carries a unique index; collisions surface as an insert
// error and abort the confirm transaction.
func newBookingNumber() (string, error) {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "BK-" + strings.ToUpper(hex.EncodeToString(b)), nil
}

// CreateTx inserts the payment record and the booking with its copied
// line items within the provided transaction.  It populates the
// generated ids, the booking number and BookedAt on the passed records.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking, pay *model.PaymentRecord) error {
	const payQ = `INSERT INTO payments (transaction_id, amount_cents, method, processed_at)
	              VALUES (?, ?, ?, ?)`
	payRes, err := tx.ExecContext(ctx, payQ, pay.TransactionID, pay.AmountCents, pay.Method, pay.ProcessedAt.UTC())
	if err != nil {
		return err
	}
	payID, err := payRes.LastInsertId()
	if err != nil {
		return err
	}
	pay.ID = uint64(payID)

	number, err := newBookingNumber()
	if err != nil {
		return err
	}
	b.BookingNumber = number
	b.PaymentID = pay.ID
	b.Status = model.BookingConfirmed
	b.BookedAt = time.Now().UTC()

	const q = `INSERT INTO bookings (booking_number, user_id, showtime_id, reservation_id, status, total_amount_cents, payment_id, booked_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		b.BookingNumber, b.UserID, b.ShowtimeID, b.ReservationID,
		b.Status, b.TotalAmountCents, b.PaymentID, b.BookedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	if len(b.Lines) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, seat_number, ticket_type_id, unit_price_cents) VALUES `
	args := make([]interface{}, 0, len(b.Lines)*4)
	for i, l := range b.Lines {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, b.ID, l.SeatNumber, l.TicketTypeID, l.UnitPriceCents)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID loads a booking with its line items outside any transaction.
// ErrNotFound is returned when no booking exists.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return r.get(ctx, r.db, id, false)
}

// GetForUpdateTx loads a booking with its line items inside the given
// transaction, locking the row so the cancel guard observes fresh state.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return r.get(ctx, tx, id, true)
}

func (r *BookingRepo) get(ctx context.Context, q querier, id uint64, forUpdate bool) (*model.Booking, error) {
	query := `SELECT id, booking_number, user_id, showtime_id, reservation_id, status, total_amount_cents, payment_id, booked_at, cancelled_at
	          FROM bookings WHERE id = ?`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var b model.Booking
	var cancelledAt sql.NullTime
	err := q.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.BookingNumber, &b.UserID, &b.ShowtimeID, &b.ReservationID,
		&b.Status, &b.TotalAmountCents, &b.PaymentID, &b.BookedAt, &cancelledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	const lineQ = `SELECT seat_number, ticket_type_id, unit_price_cents
	               FROM booking_seats WHERE booking_id = ? ORDER BY id`
	rows, err := q.QueryContext(ctx, lineQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l model.LineItem
		if err := rows.Scan(&l.SeatNumber, &l.TicketTypeID, &l.UnitPriceCents); err != nil {
			return nil, err
		}
		b.Lines = append(b.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &b, nil
}

// CancelTx performs the guarded CONFIRMED→CANCELLED transition and
// stamps cancelled_at.  Zero affected rows means the booking was already
// cancelled, yielding ErrInvalidState.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, cancelledAt time.Time) error {
	const q = `UPDATE bookings SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.BookingCancelled, cancelledAt.UTC(), id, model.BookingConfirmed)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrInvalidState
	}
	return nil
}

// PaymentByID loads a payment record, used to recover the gateway
// transaction id when refunding a cancelled booking.
func (r *BookingRepo) PaymentByID(ctx context.Context, id uint64) (*model.PaymentRecord, error) {
	const q = `SELECT id, transaction_id, amount_cents, method, processed_at FROM payments WHERE id = ?`
	var p model.PaymentRecord
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.TransactionID, &p.AmountCents, &p.Method, &p.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
