package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// ReservationRepo provides data access to reservations and their line
// items.  A reservation row is created only together with a successful
// seat hold, in the same transaction, and leaves PENDING exclusively
// through guarded transitions so that concurrent confirm, cancel and
// sweeper paths cannot both win.  All timestamps are UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// CreateTx inserts a PENDING reservation and its line items within the
// provided transaction and populates the generated ID on the passed
// record.  TotalAmountCents must already equal the exact sum of the
// line item unit prices; the repository stores what it is given.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, showtime_id, status, total_amount_cents, created_at, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.UserID, res.ShowtimeID, res.Status, res.TotalAmountCents,
		res.CreatedAt.UTC(), res.ExpiresAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	if len(res.Lines) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_seats (reservation_id, seat_number, ticket_type_id, unit_price_cents) VALUES `
	args := make([]interface{}, 0, len(res.Lines)*4)
	for i, l := range res.Lines {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, res.ID, l.SeatNumber, l.TicketTypeID, l.UnitPriceCents)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// querier is the read surface shared by *sql.DB and *sql.Tx, letting
// the same scan code serve plain and locking loads.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// GetByID loads a reservation with its line items.  It returns
// ErrNotFound when no row exists.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return r.get(ctx, r.db, id, false)
}

// GetForUpdateTx loads a reservation with its line items inside the
// given transaction, locking the row (SELECT ... FOR UPDATE) so that a
// guarded transition in the same transaction observes fresh state
// rather than a snapshot.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	return r.get(ctx, tx, id, true)
}

func (r *ReservationRepo) get(ctx context.Context, q querier, id uint64, forUpdate bool) (*model.Reservation, error) {
	query := `SELECT id, user_id, showtime_id, status, total_amount_cents, created_at, expires_at
	          FROM reservations WHERE id = ?`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var res model.Reservation
	err := q.QueryRowContext(ctx, query, id).Scan(
		&res.ID, &res.UserID, &res.ShowtimeID, &res.Status,
		&res.TotalAmountCents, &res.CreatedAt, &res.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	const lineQ = `SELECT seat_number, ticket_type_id, unit_price_cents
	               FROM reservation_seats WHERE reservation_id = ? ORDER BY id`
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
		res.Lines = append(res.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &res, nil
}

// TransitionTx performs a guarded status transition within the given
// transaction: the update only matches when the row is still in the
// `from` state.  Zero affected rows means another path (a concurrent
// confirm, cancel or sweeper pass) transitioned the row first, and the
// caller receives ErrInvalidState.
func (r *ReservationRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.ReservationStatus) error {
	const q = `UPDATE reservations SET status = ? WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, to, id, from)
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

// ExpiredCandidates returns the ids of PENDING reservations whose TTL
// elapsed at or before now, oldest first.  The scan rides the
// (status, expires_at) index.  It is a plain read: the sweeper re-checks
// each candidate under FOR UPDATE inside its own transaction, so a stale
// candidate list is harmless.
func (r *ReservationRepo) ExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	const q = `SELECT id FROM reservations
	           WHERE status = ? AND expires_at <= ?
	           ORDER BY expires_at LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, model.ReservationPending, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
