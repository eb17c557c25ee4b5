package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// ShowtimeRepo resolves showtime references for the booking core.
// Showtime management proper lives in an external data layer; the core
// only reads the start time to reject holds and cancellations on
// showtimes that have already begun, and creates rows when scheduling
// seats in bulk.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo returns a ShowtimeRepo bound to the given database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// Get loads a showtime by id, returning ErrNotFound when absent.
func (r *ShowtimeRepo) Get(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT id, hall_id, title, starts_at, created_at FROM showtimes WHERE id = ?`
	var st model.Showtime
	err := r.db.QueryRowContext(ctx, q, id).Scan(&st.ID, &st.HallID, &st.Title, &st.StartsAt, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CreateTx inserts a showtime within the provided transaction and
// populates the generated id.  Seat rows are created in the same
// transaction by SeatRepo.CreateBulkTx.
func (r *ShowtimeRepo) CreateTx(ctx context.Context, tx *sql.Tx, st *model.Showtime) error {
	st.CreatedAt = time.Now().UTC()
	const q = `INSERT INTO showtimes (hall_id, title, starts_at, created_at) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, st.HallID, st.Title, st.StartsAt.UTC(), st.CreatedAt)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = uint64(id)
	return nil
}
