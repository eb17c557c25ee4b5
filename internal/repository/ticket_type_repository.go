package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// TicketTypeRepo resolves ticket types for pricing.  Ticket type CRUD is
// an external concern; the core only needs active types and their price
// modifiers at hold time.  Soft-deleted types (is_active = 0) are never
// returned by GetActive.
type TicketTypeRepo struct {
	db *sql.DB
}

// NewTicketTypeRepo returns a TicketTypeRepo bound to the given database.
func NewTicketTypeRepo(db *sql.DB) *TicketTypeRepo { return &TicketTypeRepo{db: db} }

// GetActive returns the active ticket types among the requested ids,
// keyed by id.  Callers compare the result against their request to
// detect missing or inactive types.
func (r *TicketTypeRepo) GetActive(ctx context.Context, ids []uint64) (map[uint64]model.TicketType, error) {
	types := make(map[uint64]model.TicketType, len(ids))
	if len(ids) == 0 {
		return types, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `SELECT id, name, price_modifier, is_active FROM ticket_types
	          WHERE id IN (` + strings.Join(placeholders, ",") + `) AND is_active = 1`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t model.TicketType
		if err := rows.Scan(&t.ID, &t.Name, &t.PriceModifier, &t.IsActive); err != nil {
			return nil, err
		}
		types[t.ID] = t
	}
	return types, rows.Err()
}

// Create inserts a ticket type and populates the generated id.  Used by
// the scheduling endpoint when seeding a deployment.
func (r *TicketTypeRepo) Create(ctx context.Context, t *model.TicketType) error {
	const q = `INSERT INTO ticket_types (name, price_modifier, is_active) VALUES (?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, t.Name, t.PriceModifier, t.IsActive)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}
