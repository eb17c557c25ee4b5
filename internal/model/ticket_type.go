package model

// TicketType scales a seat's base price for a class of customer
// (adult, child, senior, ...).  Inactive types are soft-deleted with the
// IsActive flag and may not be used in new holds.
type TicketType struct {
	ID            uint64  // ticket_types.id
	Name          string  // ticket_types.name
	PriceModifier float64 // ticket_types.price_modifier, e.g. 1.0 or 0.5
	IsActive      bool    // ticket_types.is_active
}
