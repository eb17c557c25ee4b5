package model

import "math"

// SeatSelection pairs a requested seat with the ticket type it should
// be priced under.  It is the unit of input to a hold request.
type SeatSelection struct {
	SeatNumber   string `json:"seat_number"`
	TicketTypeID uint64 `json:"ticket_type_id"`
}

// UnitPriceCents prices one seat under a ticket type: the seat's base
// price scaled by the type's modifier, rounded to the nearest cent.
// Working in integer cents keeps line item sums exact: the reservation
// total is always precisely the sum of its unit prices.  A non-positive
// modifier prices to zero; it must never wrap through the unsigned
// conversion into a huge amount.
func UnitPriceCents(priceCents uint32, modifier float64) uint32 {
	if modifier <= 0 {
		return 0
	}
	return uint32(math.Round(float64(priceCents) * modifier))
}

// SumLineItems returns the exact total of the given line items in cents.
func SumLineItems(lines []LineItem) uint32 {
	var total uint32
	for _, l := range lines {
		total += l.UnitPriceCents
	}
	return total
}
