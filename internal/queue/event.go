// Package queue defines message payloads exchanged over the message
// broker and the background consumer that applies them.
package queue

// StampEvent is published when a booking is confirmed (Action "add") or
// a confirmed booking is cancelled (Action "remove").  It carries enough
// information for the loyalty consumer to maintain the stamp ledger
// without querying the primary database.
type StampEvent struct {
	UserID        uint64 `json:"user_id"`
	Action        string `json:"action"` // "add" or "remove"
	BookingNumber string `json:"booking_number"`
	OccurredAt    string `json:"occurred_at"`
}

// StampQueueName is the durable queue loyalty stamp events travel over.
const StampQueueName = "loyalty.stamps"
