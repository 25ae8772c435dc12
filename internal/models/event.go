package models

import "time"

// EventType names a post-commit domain event.
type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingCancelled EventType = "booking.cancelled"
	EventSlotOpened       EventType = "slot.opened"
)

// Event is emitted after a ledger transaction commits. Booking is set for booking events, Entry for SlotOpened.
type Event struct {
	Type       EventType      `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	ActorID    string         `json:"actor_id"`
	Booking    *BookingDetail `json:"booking,omitempty"`
	Entry      *Availability  `json:"entry,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// NewBookingCreated builds a BookingCreated event.
func NewBookingCreated(actorID string, booking BookingDetail) Event {
	return Event{Type: EventBookingCreated, OccurredAt: time.Now().UTC(), ActorID: actorID, Booking: &booking}
}

// NewBookingCancelled builds a BookingCancelled event carrying the cancellation reason.
func NewBookingCancelled(actorID string, booking BookingDetail, reason string) Event {
	return Event{Type: EventBookingCancelled, OccurredAt: time.Now().UTC(), ActorID: actorID, Booking: &booking, Reason: reason}
}

// NewSlotOpened builds a SlotOpened event.
func NewSlotOpened(actorID string, entry Availability) Event {
	return Event{Type: EventSlotOpened, OccurredAt: time.Now().UTC(), ActorID: actorID, Entry: &entry}
}
