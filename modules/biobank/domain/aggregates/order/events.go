package order

import (
	"time"

	"github.com/google/uuid"
)

type CreatedEvent struct {
	OrderID       uuid.UUID
	ClientID      string
	ParticipantID uuid.UUID
	OccurredAt    time.Time
}

type AmendedEvent struct {
	OrderID       uuid.UUID
	ClientID      string
	ParticipantID uuid.UUID
	Version       int32
	OccurredAt    time.Time
}

type CancelledEvent struct {
	OrderID       uuid.UUID
	ClientID      string
	ParticipantID uuid.UUID
	Reason        string
	OccurredAt    time.Time
}

type RestoredEvent struct {
	OrderID       uuid.UUID
	ClientID      string
	ParticipantID uuid.UUID
	Reason        string
	OccurredAt    time.Time
}
