package participant

import (
	"time"

	"github.com/google/uuid"
)

// Participant is owned by the registration subsystem; this core only reads
// it to validate references and keys the summary aggregate off it.
type Participant struct {
	id         uuid.UUID
	externalID string
	createdAt  time.Time
}

func Hydrate(id uuid.UUID, externalID string, createdAt time.Time) Participant {
	return Participant{id: id, externalID: externalID, createdAt: createdAt}
}

func (p Participant) ID() uuid.UUID        { return p.id }
func (p Participant) ExternalID() string   { return p.externalID }
func (p Participant) CreatedAt() time.Time { return p.createdAt }
