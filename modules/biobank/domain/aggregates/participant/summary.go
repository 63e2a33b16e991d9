package participant

import (
	"time"

	"github.com/google/uuid"
)

// Summary is the per-participant aggregate this core mutates as a side
// effect of order mutations, always inside the order's transaction. Other
// subsystems own its remaining fields.
type Summary struct {
	ParticipantID uuid.UUID

	BiospecimenCollected bool
	BiospecimenSiteID    *uuid.UUID
	BiospecimenTime      *time.Time

	MeasurementCompleted bool
	MeasurementSiteID    *uuid.UUID
	MeasurementTime      *time.Time

	DistinctVisits int32

	UpdatedAt time.Time
}

// VisitRecord is one order's contribution to distinct-visit counting.
type VisitRecord struct {
	OrderID     uuid.UUID
	FinalizedAt time.Time
	Cancelled   bool
}

// StageAttribution is the site and time the updater copies onto the summary
// from the most recent non-cancelled order of a kind.
type StageAttribution struct {
	SiteID *uuid.UUID
	Time   *time.Time
}
