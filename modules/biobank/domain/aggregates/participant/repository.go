package participant

import (
	"context"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = gerrors.New("participant not found")

type Repository interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (Participant, error)

	// GetSummary returns the stored summary, or a zero-valued one keyed to
	// the participant when none exists yet.
	GetSummary(ctx context.Context, participantID uuid.UUID) (Summary, error)
	SaveSummary(ctx context.Context, s Summary) error

	// ListVisitRecords returns every finalized order of the participant,
	// including cancelled ones, ordered by finalized time.
	ListVisitRecords(ctx context.Context, participantID uuid.UUID) ([]VisitRecord, error)

	// LatestAttribution returns the collected-stage site and time of the
	// participant's most recent non-cancelled order of the given category
	// kind. ok is false when no such order exists.
	LatestAttribution(ctx context.Context, participantID uuid.UUID, kind string) (StageAttribution, bool, error)
}
