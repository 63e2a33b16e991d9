package order

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// GetByClientID loads the header and its full sample tree. Returns
	// ErrNotFound when no order carries the client identifier.
	GetByClientID(ctx context.Context, clientID string) (Order, []Sample, error)

	// GetByID loads the header alone.
	GetByID(ctx context.Context, id uuid.UUID) (Order, error)

	// Create inserts the header with its root and aliquot samples.
	Create(ctx context.Context, o Order, samples []Sample) error

	// UpdateHeader writes the header guarded by the version the caller read.
	// Returns ErrVersionMismatch when the stored version differs.
	UpdateHeader(ctx context.Context, o Order, expectedVersion int32) error

	// ApplyChangeSet persists a reconciliation outcome: root content
	// overwrite, aliquot inserts, updates and cancellation flags.
	ApplyChangeSet(ctx context.Context, cs ChangeSet) error

	// ListSamples returns the current sample tree for an order, root first.
	ListSamples(ctx context.Context, orderID uuid.UUID) ([]Sample, error)

	// SetSamplesStatus flags every sample of an order with the given status,
	// used when a whole order is cancelled.
	SetSamplesStatus(ctx context.Context, orderID uuid.UUID, status SampleStatus) ([]Sample, error)

	// SetSampleStatuses writes a per-sample status map, used when a
	// cancelled order is restored and each sample returns to its own
	// pre-cancellation status. Samples absent from the map keep their
	// current status.
	SetSampleStatuses(ctx context.Context, orderID uuid.UUID, statuses map[uuid.UUID]SampleStatus) ([]Sample, error)
}
