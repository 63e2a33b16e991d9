package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/order"
)

type Repository interface {
	// Append writes entries inside the caller's transaction. Entries are
	// never updated or deleted afterwards.
	Append(ctx context.Context, entries []Entry) error

	// ListUnexported returns every entry with no export reference, in
	// insertion order.
	ListUnexported(ctx context.Context) ([]Entry, error)

	// LatestActiveFinalized returns the finalized time recorded in the most
	// recent non-cancelled snapshot of the order's root sample. ok is false
	// when no such snapshot exists or it carries no finalized time.
	LatestActiveFinalized(ctx context.Context, orderID uuid.UUID) (time.Time, bool, error)

	// PrecancelStatuses returns, per sample, the status recorded immediately
	// before each sample's latest snapshot. On a cancelled order the latest
	// snapshots are the cancellation itself, so this is the state a restore
	// returns each sample to. Samples with a single snapshot are absent from
	// the map.
	PrecancelStatuses(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]order.SampleStatus, error)

	// InsertArtifact records one generated export file and its checksum.
	InsertArtifact(ctx context.Context, a Artifact) error

	// LinkExport creates one export reference per entry, marking them as
	// contained in the artifact.
	LinkExport(ctx context.Context, artifactID uuid.UUID, entryIDs []int64) error
}
