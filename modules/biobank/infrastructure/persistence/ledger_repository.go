package persistence

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/order"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/ledger"
	"github.com/arcadia-bio/biocore/pkg/composables"
)

type LedgerRepository struct{}

func NewLedgerRepository() ledger.Repository {
	return &LedgerRepository{}
}

func (r *LedgerRepository) Append(ctx context.Context, entries []ledger.Entry) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO biobank_sample_ledger (
				sample_id, order_id, participant_id, category_id, snapshot, created_at
			) VALUES ($1,$2,$3,$4,$5::jsonb,$6)
			`,
			pgUUID(e.SampleID),
			pgUUID(e.OrderID),
			pgUUID(e.ParticipantID),
			pgUUID(e.CategoryID),
			string(e.Snapshot),
			pgTime(e.CreatedAt),
		); err != nil {
			return gerrors.Wrap(err, "append ledger entry")
		}
	}
	return nil
}

func (r *LedgerRepository) ListUnexported(ctx context.Context) ([]ledger.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT l.id, l.sample_id, l.order_id, l.participant_id, l.category_id,
		       l.snapshot, l.created_at
		FROM biobank_sample_ledger l
		LEFT JOIN biobank_export_references er ON er.ledger_entry_id = l.id
		WHERE er.ledger_entry_id IS NULL
		ORDER BY l.id ASC
		`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *LedgerRepository) LatestActiveFinalized(ctx context.Context, orderID uuid.UUID) (time.Time, bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return time.Time{}, false, err
	}

	var finalized pgtype.Text
	err = tx.QueryRow(ctx, `
		SELECT snapshot->>'finalized'
		FROM biobank_sample_ledger
		WHERE order_id=$1
		  AND snapshot->>'parent_id' IS NULL
		  AND snapshot->>'status' <> 'cancelled'
		ORDER BY id DESC
		LIMIT 1
		`, pgUUID(orderID)).Scan(&finalized)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	if !finalized.Valid || finalized.String == "" {
		return time.Time{}, false, nil
	}

	t, err := time.Parse(time.RFC3339Nano, finalized.String)
	if err != nil {
		return time.Time{}, false, gerrors.Wrap(err, "parse finalized snapshot time")
	}
	return t.UTC(), true, nil
}

func (r *LedgerRepository) PrecancelStatuses(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]order.SampleStatus, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT sample_id, status FROM (
			SELECT sample_id,
			       snapshot->>'status' AS status,
			       row_number() OVER (PARTITION BY sample_id ORDER BY id DESC) AS rn
			FROM biobank_sample_ledger
			WHERE order_id=$1
		) snapshots
		WHERE rn = 2
		`, pgUUID(orderID))
	if err != nil {
		return nil, gerrors.Wrap(err, "query precancel statuses")
	}
	defer rows.Close()

	out := make(map[uuid.UUID]order.SampleStatus)
	for rows.Next() {
		var (
			sampleID pgtype.UUID
			status   string
		)
		if err := rows.Scan(&sampleID, &status); err != nil {
			return nil, gerrors.Wrap(err, "scan precancel status")
		}
		out[fromPgUUID(sampleID)] = order.SampleStatus(status)
	}
	return out, rows.Err()
}

func (r *LedgerRepository) InsertArtifact(ctx context.Context, a ledger.Artifact) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO biobank_export_artifacts (id, blob_key, sha256, entry_count, created_at)
		VALUES ($1,$2,$3,$4,$5)
		`,
		pgUUID(a.ID),
		a.BlobKey,
		a.SHA256,
		a.EntryCount,
		pgTime(a.CreatedAt),
	); err != nil {
		return gerrors.Wrap(err, "insert export artifact")
	}
	return nil
}

func (r *LedgerRepository) LinkExport(ctx context.Context, artifactID uuid.UUID, entryIDs []int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	for _, id := range entryIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO biobank_export_references (ledger_entry_id, artifact_id)
			VALUES ($1,$2)
			`, id, pgUUID(artifactID),
		); err != nil {
			return gerrors.Wrap(err, "link exported entry")
		}
	}
	return nil
}

func scanLedgerEntry(row pgx.Row) (ledger.Entry, error) {
	var (
		id                            int64
		sampleID, orderID             pgtype.UUID
		participantID, categoryID     pgtype.UUID
		snapshot                      []byte
		createdAt                     pgtype.Timestamptz
	)
	if err := row.Scan(&id, &sampleID, &orderID, &participantID, &categoryID, &snapshot, &createdAt); err != nil {
		return ledger.Entry{}, err
	}
	return ledger.Entry{
		ID:            id,
		SampleID:      fromPgUUID(sampleID),
		OrderID:       fromPgUUID(orderID),
		ParticipantID: fromPgUUID(participantID),
		CategoryID:    fromPgUUID(categoryID),
		Snapshot:      snapshot,
		CreatedAt:     fromPgTime(createdAt),
	}, nil
}
