package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/participant"
	"github.com/arcadia-bio/biocore/pkg/composables"
)

type ParticipantRepository struct{}

func NewParticipantRepository() participant.Repository {
	return &ParticipantRepository{}
}

func (r *ParticipantRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM biobank_participants WHERE id=$1)`,
		pgUUID(id),
	).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ParticipantRepository) GetByID(ctx context.Context, id uuid.UUID) (participant.Participant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return participant.Participant{}, err
	}

	var (
		pid       pgtype.UUID
		external  string
		createdAt pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx,
		`SELECT id, external_id, created_at FROM biobank_participants WHERE id=$1`,
		pgUUID(id),
	).Scan(&pid, &external, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return participant.Participant{}, participant.ErrNotFound
	}
	if err != nil {
		return participant.Participant{}, err
	}
	return participant.Hydrate(fromPgUUID(pid), external, fromPgTime(createdAt)), nil
}

func (r *ParticipantRepository) GetSummary(ctx context.Context, participantID uuid.UUID) (participant.Summary, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return participant.Summary{}, err
	}

	var (
		bioCollected, measCompleted bool
		bioSite, measSite           pgtype.UUID
		bioTime, measTime           pgtype.Timestamptz
		distinctVisits              int32
		updatedAt                   pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx, `
		SELECT biospecimen_collected, biospecimen_site_id, biospecimen_time,
		       measurement_completed, measurement_site_id, measurement_time,
		       distinct_visits, updated_at
		FROM biobank_participant_summaries
		WHERE participant_id=$1
		`, pgUUID(participantID),
	).Scan(&bioCollected, &bioSite, &bioTime, &measCompleted, &measSite, &measTime, &distinctVisits, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return participant.Summary{ParticipantID: participantID}, nil
	}
	if err != nil {
		return participant.Summary{}, err
	}

	return participant.Summary{
		ParticipantID:        participantID,
		BiospecimenCollected: bioCollected,
		BiospecimenSiteID:    fromPgUUIDPtr(bioSite),
		BiospecimenTime:      fromPgTimePtr(bioTime),
		MeasurementCompleted: measCompleted,
		MeasurementSiteID:    fromPgUUIDPtr(measSite),
		MeasurementTime:      fromPgTimePtr(measTime),
		DistinctVisits:       distinctVisits,
		UpdatedAt:            fromPgTime(updatedAt),
	}, nil
}

func (r *ParticipantRepository) SaveSummary(ctx context.Context, s participant.Summary) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO biobank_participant_summaries (
			participant_id, biospecimen_collected, biospecimen_site_id,
			biospecimen_time, measurement_completed, measurement_site_id,
			measurement_time, distinct_visits, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (participant_id) DO UPDATE SET
			biospecimen_collected=excluded.biospecimen_collected,
			biospecimen_site_id=excluded.biospecimen_site_id,
			biospecimen_time=excluded.biospecimen_time,
			measurement_completed=excluded.measurement_completed,
			measurement_site_id=excluded.measurement_site_id,
			measurement_time=excluded.measurement_time,
			distinct_visits=excluded.distinct_visits,
			updated_at=excluded.updated_at
		`,
		pgUUID(s.ParticipantID),
		s.BiospecimenCollected,
		pgNullableUUID(s.BiospecimenSiteID),
		pgTimePtr(s.BiospecimenTime),
		s.MeasurementCompleted,
		pgNullableUUID(s.MeasurementSiteID),
		pgTimePtr(s.MeasurementTime),
		s.DistinctVisits,
		pgTime(s.UpdatedAt),
	); err != nil {
		return gerrors.Wrap(err, "save participant summary")
	}
	return nil
}

func (r *ParticipantRepository) ListVisitRecords(ctx context.Context, participantID uuid.UUID) ([]participant.VisitRecord, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, finalized_time, status = 'cancelled'
		FROM biobank_orders
		WHERE participant_id=$1 AND finalized_time IS NOT NULL
		ORDER BY finalized_time ASC, id ASC
		`, pgUUID(participantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []participant.VisitRecord
	for rows.Next() {
		var (
			id        pgtype.UUID
			finalized pgtype.Timestamptz
			cancelled bool
		)
		if err := rows.Scan(&id, &finalized, &cancelled); err != nil {
			return nil, err
		}
		out = append(out, participant.VisitRecord{
			OrderID:     fromPgUUID(id),
			FinalizedAt: fromPgTime(finalized),
			Cancelled:   cancelled,
		})
	}
	return out, rows.Err()
}

func (r *ParticipantRepository) LatestAttribution(ctx context.Context, participantID uuid.UUID, kind string) (participant.StageAttribution, bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return participant.StageAttribution{}, false, err
	}

	var (
		siteID    pgtype.UUID
		collected pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx, `
		SELECT o.collected_site_id, o.collected_time
		FROM biobank_orders o
		JOIN biobank_categories c ON c.id = o.category_id
		WHERE o.participant_id=$1 AND c.kind=$2 AND o.status <> 'cancelled'
		ORDER BY o.collected_time DESC NULLS LAST, o.created_at DESC
		LIMIT 1
		`, pgUUID(participantID), kind,
	).Scan(&siteID, &collected)
	if errors.Is(err, pgx.ErrNoRows) {
		return participant.StageAttribution{}, false, nil
	}
	if err != nil {
		return participant.StageAttribution{}, false, err
	}
	return participant.StageAttribution{
		SiteID: fromPgUUIDPtr(siteID),
		Time:   fromPgTimePtr(collected),
	}, true, nil
}
