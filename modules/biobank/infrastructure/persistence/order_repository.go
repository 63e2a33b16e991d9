package persistence

import (
	"context"
	"encoding/json"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/order"
	"github.com/arcadia-bio/biocore/pkg/composables"
)

const orderColumns = `
	id, client_id, participant_id, category_id, status, precancel_status,
	version, fingerprint, notes,
	created_site_id, created_author, created_time,
	collected_site_id, collected_author, collected_time,
	finalized_site_id, finalized_author, finalized_time,
	amended_site_id, amended_author, amended_reason, amended_time,
	cancelled_site_id, cancelled_author, cancelled_reason, cancelled_time,
	restored_site_id, restored_author, restored_reason, restored_time,
	created_at, updated_at`

const sampleColumns = `
	id, order_id, parent_id, aliquot_id, identifier, test, description,
	container, volume::text, volume_units, collected_time, processed_time,
	finalized_time, status, supplemental`

type OrderRepository struct{}

func NewOrderRepository() order.Repository {
	return &OrderRepository{}
}

func (r *OrderRepository) GetByClientID(ctx context.Context, clientID string) (order.Order, []order.Sample, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return order.Order{}, nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM biobank_orders WHERE client_id=$1`, clientID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, nil, order.ErrNotFound
		}
		return order.Order{}, nil, err
	}

	samples, err := r.ListSamples(ctx, o.ID())
	if err != nil {
		return order.Order{}, nil, err
	}
	return o, samples, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (order.Order, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return order.Order{}, err
	}

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM biobank_orders WHERE id=$1`, pgUUID(id))
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, order.ErrNotFound
		}
		return order.Order{}, err
	}
	return o, nil
}

func (r *OrderRepository) Create(ctx context.Context, o order.Order, samples []order.Sample) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO biobank_orders (
			id, client_id, participant_id, category_id, status, precancel_status,
			version, fingerprint, notes,
			created_site_id, created_author, created_time,
			collected_site_id, collected_author, collected_time,
			finalized_site_id, finalized_author, finalized_time,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		`,
		pgUUID(o.ID()),
		o.ClientID(),
		pgUUID(o.ParticipantID()),
		pgUUID(o.CategoryID()),
		string(o.Status()),
		string(o.PrecancelStatus()),
		o.Version(),
		o.Fingerprint(),
		o.Notes(),
		pgZeroableUUID(o.Created().SiteID), o.Created().Author, pgTime(o.Created().Time),
		pgZeroableUUID(o.Collected().SiteID), o.Collected().Author, pgTime(o.Collected().Time),
		pgZeroableUUID(o.Finalized().SiteID), o.Finalized().Author, pgTime(o.Finalized().Time),
		pgTime(o.CreatedAt()),
		pgTime(o.UpdatedAt()),
	); err != nil {
		return gerrors.Wrap(err, "insert order")
	}

	for _, s := range samples {
		if err := insertSample(ctx, tx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) UpdateHeader(ctx context.Context, o order.Order, expectedVersion int32) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	amended, cancelled, restored := o.Amended(), o.Cancelled(), o.Restored()

	tag, err := tx.Exec(ctx, `
		UPDATE biobank_orders SET
			status=$3, precancel_status=$4, version=$5, fingerprint=$6, notes=$7,
			created_site_id=$8, created_author=$9, created_time=$10,
			collected_site_id=$11, collected_author=$12, collected_time=$13,
			finalized_site_id=$14, finalized_author=$15, finalized_time=$16,
			amended_site_id=$17, amended_author=$18, amended_reason=$19, amended_time=$20,
			cancelled_site_id=$21, cancelled_author=$22, cancelled_reason=$23, cancelled_time=$24,
			restored_site_id=$25, restored_author=$26, restored_reason=$27, restored_time=$28,
			updated_at=$29
		WHERE client_id=$1 AND version=$2
		`,
		o.ClientID(),
		expectedVersion,
		string(o.Status()),
		string(o.PrecancelStatus()),
		o.Version(),
		o.Fingerprint(),
		o.Notes(),
		pgZeroableUUID(o.Created().SiteID), o.Created().Author, pgTime(o.Created().Time),
		pgZeroableUUID(o.Collected().SiteID), o.Collected().Author, pgTime(o.Collected().Time),
		pgZeroableUUID(o.Finalized().SiteID), o.Finalized().Author, pgTime(o.Finalized().Time),
		transitionSite(amended), transitionAuthor(amended), transitionReason(amended), transitionTime(amended),
		transitionSite(cancelled), transitionAuthor(cancelled), transitionReason(cancelled), transitionTime(cancelled),
		transitionSite(restored), transitionAuthor(restored), transitionReason(restored), transitionTime(restored),
		pgTime(o.UpdatedAt()),
	)
	if err != nil {
		return gerrors.Wrap(err, "update order header")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// No row matched: either the order is gone or the version is stale.
	var stored int32
	err = tx.QueryRow(ctx, `SELECT version FROM biobank_orders WHERE client_id=$1`, o.ClientID()).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.ErrNotFound
	}
	if err != nil {
		return err
	}
	return order.ErrVersionMismatch{Supplied: expectedVersion, Stored: stored}
}

func (r *OrderRepository) ApplyChangeSet(ctx context.Context, cs order.ChangeSet) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if err := updateSample(ctx, tx, cs.Root); err != nil {
		return err
	}
	for _, s := range cs.Updates {
		if err := updateSample(ctx, tx, s); err != nil {
			return err
		}
	}
	for _, s := range cs.Cancels {
		if _, err := tx.Exec(ctx,
			`UPDATE biobank_samples SET status=$2, updated_at=now() WHERE id=$1`,
			pgUUID(s.ID), string(order.SampleStatusCancelled),
		); err != nil {
			return gerrors.Wrap(err, "cancel sample")
		}
	}
	for _, s := range cs.Inserts {
		if err := insertSample(ctx, tx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) ListSamples(ctx context.Context, orderID uuid.UUID) ([]order.Sample, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+sampleColumns+`
		FROM biobank_samples
		WHERE order_id=$1
		ORDER BY parent_id NULLS FIRST, aliquot_id ASC
		`, pgUUID(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *OrderRepository) SetSamplesStatus(ctx context.Context, orderID uuid.UUID, status order.SampleStatus) ([]order.Sample, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE biobank_samples SET status=$2, updated_at=now() WHERE order_id=$1`,
		pgUUID(orderID), string(status),
	); err != nil {
		return nil, gerrors.Wrap(err, "set samples status")
	}
	return r.ListSamples(ctx, orderID)
}

func (r *OrderRepository) SetSampleStatuses(ctx context.Context, orderID uuid.UUID, statuses map[uuid.UUID]order.SampleStatus) ([]order.Sample, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	for sampleID, status := range statuses {
		if _, err := tx.Exec(ctx,
			`UPDATE biobank_samples SET status=$3, updated_at=now() WHERE order_id=$1 AND id=$2`,
			pgUUID(orderID), pgUUID(sampleID), string(status),
		); err != nil {
			return nil, gerrors.Wrap(err, "set sample status")
		}
	}
	return r.ListSamples(ctx, orderID)
}

func insertSample(ctx context.Context, tx composables.Tx, s order.Sample) error {
	supplemental, err := marshalSupplemental(s.Supplemental)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO biobank_samples (
			id, order_id, parent_id, aliquot_id, identifier, test, description,
			container, volume, volume_units, collected_time, processed_time,
			finalized_time, status, supplemental
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15::jsonb)
		`,
		pgUUID(s.ID),
		pgUUID(s.OrderID),
		pgNullableUUID(s.ParentID),
		s.AliquotID,
		s.Identifier,
		s.Test,
		s.Description,
		s.Container,
		s.Volume.String(),
		s.VolumeUnits,
		pgTimePtr(s.Collected),
		pgTimePtr(s.Processed),
		pgTimePtr(s.Finalized),
		string(s.Status),
		supplemental,
	); err != nil {
		return gerrors.Wrap(err, "insert sample")
	}
	return nil
}

func updateSample(ctx context.Context, tx composables.Tx, s order.Sample) error {
	supplemental, err := marshalSupplemental(s.Supplemental)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE biobank_samples SET
			identifier=$2, test=$3, description=$4, container=$5, volume=$6,
			volume_units=$7, collected_time=$8, processed_time=$9,
			finalized_time=$10, status=$11, supplemental=$12::jsonb,
			updated_at=now()
		WHERE id=$1
		`,
		pgUUID(s.ID),
		s.Identifier,
		s.Test,
		s.Description,
		s.Container,
		s.Volume.String(),
		s.VolumeUnits,
		pgTimePtr(s.Collected),
		pgTimePtr(s.Processed),
		pgTimePtr(s.Finalized),
		string(s.Status),
		supplemental,
	); err != nil {
		return gerrors.Wrap(err, "update sample")
	}
	return nil
}

func marshalSupplemental(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		id                                  pgtype.UUID
		clientID                            string
		participantID, categoryID           pgtype.UUID
		status, precancelStatus             string
		version                             int32
		fingerprint, notes                  string
		createdSite, collectedSite, finSite pgtype.UUID
		createdAuthor, collectedAuthor      string
		finalizedAuthor                     string
		createdTime, collectedTime, finTime pgtype.Timestamptz

		amendedSite, cancelledSite, restoredSite       pgtype.UUID
		amendedAuthor, cancelledAuthor, restoredAuthor pgtype.Text
		amendedReason, cancelledReason, restoredReason pgtype.Text
		amendedTime, cancelledTime, restoredTime       pgtype.Timestamptz

		createdAt, updatedAt pgtype.Timestamptz
	)

	if err := row.Scan(
		&id, &clientID, &participantID, &categoryID, &status, &precancelStatus,
		&version, &fingerprint, &notes,
		&createdSite, &createdAuthor, &createdTime,
		&collectedSite, &collectedAuthor, &collectedTime,
		&finSite, &finalizedAuthor, &finTime,
		&amendedSite, &amendedAuthor, &amendedReason, &amendedTime,
		&cancelledSite, &cancelledAuthor, &cancelledReason, &cancelledTime,
		&restoredSite, &restoredAuthor, &restoredReason, &restoredTime,
		&createdAt, &updatedAt,
	); err != nil {
		return order.Order{}, err
	}

	return order.Hydrate(
		fromPgUUID(id),
		clientID,
		fromPgUUID(participantID),
		fromPgUUID(categoryID),
		order.Status(status),
		order.Status(precancelStatus),
		version,
		fingerprint,
		notes,
		order.StageInfo{SiteID: fromPgUUID(createdSite), Author: createdAuthor, Time: fromPgTime(createdTime)},
		order.StageInfo{SiteID: fromPgUUID(collectedSite), Author: collectedAuthor, Time: fromPgTime(collectedTime)},
		order.StageInfo{SiteID: fromPgUUID(finSite), Author: finalizedAuthor, Time: fromPgTime(finTime)},
		scanTransition(amendedSite, amendedAuthor, amendedReason, amendedTime),
		scanTransition(cancelledSite, cancelledAuthor, cancelledReason, cancelledTime),
		scanTransition(restoredSite, restoredAuthor, restoredReason, restoredTime),
		fromPgTime(createdAt),
		fromPgTime(updatedAt),
	), nil
}

func scanTransition(site pgtype.UUID, author, reason pgtype.Text, t pgtype.Timestamptz) *order.TransitionInfo {
	if !author.Valid && !site.Valid && !t.Valid {
		return nil
	}
	return &order.TransitionInfo{
		SiteID: fromPgUUID(site),
		Author: fromPgText(author),
		Reason: fromPgText(reason),
		Time:   fromPgTime(t),
	}
}

func scanSample(row pgx.Row) (order.Sample, error) {
	var (
		id, orderID                   pgtype.UUID
		parentID                      pgtype.UUID
		aliquotID, identifier         string
		test, description, container  string
		volume                        string
		volumeUnits                   string
		collected, processed, final   pgtype.Timestamptz
		status                        string
		supplementalRaw               []byte
	)

	if err := row.Scan(
		&id, &orderID, &parentID, &aliquotID, &identifier, &test, &description,
		&container, &volume, &volumeUnits, &collected, &processed, &final,
		&status, &supplementalRaw,
	); err != nil {
		return order.Sample{}, err
	}

	vol, err := decimal.NewFromString(volume)
	if err != nil {
		return order.Sample{}, gerrors.Wrap(err, "parse sample volume")
	}

	var supplemental map[string]string
	if len(supplementalRaw) > 0 {
		if err := json.Unmarshal(supplementalRaw, &supplemental); err != nil {
			return order.Sample{}, gerrors.Wrap(err, "decode supplemental fields")
		}
	}
	if len(supplemental) == 0 {
		supplemental = nil
	}

	return order.Sample{
		ID:           fromPgUUID(id),
		OrderID:      fromPgUUID(orderID),
		ParentID:     fromPgUUIDPtr(parentID),
		AliquotID:    aliquotID,
		Identifier:   identifier,
		Test:         test,
		Description:  description,
		Container:    container,
		Volume:       vol,
		VolumeUnits:  volumeUnits,
		Collected:    fromPgTimePtr(collected),
		Processed:    fromPgTimePtr(processed),
		Finalized:    fromPgTimePtr(final),
		Status:       order.SampleStatus(status),
		Supplemental: supplemental,
	}, nil
}

func transitionSite(t *order.TransitionInfo) pgtype.UUID {
	if t == nil {
		return pgtype.UUID{}
	}
	return pgZeroableUUID(t.SiteID)
}

func transitionAuthor(t *order.TransitionInfo) pgtype.Text {
	if t == nil {
		return pgtype.Text{}
	}
	return pgNullableText(t.Author)
}

func transitionReason(t *order.TransitionInfo) pgtype.Text {
	if t == nil {
		return pgtype.Text{}
	}
	return pgNullableText(t.Reason)
}

func transitionTime(t *order.TransitionInfo) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgTime(t.Time)
}
