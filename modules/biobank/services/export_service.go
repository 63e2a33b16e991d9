package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/arcadia-bio/biocore/internal/blob"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/order"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/entities/category"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/ledger"
	"github.com/arcadia-bio/biocore/pkg/composables"
)

// shipmentKey groups ledger entries into one export artifact.
type shipmentKey struct {
	Destination   string
	Module        string
	ParticipantID uuid.UUID
}

type exportOrder struct {
	ClientID string         `json:"client_id"`
	Status   order.Status   `json:"status"`
	Version  int32          `json:"version"`
	Samples  []exportSample `json:"samples"`
}

type exportSample struct {
	SampleID     uuid.UUID          `json:"sample_id"`
	ParentID     *uuid.UUID         `json:"parent_id,omitempty"`
	AliquotID    string             `json:"aliquot_id,omitempty"`
	Identifier   string             `json:"identifier,omitempty"`
	Test         string             `json:"test,omitempty"`
	Container    string             `json:"container,omitempty"`
	Volume       string             `json:"volume"`
	VolumeUnits  string             `json:"volume_units,omitempty"`
	Collected    *time.Time         `json:"collected,omitempty"`
	Processed    *time.Time         `json:"processed,omitempty"`
	Finalized    *time.Time         `json:"finalized,omitempty"`
	Status       order.SampleStatus `json:"status"`
	Supplemental map[string]string  `json:"supplemental,omitempty"`
}

type exportPayload struct {
	Destination   string        `json:"destination"`
	Module        string        `json:"module"`
	ParticipantID uuid.UUID     `json:"participant_id"`
	GeneratedAt   time.Time     `json:"generated_at"`
	EntryIDs      []int64       `json:"entry_ids"`
	Orders        []exportOrder `json:"orders"`
}

// ExportReport summarizes one gatekeeper run.
type ExportReport struct {
	Artifacts []ledger.Artifact
	Entries   int
}

// ExportService is the batch gatekeeper: it ships every ledger entry with no
// export reference, grouped by shipment unit, and records the references so
// the entries are not shipped again.
//
// The artifact write and the reference insert are not one atomic unit. A
// crash between them re-exports the same entries on the next run, so
// consumers deduplicate by sample id and artifact checksum.
type ExportService struct {
	ledger     ledger.Repository
	orders     order.Repository
	categories category.Repository
	store      blob.Store
	log        *logrus.Logger

	destination string
	now         func() time.Time
}

func NewExportService(
	ledgerRepo ledger.Repository,
	orders order.Repository,
	categories category.Repository,
	store blob.Store,
	log *logrus.Logger,
	destination string,
) *ExportService {
	return &ExportService{
		ledger:      ledgerRepo,
		orders:      orders,
		categories:  categories,
		store:       store,
		log:         log,
		destination: destination,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run selects unexported entries, writes one artifact per shipment group and
// links the entries to it. Groups are processed independently: a failure in
// one group stops the run but leaves completed groups exported.
func (s *ExportService) Run(ctx context.Context) (*ExportReport, error) {
	entries, err := s.ledger.ListUnexported(ctx)
	if err != nil {
		exportBatches.WithLabelValues("failure").Inc()
		return nil, err
	}
	if len(entries) == 0 {
		exportBatches.WithLabelValues("empty").Inc()
		return &ExportReport{}, nil
	}

	groups, keys, err := s.groupEntries(ctx, entries)
	if err != nil {
		exportBatches.WithLabelValues("failure").Inc()
		return nil, err
	}

	report := &ExportReport{}
	for _, key := range keys {
		artifact, n, err := s.exportGroup(ctx, key, groups[key])
		if err != nil {
			exportBatches.WithLabelValues("failure").Inc()
			return report, gerrors.Wrapf(err, "export group %s/%s/%s", key.Destination, key.Module, key.ParticipantID)
		}
		report.Artifacts = append(report.Artifacts, artifact)
		report.Entries += n
	}

	exportBatches.WithLabelValues("success").Inc()
	s.log.WithFields(logrus.Fields{
		"artifacts": len(report.Artifacts),
		"entries":   report.Entries,
	}).Info("export batch complete")
	return report, nil
}

// groupEntries partitions entries by shipment key, returning keys in a
// deterministic order.
func (s *ExportService) groupEntries(ctx context.Context, entries []ledger.Entry) (map[shipmentKey][]ledger.Entry, []shipmentKey, error) {
	modules := make(map[uuid.UUID]string)
	groups := make(map[shipmentKey][]ledger.Entry)

	for _, e := range entries {
		module, ok := modules[e.CategoryID]
		if !ok {
			cat, err := s.categories.GetByID(ctx, e.CategoryID)
			if err != nil {
				return nil, nil, gerrors.Wrap(err, "resolve entry category")
			}
			module = cat.Module()
			modules[e.CategoryID] = module
		}
		key := shipmentKey{
			Destination:   s.destination,
			Module:        module,
			ParticipantID: e.ParticipantID,
		}
		groups[key] = append(groups[key], e)
	}

	keys := make([]shipmentKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Module != keys[j].Module {
			return keys[i].Module < keys[j].Module
		}
		return keys[i].ParticipantID.String() < keys[j].ParticipantID.String()
	})
	return groups, keys, nil
}

// exportGroup builds the payload from the current sample trees, writes the
// artifact and then links the entries inside one transaction. The blob write
// deliberately happens before the transaction.
func (s *ExportService) exportGroup(ctx context.Context, key shipmentKey, entries []ledger.Entry) (ledger.Artifact, int, error) {
	now := s.now()
	payload := exportPayload{
		Destination:   key.Destination,
		Module:        key.Module,
		ParticipantID: key.ParticipantID,
		GeneratedAt:   now,
	}

	orderIDs := make([]uuid.UUID, 0, len(entries))
	seen := make(map[uuid.UUID]struct{}, len(entries))
	for _, e := range entries {
		payload.EntryIDs = append(payload.EntryIDs, e.ID)
		if _, done := seen[e.OrderID]; done {
			continue
		}
		seen[e.OrderID] = struct{}{}
		orderIDs = append(orderIDs, e.OrderID)
	}

	for _, orderID := range orderIDs {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return ledger.Artifact{}, 0, err
		}
		samples, err := s.orders.ListSamples(ctx, orderID)
		if err != nil {
			return ledger.Artifact{}, 0, err
		}
		payload.Orders = append(payload.Orders, toExportOrder(o, samples))
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return ledger.Artifact{}, 0, err
	}

	artifactID := uuid.New()
	blobKey := fmt.Sprintf("exports/%s/%s/%s.json", key.Destination, now.Format("20060102T150405Z"), artifactID)
	info, err := s.store.Put(ctx, blobKey, bytes.NewReader(raw))
	if err != nil {
		return ledger.Artifact{}, 0, gerrors.Wrap(err, "write export artifact")
	}

	artifact := ledger.Artifact{
		ID:         artifactID,
		BlobKey:    info.Key,
		SHA256:     info.SHA256,
		EntryCount: len(entries),
		CreatedAt:  now,
	}

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.InsertArtifact(txCtx, artifact); err != nil {
			return err
		}
		return s.ledger.LinkExport(txCtx, artifactID, payload.EntryIDs)
	})
	if err != nil {
		return ledger.Artifact{}, 0, err
	}

	exportedEntries.Add(float64(len(entries)))
	return artifact, len(entries), nil
}

func toExportOrder(o order.Order, samples []order.Sample) exportOrder {
	out := exportOrder{
		ClientID: o.ClientID(),
		Status:   o.Status(),
		Version:  o.Version(),
		Samples:  make([]exportSample, 0, len(samples)),
	}
	for _, s := range samples {
		out.Samples = append(out.Samples, exportSample{
			SampleID:     s.ID,
			ParentID:     s.ParentID,
			AliquotID:    s.AliquotID,
			Identifier:   s.Identifier,
			Test:         s.Test,
			Container:    s.Container,
			Volume:       s.Volume.String(),
			VolumeUnits:  s.VolumeUnits,
			Collected:    s.Collected,
			Processed:    s.Processed,
			Finalized:    s.Finalized,
			Status:       s.Status,
			Supplemental: s.Supplemental,
		})
	}
	return out
}
