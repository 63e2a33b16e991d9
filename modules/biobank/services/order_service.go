package services

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/order"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/entities/category"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/ledger"
	"github.com/arcadia-bio/biocore/pkg/composables"
	"github.com/arcadia-bio/biocore/pkg/eventbus"
)

// StageInput attributes one collection stage of a submission.
type StageInput struct {
	SiteID uuid.UUID
	Author string
	Time   time.Time
}

func (s StageInput) toStageInfo() order.StageInfo {
	return order.StageInfo{SiteID: s.SiteID, Author: s.Author, Time: s.Time.UTC()}
}

// TransitionInput attributes an amend, cancel or restore request.
type TransitionInput struct {
	SiteID uuid.UUID
	Author string
	Reason string
	Time   time.Time
}

func (t TransitionInput) toTransitionInfo() order.TransitionInfo {
	return order.TransitionInfo{SiteID: t.SiteID, Author: t.Author, Reason: t.Reason, Time: t.Time.UTC()}
}

// OrderSubmission is the full content of a create or amend request: header
// fields plus the entire specimen tree. Amendments always carry the whole
// tree; the reconciler diffs it against storage.
type OrderSubmission struct {
	ClientID      string
	ParticipantID uuid.UUID
	CategoryID    uuid.UUID
	Notes         string

	Created   StageInput
	Collected StageInput
	Finalized StageInput

	Root     order.SubmittedRoot
	Aliquots []order.SubmittedAliquot
}

// MutationResult is the post-mutation state of an order. Idempotent is true
// when a create request replayed an identical prior submission and nothing
// was written.
type MutationResult struct {
	Order      order.Order
	Samples    []order.Sample
	Idempotent bool
}

type OrderService struct {
	orders     order.Repository
	ledger     ledger.Repository
	categories category.Repository
	validator  *ReferenceValidator
	summaries  *SummaryUpdater
	publisher  eventbus.EventBus
	log        *logrus.Logger

	// kitPrefix seeds generated root specimen identifiers.
	kitPrefix string
	now       func() time.Time
}

func NewOrderService(
	orders order.Repository,
	ledgerRepo ledger.Repository,
	categories category.Repository,
	validator *ReferenceValidator,
	summaries *SummaryUpdater,
	publisher eventbus.EventBus,
	log *logrus.Logger,
	kitPrefix string,
) *OrderService {
	return &OrderService{
		orders:     orders,
		ledger:     ledgerRepo,
		categories: categories,
		validator:  validator,
		summaries:  summaries,
		publisher:  publisher,
		log:        log,
		kitPrefix:  kitPrefix,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Get loads an order with its sample tree. Runs on the pool when no
// transaction is in flight.
func (s *OrderService) Get(ctx context.Context, clientID string) (*MutationResult, error) {
	o, samples, err := s.orders.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &MutationResult{Order: o, Samples: samples}, nil
}

// Create registers a new order with its specimen tree, or replays an
// identical earlier submission without writing anything. A resubmission of
// the same client identifier with different content is a conflict.
func (s *OrderService) Create(ctx context.Context, sub OrderSubmission) (*MutationResult, error) {
	sub.ClientID = strings.TrimSpace(sub.ClientID)
	if sub.ClientID == "" {
		return nil, newServiceError(http.StatusBadRequest, "BIOBANK_NO_CLIENT_ID", "order identifier is required", nil)
	}
	if err := order.ValidateAliquotIDs(sub.Aliquots); err != nil {
		return nil, newServiceError(http.StatusBadRequest, "BIOBANK_BAD_ALIQUOTS", err.Error(), err)
	}

	now := s.now()
	res, err := composables.InTxResult(ctx, func(txCtx context.Context) (*MutationResult, error) {
		cat, err := s.validator.ValidateOrderRefs(txCtx, sub.ParticipantID, sub.CategoryID, SiteRefs{
			Created:   sub.Created.SiteID,
			Collected: sub.Collected.SiteID,
			Finalized: sub.Finalized.SiteID,
		})
		if err != nil {
			return nil, err
		}

		o := order.New(sub.ClientID, sub.ParticipantID, sub.CategoryID, sub.Notes,
			sub.Created.toStageInfo(), sub.Collected.toStageInfo(), sub.Finalized.toStageInfo(), now)
		o = o.WithFingerprint(order.ComputeFingerprint(o, sub.Root, sub.Aliquots))

		existing, samples, err := s.orders.GetByClientID(txCtx, sub.ClientID)
		if err == nil {
			if existing.Fingerprint() == o.Fingerprint() {
				return &MutationResult{Order: existing, Samples: samples, Idempotent: true}, nil
			}
			return nil, newServiceError(http.StatusConflict, "BIOBANK_ORDER_EXISTS",
				"order identifier already exists with different content", nil)
		}
		if !errors.Is(err, order.ErrNotFound) {
			return nil, err
		}

		root := order.NewRootSample(o.ID(), sub.Root)
		// Only specimen codes carrying the designated prefix get a kit
		// identifier; other collections ship without one.
		if s.kitPrefix != "" && strings.HasPrefix(root.Test, s.kitPrefix) {
			root.Identifier = kitIdentifier(s.kitPrefix, root.ID)
		}
		tree := make([]order.Sample, 0, 1+len(sub.Aliquots))
		tree = append(tree, root)
		for _, a := range sub.Aliquots {
			tree = append(tree, order.NewAliquotSample(o.ID(), root.ID, a))
		}

		if err := s.orders.Create(txCtx, o, tree); err != nil {
			return nil, err
		}
		if err := s.appendLedger(txCtx, o, tree, now); err != nil {
			return nil, err
		}
		if err := s.summaries.Apply(txCtx, o, cat.Kind(), now); err != nil {
			return nil, err
		}
		return &MutationResult{Order: o, Samples: tree}, nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	if res.Idempotent {
		s.log.WithField("client_id", res.Order.ClientID()).Info("order create replayed, no changes")
		return res, nil
	}

	recordMutation("create")
	s.log.WithFields(logrus.Fields{
		"client_id": res.Order.ClientID(),
		"order_id":  res.Order.ID(),
		"samples":   len(res.Samples),
	}).Info("order created")
	s.publisher.Publish(order.CreatedEvent{
		OrderID:       res.Order.ID(),
		ClientID:      res.Order.ClientID(),
		ParticipantID: res.Order.ParticipantID(),
		OccurredAt:    now,
	})
	return res, nil
}

// Amend overwrites an order's content from a full resubmission and
// reconciles the aliquot tree. The caller supplies the version it read.
func (s *OrderService) Amend(ctx context.Context, clientID string, expectedVersion int32, sub OrderSubmission, by TransitionInput) (*MutationResult, error) {
	if err := order.ValidateAliquotIDs(sub.Aliquots); err != nil {
		return nil, newServiceError(http.StatusBadRequest, "BIOBANK_BAD_ALIQUOTS", err.Error(), err)
	}

	now := s.now()
	res, err := composables.InTxResult(ctx, func(txCtx context.Context) (*MutationResult, error) {
		existing, samples, err := s.orders.GetByClientID(txCtx, clientID)
		if err != nil {
			return nil, err
		}
		if existing.Version() != expectedVersion {
			return nil, order.ErrVersionMismatch{Supplied: expectedVersion, Stored: existing.Version()}
		}

		cat, err := s.validator.ValidateOrderRefs(txCtx, existing.ParticipantID(), existing.CategoryID(), SiteRefs{
			Created:    sub.Created.SiteID,
			Collected:  sub.Collected.SiteID,
			Finalized:  sub.Finalized.SiteID,
			Transition: by.SiteID,
		})
		if err != nil {
			return nil, err
		}

		root, aliquots, err := splitTree(samples)
		if err != nil {
			return nil, err
		}

		amended, err := existing.
			ReplaceContent(sub.Notes, sub.Created.toStageInfo(), sub.Collected.toStageInfo(), sub.Finalized.toStageInfo()).
			ApplyAmend(by.toTransitionInfo())
		if err != nil {
			return nil, err
		}
		amended = amended.WithFingerprint(order.ComputeFingerprint(amended, sub.Root, sub.Aliquots))

		cs := order.Reconcile(root, aliquots, sub.Root, sub.Aliquots)

		if err := s.orders.UpdateHeader(txCtx, amended, expectedVersion); err != nil {
			return nil, err
		}
		if err := s.orders.ApplyChangeSet(txCtx, cs); err != nil {
			return nil, err
		}
		if err := s.appendLedger(txCtx, amended, cs.Touched(), now); err != nil {
			return nil, err
		}
		if err := s.summaries.Apply(txCtx, amended, cat.Kind(), now); err != nil {
			return nil, err
		}

		tree, err := s.orders.ListSamples(txCtx, amended.ID())
		if err != nil {
			return nil, err
		}
		return &MutationResult{Order: amended, Samples: tree}, nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	recordMutation("amend")
	s.log.WithFields(logrus.Fields{
		"client_id": res.Order.ClientID(),
		"version":   res.Order.Version(),
	}).Info("order amended")
	s.publisher.Publish(order.AmendedEvent{
		OrderID:       res.Order.ID(),
		ClientID:      res.Order.ClientID(),
		ParticipantID: res.Order.ParticipantID(),
		Version:       res.Order.Version(),
		OccurredAt:    now,
	})
	return res, nil
}

// Cancel marks an order and all its samples cancelled. The rows stay in
// place; nothing is ever deleted.
func (s *OrderService) Cancel(ctx context.Context, clientID string, expectedVersion int32, by TransitionInput) (*MutationResult, error) {
	if err := validateAttribution(by); err != nil {
		return nil, err
	}
	now := s.now()
	res, err := s.transition(ctx, clientID, expectedVersion, now,
		func(o order.Order) (order.Order, order.SampleStatus, error) {
			cancelled, err := o.ApplyCancel(by.toTransitionInfo())
			return cancelled, order.SampleStatusCancelled, err
		})
	if err != nil {
		return nil, err
	}

	recordMutation("cancel")
	s.log.WithFields(logrus.Fields{
		"client_id": res.Order.ClientID(),
		"reason":    by.Reason,
	}).Info("order cancelled")
	s.publisher.Publish(order.CancelledEvent{
		OrderID:       res.Order.ID(),
		ClientID:      res.Order.ClientID(),
		ParticipantID: res.Order.ParticipantID(),
		Reason:        by.Reason,
		OccurredAt:    now,
	})
	return res, nil
}

// Restore returns a cancelled order to its pre-cancellation status. The
// finalized time and the per-sample statuses are recovered from the ledger,
// not taken from the request.
func (s *OrderService) Restore(ctx context.Context, clientID string, expectedVersion int32, by TransitionInput) (*MutationResult, error) {
	if err := validateAttribution(by); err != nil {
		return nil, err
	}
	now := s.now()
	out, err := composables.InTxResult(ctx, func(txCtx context.Context) (*MutationResult, error) {
		existing, _, err := s.orders.GetByClientID(txCtx, clientID)
		if err != nil {
			return nil, err
		}
		if existing.Version() != expectedVersion {
			return nil, order.ErrVersionMismatch{Supplied: expectedVersion, Stored: existing.Version()}
		}

		var finalized order.StageInfo
		if t, ok, err := s.ledger.LatestActiveFinalized(txCtx, existing.ID()); err != nil {
			return nil, err
		} else if ok {
			finalized = order.StageInfo{Time: t}
		}

		restored, err := existing.ApplyRestore(by.toTransitionInfo(), finalized)
		if err != nil {
			return nil, err
		}

		if err := s.orders.UpdateHeader(txCtx, restored, expectedVersion); err != nil {
			return nil, err
		}

		// Each sample returns to its own pre-cancellation status, so an
		// aliquot cancelled by an earlier amendment stays cancelled.
		statuses, err := s.ledger.PrecancelStatuses(txCtx, restored.ID())
		if err != nil {
			return nil, err
		}
		samples, err := s.orders.SetSampleStatuses(txCtx, restored.ID(), statuses)
		if err != nil {
			return nil, err
		}
		if err := s.appendLedger(txCtx, restored, samples, now); err != nil {
			return nil, err
		}

		cat, err := s.categories.GetByID(txCtx, restored.CategoryID())
		if err != nil {
			return nil, err
		}
		if err := s.summaries.Apply(txCtx, restored, cat.Kind(), now); err != nil {
			return nil, err
		}
		return &MutationResult{Order: restored, Samples: samples}, nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	recordMutation("restore")
	s.log.WithFields(logrus.Fields{
		"client_id": out.Order.ClientID(),
		"status":    out.Order.Status(),
	}).Info("order restored")
	s.publisher.Publish(order.RestoredEvent{
		OrderID:       out.Order.ID(),
		ClientID:      out.Order.ClientID(),
		ParticipantID: out.Order.ParticipantID(),
		Reason:        by.Reason,
		OccurredAt:    now,
	})
	return out, nil
}

// validateAttribution rejects a cancel or restore request missing any of the
// required attribution fields, naming the offending field.
func validateAttribution(by TransitionInput) error {
	switch {
	case strings.TrimSpace(by.Author) == "":
		return newServiceError(http.StatusBadRequest, "BIOBANK_NO_AUTHOR", "author is required", nil)
	case by.SiteID == uuid.Nil:
		return newServiceError(http.StatusBadRequest, "BIOBANK_NO_SITE", "site_id is required", nil)
	case strings.TrimSpace(by.Reason) == "":
		return newServiceError(http.StatusBadRequest, "BIOBANK_NO_REASON", "reason is required", nil)
	}
	return nil
}

// transition runs a whole-order status change: header update, bulk sample
// status flag, ledger append and summary refresh in one transaction.
func (s *OrderService) transition(
	ctx context.Context,
	clientID string,
	expectedVersion int32,
	now time.Time,
	apply func(order.Order) (order.Order, order.SampleStatus, error),
) (*MutationResult, error) {
	res, err := composables.InTxResult(ctx, func(txCtx context.Context) (*MutationResult, error) {
		existing, _, err := s.orders.GetByClientID(txCtx, clientID)
		if err != nil {
			return nil, err
		}
		if existing.Version() != expectedVersion {
			return nil, order.ErrVersionMismatch{Supplied: expectedVersion, Stored: existing.Version()}
		}

		next, sampleStatus, err := apply(existing)
		if err != nil {
			return nil, err
		}

		if err := s.orders.UpdateHeader(txCtx, next, expectedVersion); err != nil {
			return nil, err
		}
		samples, err := s.orders.SetSamplesStatus(txCtx, next.ID(), sampleStatus)
		if err != nil {
			return nil, err
		}
		if err := s.appendLedger(txCtx, next, samples, now); err != nil {
			return nil, err
		}

		cat, err := s.categories.GetByID(txCtx, next.CategoryID())
		if err != nil {
			return nil, err
		}
		if err := s.summaries.Apply(txCtx, next, cat.Kind(), now); err != nil {
			return nil, err
		}
		return &MutationResult{Order: next, Samples: samples}, nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return res, nil
}

// appendLedger snapshots every touched sample into the audit trail within
// the caller's transaction.
func (s *OrderService) appendLedger(ctx context.Context, o order.Order, samples []order.Sample, now time.Time) error {
	entries := make([]ledger.Entry, 0, len(samples))
	for _, sample := range samples {
		e, err := ledger.NewEntry(o, sample, now)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	if err := s.ledger.Append(ctx, entries); err != nil {
		return err
	}
	ledgerEntries.Add(float64(len(entries)))
	return nil
}

// splitTree separates the root specimen from its aliquots.
func splitTree(samples []order.Sample) (order.Sample, []order.Sample, error) {
	var (
		root     order.Sample
		found    bool
		aliquots []order.Sample
	)
	for _, s := range samples {
		if s.IsRoot() {
			root = s
			found = true
			continue
		}
		aliquots = append(aliquots, s)
	}
	if !found {
		return order.Sample{}, nil, order.ErrNoRootSample
	}
	return root, aliquots, nil
}

// kitIdentifier derives a stable specimen identifier from the sample's id.
func kitIdentifier(prefix string, id uuid.UUID) string {
	raw := hex.EncodeToString(id[:])
	return prefix + "-" + strings.ToUpper(raw[:12])
}
