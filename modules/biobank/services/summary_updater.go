package services

import (
	"context"
	"net/http"
	"time"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/order"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/participant"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/entities/category"
)

// summaryHandler applies one category kind's fields onto the summary from
// the participant's current order state.
type summaryHandler func(ctx context.Context, u *SummaryUpdater, s *participant.Summary) error

// SummaryUpdater propagates order-level facts onto the per-participant
// summary aggregate. It always runs inside the order mutation's transaction,
// so the summary can never disagree with the orders it is derived from.
//
// All derived fields are recomputed from current state rather than adjusted
// incrementally. That makes cancel and restore exactly symmetric: restoring
// an order recomputes the same state cancelling it did.
type SummaryUpdater struct {
	participants participant.Repository
	// minGap is the smallest interval between finalized times for two
	// orders to count as separate visits.
	minGap   time.Duration
	handlers map[category.Kind]summaryHandler
}

func NewSummaryUpdater(participants participant.Repository, minGap time.Duration) *SummaryUpdater {
	return &SummaryUpdater{
		participants: participants,
		minGap:       minGap,
		handlers: map[category.Kind]summaryHandler{
			category.KindBiospecimen:         applyBiospecimen,
			category.KindPhysicalMeasurement: applyMeasurement,
		},
	}
}

// Apply refreshes the participant's summary after a mutation of the given
// order's kind. An unknown kind is rejected rather than silently skipped.
func (u *SummaryUpdater) Apply(ctx context.Context, o order.Order, kind category.Kind, now time.Time) error {
	handler, ok := u.handlers[kind]
	if !ok {
		return newServiceError(http.StatusUnprocessableEntity, "BIOBANK_UNKNOWN_KIND", "unhandled category kind "+string(kind), nil)
	}

	summary, err := u.participants.GetSummary(ctx, o.ParticipantID())
	if err != nil {
		return err
	}

	records, err := u.participants.ListVisitRecords(ctx, o.ParticipantID())
	if err != nil {
		return err
	}
	summary.DistinctVisits = countDistinctVisits(records, u.minGap)

	if err := handler(ctx, u, &summary); err != nil {
		return err
	}

	summary.UpdatedAt = now.UTC()
	return u.participants.SaveSummary(ctx, summary)
}

// countDistinctVisits clusters finalized times of non-cancelled orders:
// a visit starts a new cluster when it is at least minGap after the last
// counted one. Records arrive sorted by finalized time.
func countDistinctVisits(records []participant.VisitRecord, minGap time.Duration) int32 {
	var (
		count   int32
		counted bool
		last    time.Time
	)
	for _, r := range records {
		if r.Cancelled {
			continue
		}
		if !counted || r.FinalizedAt.Sub(last) >= minGap {
			count++
			counted = true
			last = r.FinalizedAt
		}
	}
	return count
}

func applyBiospecimen(ctx context.Context, u *SummaryUpdater, s *participant.Summary) error {
	attr, ok, err := u.participants.LatestAttribution(ctx, s.ParticipantID, string(category.KindBiospecimen))
	if err != nil {
		return err
	}
	if !ok {
		s.BiospecimenCollected = false
		s.BiospecimenSiteID = nil
		s.BiospecimenTime = nil
		return nil
	}
	s.BiospecimenCollected = true
	s.BiospecimenSiteID = attr.SiteID
	s.BiospecimenTime = attr.Time
	return nil
}

func applyMeasurement(ctx context.Context, u *SummaryUpdater, s *participant.Summary) error {
	attr, ok, err := u.participants.LatestAttribution(ctx, s.ParticipantID, string(category.KindPhysicalMeasurement))
	if err != nil {
		return err
	}
	if !ok {
		s.MeasurementCompleted = false
		s.MeasurementSiteID = nil
		s.MeasurementTime = nil
		return nil
	}
	s.MeasurementCompleted = true
	s.MeasurementSiteID = attr.SiteID
	s.MeasurementTime = attr.Time
	return nil
}
