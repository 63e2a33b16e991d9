package mappers

import (
	"github.com/google/uuid"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/order"
	"github.com/arcadia-bio/biocore/modules/biobank/presentation/viewmodels"
)

func OrderToView(o order.Order, samples []order.Sample) viewmodels.Order {
	out := viewmodels.Order{
		ClientID:      o.ClientID(),
		ParticipantID: o.ParticipantID().String(),
		CategoryID:    o.CategoryID().String(),
		Status:        string(o.Status()),
		Version:       o.Version(),
		Notes:         o.Notes(),
		Created:       stageToView(o.Created()),
		Collected:     stageToView(o.Collected()),
		Finalized:     stageToView(o.Finalized()),
		Amended:       transitionToView(o.Amended()),
		Cancelled:     transitionToView(o.Cancelled()),
		Restored:      transitionToView(o.Restored()),
		Samples:       make([]viewmodels.Sample, 0, len(samples)),
		CreatedAt:     o.CreatedAt(),
		UpdatedAt:     o.UpdatedAt(),
	}
	for _, s := range samples {
		out.Samples = append(out.Samples, SampleToView(s))
	}
	return out
}

func SampleToView(s order.Sample) viewmodels.Sample {
	parent := ""
	if s.ParentID != nil {
		parent = s.ParentID.String()
	}
	return viewmodels.Sample{
		SampleID:     s.ID.String(),
		ParentID:     parent,
		AliquotID:    s.AliquotID,
		Identifier:   s.Identifier,
		Test:         s.Test,
		Description:  s.Description,
		Container:    s.Container,
		Volume:       s.Volume.String(),
		VolumeUnits:  s.VolumeUnits,
		Collected:    s.Collected,
		Processed:    s.Processed,
		Finalized:    s.Finalized,
		Status:       string(s.Status),
		Supplemental: s.Supplemental,
	}
}

func stageToView(s order.StageInfo) viewmodels.Stage {
	out := viewmodels.Stage{Author: s.Author}
	if s.SiteID != uuid.Nil {
		out.SiteID = s.SiteID.String()
	}
	if !s.Time.IsZero() {
		t := s.Time
		out.Time = &t
	}
	return out
}

func transitionToView(t *order.TransitionInfo) *viewmodels.Transition {
	if t == nil {
		return nil
	}
	out := &viewmodels.Transition{
		Author: t.Author,
		Reason: t.Reason,
		Time:   t.Time,
	}
	if t.SiteID != uuid.Nil {
		out.SiteID = t.SiteID.String()
	}
	return out
}
