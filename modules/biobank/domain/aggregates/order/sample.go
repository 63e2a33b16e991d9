package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SampleStatus string

const (
	SampleStatusActive    SampleStatus = "active"
	SampleStatusCancelled SampleStatus = "cancelled"
	SampleStatusRestored  SampleStatus = "restored"
)

// Sample is one node of the specimen tree: the root tube for an order, or an
// aliquot drawn from it. Aliquots reference the root through ParentID.
// Cancelled samples are never removed, only flagged.
type Sample struct {
	ID       uuid.UUID
	OrderID  uuid.UUID
	ParentID *uuid.UUID
	// AliquotID is the client-supplied aliquot identifier; empty for the root.
	AliquotID   string
	Identifier  string
	Test        string
	Description string
	Container   string
	Volume      decimal.Decimal
	VolumeUnits string
	Collected   *time.Time
	Processed   *time.Time
	Finalized   *time.Time
	Status      SampleStatus
	// Supplemental carries type-specific fields that vary by specimen kind.
	Supplemental map[string]string
}

func (s Sample) IsRoot() bool { return s.ParentID == nil }

// SubmittedRoot describes the root sample content of a submission. The root
// is never diffed by identity; its content always replaces the stored root.
type SubmittedRoot struct {
	Test         string            `json:"test"`
	Description  string            `json:"description"`
	Collected    *time.Time        `json:"collected,omitempty"`
	Processed    *time.Time        `json:"processed,omitempty"`
	Finalized    *time.Time        `json:"finalized,omitempty"`
	Supplemental map[string]string `json:"supplemental,omitempty"`
}

// SubmittedAliquot describes one aliquot of a submission. Status may be empty
// when the client does not send one.
type SubmittedAliquot struct {
	AliquotID   string          `json:"aliquot_id"`
	Identifier  string          `json:"identifier"`
	Container   string          `json:"container"`
	Volume      decimal.Decimal `json:"volume"`
	VolumeUnits string          `json:"volume_units"`
	Description string          `json:"description"`
	Collected   *time.Time      `json:"collected,omitempty"`
	Status      SampleStatus    `json:"status,omitempty"`
}

// NewRootSample builds the root specimen for a new order.
func NewRootSample(orderID uuid.UUID, sub SubmittedRoot) Sample {
	return Sample{
		ID:           uuid.New(),
		OrderID:      orderID,
		Test:         sub.Test,
		Description:  sub.Description,
		Collected:    sub.Collected,
		Processed:    sub.Processed,
		Finalized:    sub.Finalized,
		Status:       SampleStatusActive,
		Supplemental: sub.Supplemental,
	}
}

// NewAliquotSample builds a child sample under the given root.
func NewAliquotSample(orderID, rootID uuid.UUID, sub SubmittedAliquot) Sample {
	status := sub.Status
	if status == "" {
		status = SampleStatusActive
	}
	parent := rootID
	return Sample{
		ID:          uuid.New(),
		OrderID:     orderID,
		ParentID:    &parent,
		AliquotID:   sub.AliquotID,
		Identifier:  sub.Identifier,
		Container:   sub.Container,
		Volume:      sub.Volume,
		VolumeUnits: sub.VolumeUnits,
		Description: sub.Description,
		Collected:   sub.Collected,
		Status:      status,
	}
}
