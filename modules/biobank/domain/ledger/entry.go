// Package ledger holds the append-only audit trail of sample state. Entries
// carry full snapshots, not diffs, so history survives any later change to
// the live rows.
package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/order"
)

// Entry is one immutable snapshot of one sample at the moment of a mutation.
// ID is assigned by insertion sequence; consumers must order by it, never by
// wall-clock time.
type Entry struct {
	ID            int64
	SampleID      uuid.UUID
	OrderID       uuid.UUID
	ParticipantID uuid.UUID
	CategoryID    uuid.UUID
	Snapshot      json.RawMessage
	CreatedAt     time.Time
}

// SampleSnapshot is the serialized shape stored in an entry.
type SampleSnapshot struct {
	SampleID     uuid.UUID          `json:"sample_id"`
	OrderID      uuid.UUID          `json:"order_id"`
	ParentID     *uuid.UUID         `json:"parent_id,omitempty"`
	AliquotID    string             `json:"aliquot_id,omitempty"`
	Identifier   string             `json:"identifier,omitempty"`
	Test         string             `json:"test,omitempty"`
	Description  string             `json:"description,omitempty"`
	Container    string             `json:"container,omitempty"`
	Volume       decimal.Decimal    `json:"volume"`
	VolumeUnits  string             `json:"volume_units,omitempty"`
	Collected    *time.Time         `json:"collected,omitempty"`
	Processed    *time.Time         `json:"processed,omitempty"`
	Finalized    *time.Time         `json:"finalized,omitempty"`
	Status       order.SampleStatus `json:"status"`
	Supplemental map[string]string  `json:"supplemental,omitempty"`
}

// NewEntry snapshots a sample's post-mutation state for the given order.
func NewEntry(o order.Order, s order.Sample, now time.Time) (Entry, error) {
	snapshot := SampleSnapshot{
		SampleID:     s.ID,
		OrderID:      s.OrderID,
		ParentID:     s.ParentID,
		AliquotID:    s.AliquotID,
		Identifier:   s.Identifier,
		Test:         s.Test,
		Description:  s.Description,
		Container:    s.Container,
		Volume:       s.Volume,
		VolumeUnits:  s.VolumeUnits,
		Collected:    s.Collected,
		Processed:    s.Processed,
		Finalized:    s.Finalized,
		Status:       s.Status,
		Supplemental: s.Supplemental,
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		SampleID:      s.ID,
		OrderID:       o.ID(),
		ParticipantID: o.ParticipantID(),
		CategoryID:    o.CategoryID(),
		Snapshot:      raw,
		CreatedAt:     now.UTC(),
	}, nil
}

// DecodeSnapshot unmarshals an entry's stored snapshot.
func (e Entry) DecodeSnapshot() (SampleSnapshot, error) {
	var s SampleSnapshot
	if err := json.Unmarshal(e.Snapshot, &s); err != nil {
		return SampleSnapshot{}, err
	}
	return s, nil
}

// Artifact is one generated export file, paired with the checksum of its
// serialized bytes.
type Artifact struct {
	ID         uuid.UUID
	BlobKey    string
	SHA256     string
	EntryCount int
	CreatedAt  time.Time
}
