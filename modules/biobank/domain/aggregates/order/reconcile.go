package order

import (
	"fmt"
	"sort"
)

// ChangeSet is the minimal set of row-level changes a reconciliation
// produced. Rows are never deleted; removal is a status transition.
type ChangeSet struct {
	// Root carries the stored root's identity with its content replaced from
	// the submission.
	Root Sample
	// Inserts are submitted aliquots with no stored counterpart.
	Inserts []Sample
	// Updates are stored aliquots whose mutable fields were overwritten from
	// the submission.
	Updates []Sample
	// Cancels are stored aliquots absent from the submission, flagged
	// cancelled with no other field changes.
	Cancels []Sample
}

// Touched returns every sample the change set writes, root first, in
// deterministic order. One ledger entry is appended per touched sample.
func (cs ChangeSet) Touched() []Sample {
	out := make([]Sample, 0, 1+len(cs.Inserts)+len(cs.Updates)+len(cs.Cancels))
	out = append(out, cs.Root)
	out = append(out, cs.Updates...)
	out = append(out, cs.Cancels...)
	out = append(out, cs.Inserts...)
	return out
}

// ValidateAliquotIDs rejects submissions carrying the same aliquot identifier
// twice. Reconciliation behavior is undefined under duplicates, so the caller
// must run this first.
func ValidateAliquotIDs(aliquots []SubmittedAliquot) error {
	seen := make(map[string]struct{}, len(aliquots))
	for _, a := range aliquots {
		if a.AliquotID == "" {
			return fmt.Errorf("aliquot identifier is required")
		}
		if _, dup := seen[a.AliquotID]; dup {
			return fmt.Errorf("duplicate aliquot identifier %q", a.AliquotID)
		}
		seen[a.AliquotID] = struct{}{}
	}
	return nil
}

// Reconcile diffs a submission against the stored sample tree.
//
// The root's scalar fields are always overwritten in place. Submitted aliquot
// identifiers are partitioned against stored ones: only-stored rows are
// cancelled, only-submitted rows are inserted as children of the root, rows
// in both get their mutable fields overwritten. An aliquot updated without an
// explicit status while the stored row was cancelled comes back as restored.
//
// A submission with no aliquots cancels every stored aliquot: an order
// amended to remove all aliquots cancels all of them.
func Reconcile(root Sample, stored []Sample, sub SubmittedRoot, aliquots []SubmittedAliquot) ChangeSet {
	cs := ChangeSet{Root: replaceRootContent(root, sub)}

	storedByID := make(map[string]Sample, len(stored))
	for _, s := range stored {
		storedByID[s.AliquotID] = s
	}
	submittedByID := make(map[string]SubmittedAliquot, len(aliquots))
	for _, a := range aliquots {
		submittedByID[a.AliquotID] = a
	}

	for _, a := range aliquots {
		prev, exists := storedByID[a.AliquotID]
		if !exists {
			cs.Inserts = append(cs.Inserts, NewAliquotSample(root.OrderID, root.ID, a))
			continue
		}
		cs.Updates = append(cs.Updates, updateAliquot(prev, a))
	}

	for _, s := range stored {
		if _, resubmitted := submittedByID[s.AliquotID]; resubmitted {
			continue
		}
		s.Status = SampleStatusCancelled
		cs.Cancels = append(cs.Cancels, s)
	}

	sortSamples(cs.Inserts)
	sortSamples(cs.Updates)
	sortSamples(cs.Cancels)
	return cs
}

// replaceRootContent keeps the stored root's identity and overwrites its
// content; the root is never diffed.
func replaceRootContent(root Sample, sub SubmittedRoot) Sample {
	root.Test = sub.Test
	root.Description = sub.Description
	root.Collected = sub.Collected
	root.Processed = sub.Processed
	root.Finalized = sub.Finalized
	root.Supplemental = sub.Supplemental
	return root
}

// updateAliquot overwrites the stored row's mutable fields from the
// submission. An omitted status revives a previously cancelled row as
// restored; otherwise the stored status is kept.
func updateAliquot(prev Sample, a SubmittedAliquot) Sample {
	prev.Identifier = a.Identifier
	prev.Container = a.Container
	prev.Volume = a.Volume
	prev.VolumeUnits = a.VolumeUnits
	prev.Description = a.Description
	prev.Collected = a.Collected

	switch {
	case a.Status != "":
		prev.Status = a.Status
	case prev.Status == SampleStatusCancelled:
		prev.Status = SampleStatusRestored
	}
	return prev
}

func sortSamples(samples []Sample) {
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].AliquotID < samples[j].AliquotID
	})
}

func sortedAliquots(aliquots []SubmittedAliquot) []SubmittedAliquot {
	out := make([]SubmittedAliquot, len(aliquots))
	copy(out, aliquots)
	sort.Slice(out, func(i, j int) bool {
		return out[i].AliquotID < out[j].AliquotID
	})
	return out
}
