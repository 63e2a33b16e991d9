package order

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedTree(t *testing.T, aliquotIDs ...string) (Sample, []Sample) {
	t.Helper()
	orderID := uuid.New()
	root := Sample{
		ID:      uuid.New(),
		OrderID: orderID,
		Test:    "saliva",
		Status:  SampleStatusActive,
	}
	aliquots := make([]Sample, 0, len(aliquotIDs))
	for _, id := range aliquotIDs {
		parent := root.ID
		aliquots = append(aliquots, Sample{
			ID:        uuid.New(),
			OrderID:   orderID,
			ParentID:  &parent,
			AliquotID: id,
			Container: "cryovial",
			Volume:    decimal.NewFromInt(2),
			Status:    SampleStatusActive,
		})
	}
	return root, aliquots
}

func TestReconcile_Partition(t *testing.T) {
	root, stored := storedTree(t, "A1", "A2", "A3")

	sub := SubmittedRoot{Test: "saliva-v2"}
	submitted := []SubmittedAliquot{
		{AliquotID: "A2", Container: "tube", Volume: decimal.NewFromInt(1)},
		{AliquotID: "A4", Container: "cryovial", Volume: decimal.NewFromInt(3)},
	}

	cs := Reconcile(root, stored, sub, submitted)

	require.Len(t, cs.Inserts, 1)
	assert.Equal(t, "A4", cs.Inserts[0].AliquotID)
	require.NotNil(t, cs.Inserts[0].ParentID)
	assert.Equal(t, root.ID, *cs.Inserts[0].ParentID)

	require.Len(t, cs.Updates, 1)
	assert.Equal(t, "A2", cs.Updates[0].AliquotID)
	assert.Equal(t, "tube", cs.Updates[0].Container)
	assert.Equal(t, stored[1].ID, cs.Updates[0].ID, "update keeps the stored row identity")

	require.Len(t, cs.Cancels, 2)
	assert.Equal(t, "A1", cs.Cancels[0].AliquotID)
	assert.Equal(t, "A3", cs.Cancels[1].AliquotID)
	for _, c := range cs.Cancels {
		assert.Equal(t, SampleStatusCancelled, c.Status)
	}

	assert.Equal(t, "saliva-v2", cs.Root.Test)
	assert.Equal(t, root.ID, cs.Root.ID, "root identity is never replaced")
}

func TestReconcile_EmptySubmissionCancelsAll(t *testing.T) {
	root, stored := storedTree(t, "A1", "A2")

	cs := Reconcile(root, stored, SubmittedRoot{Test: "saliva"}, nil)

	assert.Empty(t, cs.Inserts)
	assert.Empty(t, cs.Updates)
	require.Len(t, cs.Cancels, 2)
	for _, c := range cs.Cancels {
		assert.Equal(t, SampleStatusCancelled, c.Status)
	}
}

func TestReconcile_OmittedStatusRevivesCancelledRow(t *testing.T) {
	root, stored := storedTree(t, "A1")
	stored[0].Status = SampleStatusCancelled

	cs := Reconcile(root, stored, SubmittedRoot{}, []SubmittedAliquot{
		{AliquotID: "A1", Container: "tube"},
	})

	require.Len(t, cs.Updates, 1)
	assert.Equal(t, SampleStatusRestored, cs.Updates[0].Status)
}

func TestReconcile_ExplicitStatusWins(t *testing.T) {
	root, stored := storedTree(t, "A1")
	stored[0].Status = SampleStatusCancelled

	cs := Reconcile(root, stored, SubmittedRoot{}, []SubmittedAliquot{
		{AliquotID: "A1", Status: SampleStatusCancelled},
	})

	require.Len(t, cs.Updates, 1)
	assert.Equal(t, SampleStatusCancelled, cs.Updates[0].Status)
}

func TestReconcile_ActiveStatusKeptWhenOmitted(t *testing.T) {
	root, stored := storedTree(t, "A1")

	cs := Reconcile(root, stored, SubmittedRoot{}, []SubmittedAliquot{
		{AliquotID: "A1"},
	})

	require.Len(t, cs.Updates, 1)
	assert.Equal(t, SampleStatusActive, cs.Updates[0].Status)
}

func TestValidateAliquotIDs(t *testing.T) {
	require.NoError(t, ValidateAliquotIDs([]SubmittedAliquot{
		{AliquotID: "A1"}, {AliquotID: "A2"},
	}))

	err := ValidateAliquotIDs([]SubmittedAliquot{
		{AliquotID: "A1"}, {AliquotID: "A1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	err = ValidateAliquotIDs([]SubmittedAliquot{{AliquotID: ""}})
	require.Error(t, err)
}

func TestChangeSetTouched_RootFirst(t *testing.T) {
	root, stored := storedTree(t, "A1", "A2")

	cs := Reconcile(root, stored, SubmittedRoot{}, []SubmittedAliquot{
		{AliquotID: "A1"},
		{AliquotID: "A9"},
	})

	touched := cs.Touched()
	require.Len(t, touched, 4)
	assert.True(t, touched[0].IsRoot())
	assert.Equal(t, "A1", touched[1].AliquotID)
	assert.Equal(t, "A2", touched[2].AliquotID)
	assert.Equal(t, "A9", touched[3].AliquotID)
}

func TestReconcile_Deterministic(t *testing.T) {
	root, stored := storedTree(t, "A3", "A1", "A2")

	sub := []SubmittedAliquot{
		{AliquotID: "A2"},
		{AliquotID: "B2"},
		{AliquotID: "B1"},
	}

	first := Reconcile(root, stored, SubmittedRoot{}, sub)
	reversed := []Sample{stored[2], stored[1], stored[0]}
	second := Reconcile(root, reversed, SubmittedRoot{}, sub)

	require.Equal(t, len(first.Cancels), len(second.Cancels))
	for i := range first.Cancels {
		assert.Equal(t, first.Cancels[i].AliquotID, second.Cancels[i].AliquotID)
	}
	require.Len(t, first.Inserts, 2)
	assert.Equal(t, "B1", first.Inserts[0].AliquotID)
	assert.Equal(t, "B2", first.Inserts[1].AliquotID)
}

func TestReconcile_RootContentReplaced(t *testing.T) {
	root, stored := storedTree(t)
	collected := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	cs := Reconcile(root, stored, SubmittedRoot{
		Test:         "blood",
		Description:  "EDTA tube",
		Collected:    &collected,
		Supplemental: map[string]string{"fasting": "true"},
	}, nil)

	assert.Equal(t, "blood", cs.Root.Test)
	assert.Equal(t, "EDTA tube", cs.Root.Description)
	require.NotNil(t, cs.Root.Collected)
	assert.Equal(t, collected, *cs.Root.Collected)
	assert.Equal(t, "true", cs.Root.Supplemental["fasting"])
}
