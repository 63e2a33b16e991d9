package order

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) Order {
	t.Helper()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	return New(
		"ORD-1001",
		uuid.New(),
		uuid.New(),
		"baseline visit",
		StageInfo{SiteID: uuid.New(), Author: "jdoe", Time: now},
		StageInfo{SiteID: uuid.New(), Author: "jdoe", Time: now.Add(time.Hour)},
		StageInfo{SiteID: uuid.New(), Author: "asmith", Time: now.Add(2 * time.Hour)},
		now,
	)
}

func transitionAt(author string, t time.Time) TransitionInfo {
	return TransitionInfo{SiteID: uuid.New(), Author: author, Reason: "data correction", Time: t}
}

func TestNew_StartsAtVersionOne(t *testing.T) {
	o := newTestOrder(t)
	assert.Equal(t, StatusCreated, o.Status())
	assert.Equal(t, int32(1), o.Version())
}

func TestApplyAmend(t *testing.T) {
	o := newTestOrder(t)
	at := time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)

	amended, err := o.ApplyAmend(transitionAt("jdoe", at))
	require.NoError(t, err)
	assert.Equal(t, StatusAmended, amended.Status())
	assert.Equal(t, int32(2), amended.Version())
	require.NotNil(t, amended.Amended())
	assert.Equal(t, "jdoe", amended.Amended().Author)
}

func TestApplyAmend_RejectedWhenCancelled(t *testing.T) {
	o := newTestOrder(t)
	at := time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)

	cancelled, err := o.ApplyCancel(transitionAt("jdoe", at))
	require.NoError(t, err)

	_, err = cancelled.ApplyAmend(transitionAt("jdoe", at.Add(time.Hour)))
	var tErr ErrIllegalTransition
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StatusCancelled, tErr.From)
	assert.Equal(t, StatusAmended, tErr.To)
}

func TestApplyCancel_ClearsActiveState(t *testing.T) {
	o := newTestOrder(t)
	at := time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)

	cancelled, err := o.ApplyCancel(transitionAt("jdoe", at))
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status())
	assert.Equal(t, int32(2), cancelled.Version())
	assert.Equal(t, uuid.Nil, cancelled.Created().SiteID)
	assert.True(t, cancelled.Finalized().IsZero())
	assert.Equal(t, StatusCreated, cancelled.PrecancelStatus())
}

func TestApplyCancel_RejectedWhenAlreadyCancelled(t *testing.T) {
	o := newTestOrder(t)
	at := time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)

	cancelled, err := o.ApplyCancel(transitionAt("jdoe", at))
	require.NoError(t, err)

	_, err = cancelled.ApplyCancel(transitionAt("jdoe", at.Add(time.Hour)))
	var tErr ErrIllegalTransition
	require.ErrorAs(t, err, &tErr)
}

func TestApplyRestore_ReturnsToPrecancelStatus(t *testing.T) {
	o := newTestOrder(t)
	at := time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)

	amended, err := o.ApplyAmend(transitionAt("jdoe", at))
	require.NoError(t, err)
	cancelled, err := amended.ApplyCancel(transitionAt("jdoe", at.Add(time.Hour)))
	require.NoError(t, err)

	recovered := StageInfo{Time: at.Add(30 * time.Minute)}
	restored, err := cancelled.ApplyRestore(transitionAt("asmith", at.Add(2*time.Hour)), recovered)
	require.NoError(t, err)
	assert.Equal(t, StatusAmended, restored.Status(), "restore returns to the status before cancellation")
	assert.Equal(t, int32(4), restored.Version())
	assert.Nil(t, restored.Cancelled())
	assert.Equal(t, recovered.Time, restored.Finalized().Time)
}

func TestApplyRestore_RejectedWhenNotCancelled(t *testing.T) {
	o := newTestOrder(t)
	at := time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)

	_, err := o.ApplyRestore(transitionAt("jdoe", at), StageInfo{})
	var tErr ErrIllegalTransition
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StatusCreated, tErr.From)
}

func TestCancelRestore_VersionAlwaysIncrements(t *testing.T) {
	o := newTestOrder(t)
	at := time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)

	cancelled, err := o.ApplyCancel(transitionAt("jdoe", at))
	require.NoError(t, err)
	restored, err := cancelled.ApplyRestore(transitionAt("jdoe", at.Add(time.Hour)), StageInfo{})
	require.NoError(t, err)
	assert.Equal(t, o.Version()+2, restored.Version())
}

func TestComputeFingerprint_StableAcrossAliquotOrder(t *testing.T) {
	o := newTestOrder(t)
	root := SubmittedRoot{Test: "saliva"}
	a := SubmittedAliquot{AliquotID: "A1", Volume: decimal.NewFromInt(2)}
	b := SubmittedAliquot{AliquotID: "A2", Volume: decimal.NewFromInt(3)}

	fp1 := ComputeFingerprint(o, root, []SubmittedAliquot{a, b})
	fp2 := ComputeFingerprint(o, root, []SubmittedAliquot{b, a})
	assert.Equal(t, fp1, fp2)
}

func TestComputeFingerprint_SensitiveToContent(t *testing.T) {
	o := newTestOrder(t)
	root := SubmittedRoot{Test: "saliva"}

	fp1 := ComputeFingerprint(o, root, nil)
	fp2 := ComputeFingerprint(o, SubmittedRoot{Test: "blood"}, nil)
	assert.NotEqual(t, fp1, fp2)

	fp3 := ComputeFingerprint(o.ReplaceContent("other notes", o.Created(), o.Collected(), o.Finalized()), root, nil)
	assert.NotEqual(t, fp1, fp3)
}
