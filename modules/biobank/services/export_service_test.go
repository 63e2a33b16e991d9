package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadia-bio/biocore/internal/blob"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/entities/category"
)

func newExporter(f *fixture, store blob.Store) *ExportService {
	exporter := NewExportService(f.ledger, f.orders, f.categories, store, testLogger(), "central-lab")
	exporter.now = func() time.Time { return f.now.Add(12 * time.Hour) }
	return exporter
}

func TestExport_ShipsUnexportedEntriesOnce(t *testing.T) {
	f := newFixture(category.KindBiospecimen)
	ctx := testContext()

	created, err := f.service.Create(ctx, f.submission("ORD-1", aliquot("A1"), aliquot("A2")))
	require.NoError(t, err)

	store := blob.NewMemory()
	exporter := newExporter(f, store)

	report, err := exporter.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Artifacts, 1)
	assert.Equal(t, 3, report.Entries)
	assert.Equal(t, 3, report.Artifacts[0].EntryCount)
	require.Len(t, store.Keys(), 1)

	// nothing left to ship
	again, err := exporter.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Artifacts)
	assert.Zero(t, again.Entries)

	// a later mutation surfaces only its new snapshots
	by := TransitionInput{SiteID: f.siteID, Author: "jdoe", Reason: "hold", Time: f.now.Add(time.Hour)}
	_, err = f.service.Cancel(ctx, "ORD-1", created.Order.Version(), by)
	require.NoError(t, err)

	third, err := exporter.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Entries)
	assert.Len(t, store.Keys(), 2)
}

func TestExport_ChecksumMatchesStoredBytes(t *testing.T) {
	f := newFixture(category.KindBiospecimen)
	ctx := testContext()

	sub := f.submission("ORD-1", aliquot("A1"))
	processedAt := f.now.Add(3 * time.Hour)
	sub.Root.Processed = &processedAt
	_, err := f.service.Create(ctx, sub)
	require.NoError(t, err)

	store := blob.NewMemory()
	report, err := newExporter(f, store).Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Artifacts, 1)

	artifact := report.Artifacts[0]
	rc, err := store.Get(ctx, artifact.BlobKey)
	require.NoError(t, err)
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)

	sum := sha256.Sum256(raw)
	assert.Equal(t, hex.EncodeToString(sum[:]), artifact.SHA256)

	var payload struct {
		Destination string  `json:"destination"`
		Module      string  `json:"module"`
		EntryIDs    []int64 `json:"entry_ids"`
		Orders      []struct {
			ClientID string `json:"client_id"`
			Samples  []struct {
				AliquotID string     `json:"aliquot_id"`
				Processed *time.Time `json:"processed"`
			} `json:"samples"`
		} `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "central-lab", payload.Destination)
	assert.Equal(t, "BIO", payload.Module)
	assert.Len(t, payload.EntryIDs, 2)
	require.Len(t, payload.Orders, 1)
	assert.Equal(t, "ORD-1", payload.Orders[0].ClientID)
	require.Len(t, payload.Orders[0].Samples, 2)
	require.NotNil(t, payload.Orders[0].Samples[0].Processed)
	assert.True(t, payload.Orders[0].Samples[0].Processed.Equal(processedAt))
}

func TestExport_GroupsByParticipant(t *testing.T) {
	f := newFixture(category.KindBiospecimen)
	ctx := testContext()

	_, err := f.service.Create(ctx, f.submission("ORD-1", aliquot("A1")))
	require.NoError(t, err)

	other := f.submission("ORD-2", aliquot("A1"))
	other.ParticipantID = f.addParticipant()
	_, err = f.service.Create(ctx, other)
	require.NoError(t, err)

	store := blob.NewMemory()
	report, err := newExporter(f, store).Run(ctx)
	require.NoError(t, err)

	assert.Len(t, report.Artifacts, 2)
	assert.Equal(t, 4, report.Entries)
	assert.Len(t, store.Keys(), 2)
}

func TestExport_FailedLinkLeavesEntriesUnexported(t *testing.T) {
	f := newFixture(category.KindBiospecimen)
	ctx := testContext()

	_, err := f.service.Create(ctx, f.submission("ORD-1", aliquot("A1")))
	require.NoError(t, err)

	store := blob.NewMemory()
	exporter := newExporter(f, store)

	f.ledger.failLink = true
	_, err = exporter.Run(ctx)
	require.Error(t, err)

	// the artifact bytes were written but the entries stay eligible, so the
	// next run ships them again
	assert.Len(t, store.Keys(), 1)
	pending, err := f.ledger.ListUnexported(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	f.ledger.failLink = false
	report, err := exporter.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Entries)
}
