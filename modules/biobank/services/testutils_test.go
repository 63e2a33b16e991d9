package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/order"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/participant"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/entities/category"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/entities/site"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/ledger"
	"github.com/arcadia-bio/biocore/pkg/composables"
	"github.com/arcadia-bio/biocore/pkg/eventbus"
)

// stubTx satisfies pgx.Tx so services join a fake transaction instead of
// opening one from a pool.
type stubTx struct{}

func (stubTx) Begin(ctx context.Context) (pgx.Tx, error) { return stubTx{}, nil }
func (stubTx) Commit(ctx context.Context) error          { return nil }
func (stubTx) Rollback(ctx context.Context) error        { return nil }
func (stubTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (stubTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (stubTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (stubTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (stubTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (stubTx) Conn() *pgx.Conn                                               { return nil }

func testContext() context.Context {
	return composables.WithTx(context.Background(), stubTx{})
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type storedOrder struct {
	order   order.Order
	samples []order.Sample
}

type fakeOrderRepo struct {
	byClientID map[string]*storedOrder
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{byClientID: make(map[string]*storedOrder)}
}

func (r *fakeOrderRepo) find(id uuid.UUID) *storedOrder {
	for _, so := range r.byClientID {
		if so.order.ID() == id {
			return so
		}
	}
	return nil
}

func (r *fakeOrderRepo) GetByClientID(ctx context.Context, clientID string) (order.Order, []order.Sample, error) {
	so, ok := r.byClientID[clientID]
	if !ok {
		return order.Order{}, nil, order.ErrNotFound
	}
	samples := make([]order.Sample, len(so.samples))
	copy(samples, so.samples)
	return so.order, samples, nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (order.Order, error) {
	so := r.find(id)
	if so == nil {
		return order.Order{}, order.ErrNotFound
	}
	return so.order, nil
}

func (r *fakeOrderRepo) Create(ctx context.Context, o order.Order, samples []order.Sample) error {
	copied := make([]order.Sample, len(samples))
	copy(copied, samples)
	r.byClientID[o.ClientID()] = &storedOrder{order: o, samples: copied}
	return nil
}

func (r *fakeOrderRepo) UpdateHeader(ctx context.Context, o order.Order, expectedVersion int32) error {
	so, ok := r.byClientID[o.ClientID()]
	if !ok {
		return order.ErrNotFound
	}
	if so.order.Version() != expectedVersion {
		return order.ErrVersionMismatch{Supplied: expectedVersion, Stored: so.order.Version()}
	}
	so.order = o
	return nil
}

func (r *fakeOrderRepo) ApplyChangeSet(ctx context.Context, cs order.ChangeSet) error {
	so := r.find(cs.Root.OrderID)
	if so == nil {
		return order.ErrNotFound
	}
	replace := func(s order.Sample) {
		for i := range so.samples {
			if so.samples[i].ID == s.ID {
				so.samples[i] = s
				return
			}
		}
		so.samples = append(so.samples, s)
	}
	replace(cs.Root)
	for _, s := range cs.Updates {
		replace(s)
	}
	for _, s := range cs.Cancels {
		replace(s)
	}
	for _, s := range cs.Inserts {
		replace(s)
	}
	return nil
}

func (r *fakeOrderRepo) ListSamples(ctx context.Context, orderID uuid.UUID) ([]order.Sample, error) {
	so := r.find(orderID)
	if so == nil {
		return nil, order.ErrNotFound
	}
	out := make([]order.Sample, len(so.samples))
	copy(out, so.samples)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsRoot() != out[j].IsRoot() {
			return out[i].IsRoot()
		}
		return out[i].AliquotID < out[j].AliquotID
	})
	return out, nil
}

func (r *fakeOrderRepo) SetSamplesStatus(ctx context.Context, orderID uuid.UUID, status order.SampleStatus) ([]order.Sample, error) {
	so := r.find(orderID)
	if so == nil {
		return nil, order.ErrNotFound
	}
	for i := range so.samples {
		so.samples[i].Status = status
	}
	return r.ListSamples(ctx, orderID)
}

func (r *fakeOrderRepo) SetSampleStatuses(ctx context.Context, orderID uuid.UUID, statuses map[uuid.UUID]order.SampleStatus) ([]order.Sample, error) {
	so := r.find(orderID)
	if so == nil {
		return nil, order.ErrNotFound
	}
	for i := range so.samples {
		if status, ok := statuses[so.samples[i].ID]; ok {
			so.samples[i].Status = status
		}
	}
	return r.ListSamples(ctx, orderID)
}

type fakeLedgerRepo struct {
	entries   []ledger.Entry
	artifacts []ledger.Artifact
	links     map[int64]uuid.UUID
	nextID    int64

	failLink bool
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{links: make(map[int64]uuid.UUID)}
}

func (r *fakeLedgerRepo) Append(ctx context.Context, entries []ledger.Entry) error {
	for _, e := range entries {
		r.nextID++
		e.ID = r.nextID
		r.entries = append(r.entries, e)
	}
	return nil
}

func (r *fakeLedgerRepo) ListUnexported(ctx context.Context) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for _, e := range r.entries {
		if _, linked := r.links[e.ID]; !linked {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) LatestActiveFinalized(ctx context.Context, orderID uuid.UUID) (time.Time, bool, error) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.OrderID != orderID {
			continue
		}
		snap, err := e.DecodeSnapshot()
		if err != nil {
			return time.Time{}, false, err
		}
		if snap.ParentID != nil || snap.Status == order.SampleStatusCancelled {
			continue
		}
		if snap.Finalized == nil {
			return time.Time{}, false, nil
		}
		return snap.Finalized.UTC(), true, nil
	}
	return time.Time{}, false, nil
}

func (r *fakeLedgerRepo) PrecancelStatuses(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]order.SampleStatus, error) {
	type history struct {
		latest, previous *ledger.SampleSnapshot
	}
	perSample := make(map[uuid.UUID]*history)
	for _, e := range r.entries {
		if e.OrderID != orderID {
			continue
		}
		snap, err := e.DecodeSnapshot()
		if err != nil {
			return nil, err
		}
		h, ok := perSample[e.SampleID]
		if !ok {
			h = &history{}
			perSample[e.SampleID] = h
		}
		h.previous = h.latest
		h.latest = &snap
	}

	out := make(map[uuid.UUID]order.SampleStatus)
	for sampleID, h := range perSample {
		if h.previous != nil {
			out[sampleID] = h.previous.Status
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) InsertArtifact(ctx context.Context, a ledger.Artifact) error {
	r.artifacts = append(r.artifacts, a)
	return nil
}

func (r *fakeLedgerRepo) LinkExport(ctx context.Context, artifactID uuid.UUID, entryIDs []int64) error {
	if r.failLink {
		return errLinkFailed
	}
	for _, id := range entryIDs {
		r.links[id] = artifactID
	}
	return nil
}

var errLinkFailed = &ServiceError{Status: 500, Code: "TEST_LINK_FAILED", Message: "link failed"}

func (r *fakeLedgerRepo) entriesForOrder(orderID uuid.UUID) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range r.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out
}

type fakeParticipantRepo struct {
	participants map[uuid.UUID]participant.Participant
	summaries    map[uuid.UUID]participant.Summary
	orders       *fakeOrderRepo
	categories   *fakeCategoryRepo
}

func newFakeParticipantRepo(orders *fakeOrderRepo, categories *fakeCategoryRepo) *fakeParticipantRepo {
	return &fakeParticipantRepo{
		participants: make(map[uuid.UUID]participant.Participant),
		summaries:    make(map[uuid.UUID]participant.Summary),
		orders:       orders,
		categories:   categories,
	}
}

func (r *fakeParticipantRepo) add(id uuid.UUID) {
	r.participants[id] = participant.Hydrate(id, "P-"+id.String()[:8], time.Now())
}

func (r *fakeParticipantRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.participants[id]
	return ok, nil
}

func (r *fakeParticipantRepo) GetByID(ctx context.Context, id uuid.UUID) (participant.Participant, error) {
	p, ok := r.participants[id]
	if !ok {
		return participant.Participant{}, participant.ErrNotFound
	}
	return p, nil
}

func (r *fakeParticipantRepo) GetSummary(ctx context.Context, participantID uuid.UUID) (participant.Summary, error) {
	if s, ok := r.summaries[participantID]; ok {
		return s, nil
	}
	return participant.Summary{ParticipantID: participantID}, nil
}

func (r *fakeParticipantRepo) SaveSummary(ctx context.Context, s participant.Summary) error {
	r.summaries[s.ParticipantID] = s
	return nil
}

func (r *fakeParticipantRepo) ListVisitRecords(ctx context.Context, participantID uuid.UUID) ([]participant.VisitRecord, error) {
	var out []participant.VisitRecord
	for _, so := range r.orders.byClientID {
		o := so.order
		if o.ParticipantID() != participantID || o.Finalized().Time.IsZero() {
			continue
		}
		out = append(out, participant.VisitRecord{
			OrderID:     o.ID(),
			FinalizedAt: o.Finalized().Time,
			Cancelled:   o.IsCancelled(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinalizedAt.Before(out[j].FinalizedAt) })
	return out, nil
}

func (r *fakeParticipantRepo) LatestAttribution(ctx context.Context, participantID uuid.UUID, kind string) (participant.StageAttribution, bool, error) {
	var (
		best  order.Order
		found bool
	)
	for _, so := range r.orders.byClientID {
		o := so.order
		if o.ParticipantID() != participantID || o.IsCancelled() {
			continue
		}
		cat, ok := r.categories.byID[o.CategoryID()]
		if !ok || string(cat.Kind()) != kind {
			continue
		}
		if !found || o.Collected().Time.After(best.Collected().Time) {
			best = o
			found = true
		}
	}
	if !found {
		return participant.StageAttribution{}, false, nil
	}
	attr := participant.StageAttribution{}
	if best.Collected().SiteID != uuid.Nil {
		id := best.Collected().SiteID
		attr.SiteID = &id
	}
	if !best.Collected().Time.IsZero() {
		t := best.Collected().Time
		attr.Time = &t
	}
	return attr, true, nil
}

type fakeSiteRepo struct {
	byID map[uuid.UUID]site.Site
}

func newFakeSiteRepo() *fakeSiteRepo {
	return &fakeSiteRepo{byID: make(map[uuid.UUID]site.Site)}
}

func (r *fakeSiteRepo) add(id uuid.UUID) {
	r.byID[id] = site.Hydrate(id, "Site "+id.String()[:8], time.Now())
}

func (r *fakeSiteRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.byID[id]
	return ok, nil
}

func (r *fakeSiteRepo) GetByID(ctx context.Context, id uuid.UUID) (site.Site, error) {
	s, ok := r.byID[id]
	if !ok {
		return site.Site{}, site.ErrNotFound
	}
	return s, nil
}

type fakeCategoryRepo struct {
	byID map[uuid.UUID]category.Category
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{byID: make(map[uuid.UUID]category.Category)}
}

func (r *fakeCategoryRepo) add(id uuid.UUID, kind category.Kind) {
	r.byID[id] = category.Hydrate(id, kind, "BIO", "V1", "T1", time.Now())
}

func (r *fakeCategoryRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.byID[id]
	return ok, nil
}

func (r *fakeCategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (category.Category, error) {
	c, ok := r.byID[id]
	if !ok {
		return category.Category{}, category.ErrNotFound
	}
	return c, nil
}

// fixture bundles the fakes one order-service test needs.
type fixture struct {
	orders       *fakeOrderRepo
	ledger       *fakeLedgerRepo
	participants *fakeParticipantRepo
	sites        *fakeSiteRepo
	categories   *fakeCategoryRepo
	service      *OrderService

	participantID uuid.UUID
	categoryID    uuid.UUID
	siteID        uuid.UUID
	now           time.Time
}

func newFixture(kind category.Kind) *fixture {
	f := &fixture{
		orders:        newFakeOrderRepo(),
		ledger:        newFakeLedgerRepo(),
		sites:         newFakeSiteRepo(),
		categories:    newFakeCategoryRepo(),
		participantID: uuid.New(),
		categoryID:    uuid.New(),
		siteID:        uuid.New(),
		now:           time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	f.participants = newFakeParticipantRepo(f.orders, f.categories)
	f.participants.add(f.participantID)
	f.categories.add(f.categoryID, kind)
	f.sites.add(f.siteID)

	validator := NewReferenceValidator(f.participants, f.sites, f.categories)
	summaries := NewSummaryUpdater(f.participants, 24*time.Hour)
	f.service = NewOrderService(
		f.orders, f.ledger, f.categories, validator, summaries,
		eventbus.NewEventPublisher(testLogger()), testLogger(), "1SAL",
	)
	f.service.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addParticipant() uuid.UUID {
	id := uuid.New()
	f.participants.add(id)
	return id
}

func (f *fixture) submission(clientID string, aliquots ...order.SubmittedAliquot) OrderSubmission {
	return OrderSubmission{
		ClientID:      clientID,
		ParticipantID: f.participantID,
		CategoryID:    f.categoryID,
		Notes:         "baseline",
		Created:       StageInput{SiteID: f.siteID, Author: "jdoe", Time: f.now},
		Collected:     StageInput{SiteID: f.siteID, Author: "jdoe", Time: f.now.Add(time.Hour)},
		Finalized:     StageInput{SiteID: f.siteID, Author: "asmith", Time: f.now.Add(2 * time.Hour)},
		Root:          order.SubmittedRoot{Test: "1SAL2"},
		Aliquots:      aliquots,
	}
}
