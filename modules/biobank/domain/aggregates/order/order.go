package order

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusAmended   Status = "amended"
	StatusCancelled Status = "cancelled"
	StatusRestored  Status = "restored"
)

// StageInfo attributes one collection stage (created/collected/finalized) to
// a site and an author.
type StageInfo struct {
	SiteID uuid.UUID
	Author string
	Time   time.Time
}

func (s StageInfo) IsZero() bool {
	return s.SiteID == uuid.Nil && s.Author == "" && s.Time.IsZero()
}

// TransitionInfo attributes a lifecycle transition (amend/cancel/restore).
type TransitionInfo struct {
	SiteID uuid.UUID
	Author string
	Reason string
	Time   time.Time
}

// Order is the header record for one collection event. The client-supplied
// identifier stays stable across amendments; the version increases by one on
// every accepted mutation.
type Order struct {
	id            uuid.UUID
	clientID      string
	participantID uuid.UUID
	categoryID    uuid.UUID
	status        Status
	// Active status in effect before cancellation, so restore can return to it.
	precancelStatus Status
	version         int32
	fingerprint     string
	notes           string

	created   StageInfo
	collected StageInfo
	finalized StageInfo

	amended   *TransitionInfo
	cancelled *TransitionInfo
	restored  *TransitionInfo

	createdAt time.Time
	updatedAt time.Time
}

func New(
	clientID string,
	participantID uuid.UUID,
	categoryID uuid.UUID,
	notes string,
	created, collected, finalized StageInfo,
	now time.Time,
) Order {
	return Order{
		id:            uuid.New(),
		clientID:      clientID,
		participantID: participantID,
		categoryID:    categoryID,
		status:        StatusCreated,
		version:       1,
		notes:         notes,
		created:       created,
		collected:     collected,
		finalized:     finalized,
		createdAt:     now.UTC(),
		updatedAt:     now.UTC(),
	}
}

func Hydrate(
	id uuid.UUID,
	clientID string,
	participantID uuid.UUID,
	categoryID uuid.UUID,
	status Status,
	precancelStatus Status,
	version int32,
	fingerprint string,
	notes string,
	created, collected, finalized StageInfo,
	amended, cancelled, restored *TransitionInfo,
	createdAt, updatedAt time.Time,
) Order {
	return Order{
		id:              id,
		clientID:        clientID,
		participantID:   participantID,
		categoryID:      categoryID,
		status:          status,
		precancelStatus: precancelStatus,
		version:         version,
		fingerprint:     fingerprint,
		notes:           notes,
		created:         created,
		collected:       collected,
		finalized:       finalized,
		amended:         amended,
		cancelled:       cancelled,
		restored:        restored,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

func (o Order) ID() uuid.UUID             { return o.id }
func (o Order) ClientID() string          { return o.clientID }
func (o Order) ParticipantID() uuid.UUID  { return o.participantID }
func (o Order) CategoryID() uuid.UUID     { return o.categoryID }
func (o Order) Status() Status            { return o.status }
func (o Order) PrecancelStatus() Status   { return o.precancelStatus }
func (o Order) Version() int32            { return o.version }
func (o Order) Fingerprint() string       { return o.fingerprint }
func (o Order) Notes() string             { return o.notes }
func (o Order) Created() StageInfo        { return o.created }
func (o Order) Collected() StageInfo      { return o.collected }
func (o Order) Finalized() StageInfo      { return o.finalized }
func (o Order) Amended() *TransitionInfo  { return o.amended }
func (o Order) Cancelled() *TransitionInfo { return o.cancelled }
func (o Order) Restored() *TransitionInfo { return o.restored }
func (o Order) CreatedAt() time.Time      { return o.createdAt }
func (o Order) UpdatedAt() time.Time      { return o.updatedAt }
func (o Order) IsZero() bool              { return o.id == uuid.Nil && o.clientID == "" }

func (o Order) IsCancelled() bool { return o.status == StatusCancelled }

// contentDigest is the canonical shape hashed into the idempotency
// fingerprint. Attribution times are included: a resubmission with different
// stage times is a different order.
type contentDigest struct {
	ClientID      string            `json:"client_id"`
	ParticipantID uuid.UUID         `json:"participant_id"`
	CategoryID    uuid.UUID         `json:"category_id"`
	Notes         string            `json:"notes"`
	Created       stageDigest       `json:"created"`
	Collected     stageDigest       `json:"collected"`
	Finalized     stageDigest       `json:"finalized"`
	Root          SubmittedRoot     `json:"root"`
	Aliquots      []SubmittedAliquot `json:"aliquots"`
}

type stageDigest struct {
	SiteID uuid.UUID `json:"site_id"`
	Author string    `json:"author"`
	Time   int64     `json:"time"`
}

func toStageDigest(s StageInfo) stageDigest {
	return stageDigest{SiteID: s.SiteID, Author: s.Author, Time: s.Time.UTC().Unix()}
}

// ComputeFingerprint hashes the full submission content. Two submissions with
// equal fingerprints are treated as the same order for idempotent creation.
func ComputeFingerprint(o Order, root SubmittedRoot, aliquots []SubmittedAliquot) string {
	digest := contentDigest{
		ClientID:      o.clientID,
		ParticipantID: o.participantID,
		CategoryID:    o.categoryID,
		Notes:         o.notes,
		Created:       toStageDigest(o.created),
		Collected:     toStageDigest(o.collected),
		Finalized:     toStageDigest(o.finalized),
		Root:          root,
		Aliquots:      sortedAliquots(aliquots),
	}
	raw, err := json.Marshal(digest)
	if err != nil {
		// Digest structs only hold marshal-safe types.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// WithFingerprint stamps the content fingerprint onto the header.
func (o Order) WithFingerprint(fp string) Order {
	o.fingerprint = fp
	return o
}

// ReplaceContent overwrites the header's mutable content from an amendment
// submission. Participant and category references are fixed at creation.
func (o Order) ReplaceContent(notes string, created, collected, finalized StageInfo) Order {
	o.notes = notes
	o.created = created
	o.collected = collected
	o.finalized = finalized
	return o
}

// ApplyAmend marks the order amended and clears stale cancel/restore
// attribution from a prior cycle. Valid from any non-cancelled status.
func (o Order) ApplyAmend(info TransitionInfo) (Order, error) {
	if o.status == StatusCancelled {
		return Order{}, ErrIllegalTransition{From: o.status, To: StatusAmended}
	}
	o.status = StatusAmended
	o.amended = &info
	o.cancelled = nil
	o.restored = nil
	o.version++
	o.updatedAt = info.Time.UTC()
	return o, nil
}

// ApplyCancel cancels the order and clears fields that represent active
// state, so a cancelled order does not appear to have completed.
func (o Order) ApplyCancel(info TransitionInfo) (Order, error) {
	if o.status == StatusCancelled {
		return Order{}, ErrIllegalTransition{From: o.status, To: StatusCancelled}
	}
	o.precancelStatus = o.status
	o.status = StatusCancelled
	o.cancelled = &info
	o.created.SiteID = uuid.Nil
	o.finalized = StageInfo{}
	o.version++
	o.updatedAt = info.Time.UTC()
	return o, nil
}

// ApplyRestore returns a cancelled order to its pre-cancellation status. The
// finalized time is not trusted from the request; the caller recovers it from
// the most recent non-cancelled ledger snapshot and passes it here.
func (o Order) ApplyRestore(info TransitionInfo, finalized StageInfo) (Order, error) {
	if o.status != StatusCancelled {
		return Order{}, ErrIllegalTransition{From: o.status, To: StatusRestored}
	}
	restoredTo := o.precancelStatus
	if restoredTo == "" {
		restoredTo = StatusCreated
	}
	o.status = restoredTo
	o.precancelStatus = ""
	o.restored = &info
	o.cancelled = nil
	o.finalized = finalized
	o.version++
	o.updatedAt = info.Time.UTC()
	return o, nil
}
