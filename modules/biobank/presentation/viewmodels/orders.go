package viewmodels

import "time"

type Stage struct {
	SiteID string     `json:"site_id,omitempty"`
	Author string     `json:"author,omitempty"`
	Time   *time.Time `json:"time,omitempty"`
}

type Transition struct {
	SiteID string    `json:"site_id,omitempty"`
	Author string    `json:"author,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Time   time.Time `json:"time"`
}

type Sample struct {
	SampleID     string            `json:"sample_id"`
	ParentID     string            `json:"parent_id,omitempty"`
	AliquotID    string            `json:"aliquot_id,omitempty"`
	Identifier   string            `json:"identifier,omitempty"`
	Test         string            `json:"test,omitempty"`
	Description  string            `json:"description,omitempty"`
	Container    string            `json:"container,omitempty"`
	Volume       string            `json:"volume"`
	VolumeUnits  string            `json:"volume_units,omitempty"`
	Collected    *time.Time        `json:"collected,omitempty"`
	Processed    *time.Time        `json:"processed,omitempty"`
	Finalized    *time.Time        `json:"finalized,omitempty"`
	Status       string            `json:"status"`
	Supplemental map[string]string `json:"supplemental,omitempty"`
}

type Order struct {
	ClientID      string `json:"client_id"`
	ParticipantID string `json:"participant_id"`
	CategoryID    string `json:"category_id"`
	Status        string `json:"status"`
	Version       int32  `json:"version"`
	Notes         string `json:"notes,omitempty"`

	Created   Stage `json:"created"`
	Collected Stage `json:"collected"`
	Finalized Stage `json:"finalized"`

	Amended   *Transition `json:"amended,omitempty"`
	Cancelled *Transition `json:"cancelled,omitempty"`
	Restored  *Transition `json:"restored,omitempty"`

	Samples []Sample `json:"samples"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
