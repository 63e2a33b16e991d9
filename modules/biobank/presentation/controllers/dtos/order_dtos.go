package dtos

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/order"
	"github.com/arcadia-bio/biocore/modules/biobank/services"
	"github.com/arcadia-bio/biocore/pkg/constants"
	"github.com/arcadia-bio/biocore/pkg/serrors"
)

// APIError is the JSON error envelope every endpoint returns on failure.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type StageDTO struct {
	SiteID string    `json:"site_id" validate:"omitempty,uuid"`
	Author string    `json:"author"`
	Time   time.Time `json:"time"`
}

func (d StageDTO) toInput() (services.StageInput, error) {
	out := services.StageInput{Author: strings.TrimSpace(d.Author), Time: d.Time}
	if s := strings.TrimSpace(d.SiteID); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return services.StageInput{}, err
		}
		out.SiteID = id
	}
	return out, nil
}

// TransitionDTO carries a cancel or restore request. Attribution is
// mandatory: a transition with no author, site or reason is rejected.
type TransitionDTO struct {
	Version int32     `json:"version" validate:"required,min=1"`
	SiteID  string    `json:"site_id" validate:"required,uuid"`
	Author  string    `json:"author" validate:"required"`
	Reason  string    `json:"reason" validate:"required"`
	Time    time.Time `json:"time"`
}

func (d *TransitionDTO) Ok() (serrors.ValidationErrors, bool) {
	return validateStruct(d)
}

func (d TransitionDTO) ToInput() (services.TransitionInput, error) {
	out := services.TransitionInput{
		Author: strings.TrimSpace(d.Author),
		Reason: strings.TrimSpace(d.Reason),
		Time:   d.Time,
	}
	if out.Time.IsZero() {
		out.Time = time.Now().UTC()
	}
	if s := strings.TrimSpace(d.SiteID); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return services.TransitionInput{}, err
		}
		out.SiteID = id
	}
	return out, nil
}

type RootSampleDTO struct {
	Test         string            `json:"test" validate:"required"`
	Description  string            `json:"description"`
	Collected    *time.Time        `json:"collected,omitempty"`
	Processed    *time.Time        `json:"processed,omitempty"`
	Finalized    *time.Time        `json:"finalized,omitempty"`
	Supplemental map[string]string `json:"supplemental,omitempty"`
}

type AliquotDTO struct {
	AliquotID   string          `json:"aliquot_id" validate:"required"`
	Identifier  string          `json:"identifier"`
	Container   string          `json:"container"`
	Volume      decimal.Decimal `json:"volume"`
	VolumeUnits string          `json:"volume_units"`
	Description string          `json:"description"`
	Collected   *time.Time      `json:"collected,omitempty"`
	Status      string          `json:"status" validate:"omitempty,oneof=active cancelled restored"`
}

// OrderContentDTO is the shared body of create and amend requests: the full
// order content including the entire specimen tree.
type OrderContentDTO struct {
	ClientID      string `json:"client_id" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required,uuid"`
	CategoryID    string `json:"category_id" validate:"required,uuid"`
	Notes         string `json:"notes"`

	Created   StageDTO  `json:"created" validate:"required"`
	Collected *StageDTO `json:"collected,omitempty"`
	Finalized *StageDTO `json:"finalized,omitempty"`

	Root     RootSampleDTO `json:"root" validate:"required"`
	Aliquots []AliquotDTO  `json:"aliquots" validate:"dive"`
}

func (d *OrderContentDTO) Normalize() {
	d.ClientID = strings.TrimSpace(d.ClientID)
	d.Notes = strings.TrimSpace(d.Notes)
}

func (d *OrderContentDTO) Ok() (serrors.ValidationErrors, bool) {
	d.Normalize()
	return validateStruct(d)
}

// ToSubmission converts the request body into the service input shape.
func (d OrderContentDTO) ToSubmission() (services.OrderSubmission, error) {
	participantID, err := uuid.Parse(d.ParticipantID)
	if err != nil {
		return services.OrderSubmission{}, err
	}
	categoryID, err := uuid.Parse(d.CategoryID)
	if err != nil {
		return services.OrderSubmission{}, err
	}

	sub := services.OrderSubmission{
		ClientID:      d.ClientID,
		ParticipantID: participantID,
		CategoryID:    categoryID,
		Notes:         d.Notes,
		Root: order.SubmittedRoot{
			Test:         d.Root.Test,
			Description:  d.Root.Description,
			Collected:    d.Root.Collected,
			Processed:    d.Root.Processed,
			Finalized:    d.Root.Finalized,
			Supplemental: d.Root.Supplemental,
		},
	}

	if sub.Created, err = d.Created.toInput(); err != nil {
		return services.OrderSubmission{}, err
	}
	if d.Collected != nil {
		if sub.Collected, err = d.Collected.toInput(); err != nil {
			return services.OrderSubmission{}, err
		}
	}
	if d.Finalized != nil {
		if sub.Finalized, err = d.Finalized.toInput(); err != nil {
			return services.OrderSubmission{}, err
		}
	}

	for _, a := range d.Aliquots {
		sub.Aliquots = append(sub.Aliquots, order.SubmittedAliquot{
			AliquotID:   strings.TrimSpace(a.AliquotID),
			Identifier:  strings.TrimSpace(a.Identifier),
			Container:   a.Container,
			Volume:      a.Volume,
			VolumeUnits: a.VolumeUnits,
			Description: a.Description,
			Collected:   a.Collected,
			Status:      order.SampleStatus(a.Status),
		})
	}
	return sub, nil
}

// AmendOrderDTO carries full replacement content plus the version the caller
// read and the amendment attribution.
type AmendOrderDTO struct {
	OrderContentDTO
	Version int32     `json:"version" validate:"required,min=1"`
	Amended *StageDTO `json:"amended,omitempty"`
	Reason  string    `json:"reason"`
}

func (d *AmendOrderDTO) Ok() (serrors.ValidationErrors, bool) {
	d.Normalize()
	return validateStruct(d)
}

func (d AmendOrderDTO) ToTransition() (services.TransitionInput, error) {
	out := services.TransitionInput{Reason: strings.TrimSpace(d.Reason), Time: time.Now().UTC()}
	if d.Amended == nil {
		return out, nil
	}
	stage, err := d.Amended.toInput()
	if err != nil {
		return services.TransitionInput{}, err
	}
	out.SiteID = stage.SiteID
	out.Author = stage.Author
	if !stage.Time.IsZero() {
		out.Time = stage.Time
	}
	return out, nil
}

func validateStruct(v any) (serrors.ValidationErrors, bool) {
	err := constants.Validate.Struct(v)
	if err == nil {
		return serrors.ValidationErrors{}, true
	}
	var validatorErrs validator.ValidationErrors
	if vErrs, ok := err.(validator.ValidationErrors); ok {
		validatorErrs = vErrs
	}
	return serrors.ProcessValidatorErrors(validatorErrs), false
}
