package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/participant"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/entities/category"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/entities/site"
)

// SiteRefs names every site an order submission references, so a failed
// lookup can point at the exact offending field.
type SiteRefs struct {
	Created    uuid.UUID
	Collected  uuid.UUID
	Finalized  uuid.UUID
	Transition uuid.UUID
}

// ReferenceValidator confirms that records referenced by an incoming order
// actually exist. It never creates them; participants, sites and categories
// are owned by other subsystems.
type ReferenceValidator struct {
	participants participant.Repository
	sites        site.Repository
	categories   category.Repository
}

func NewReferenceValidator(
	participants participant.Repository,
	sites site.Repository,
	categories category.Repository,
) *ReferenceValidator {
	return &ReferenceValidator{
		participants: participants,
		sites:        sites,
		categories:   categories,
	}
}

// ValidateOrderRefs checks the participant, category and every non-nil site
// of a submission. Failures name the specific missing reference. The
// category is returned so callers do not look it up twice.
func (v *ReferenceValidator) ValidateOrderRefs(
	ctx context.Context,
	participantID, categoryID uuid.UUID,
	sites SiteRefs,
) (category.Category, error) {
	if participantID == uuid.Nil {
		return category.Category{}, newServiceError(http.StatusBadRequest, "BIOBANK_NO_PARTICIPANT", "participant_id is required", nil)
	}
	if categoryID == uuid.Nil {
		return category.Category{}, newServiceError(http.StatusBadRequest, "BIOBANK_NO_CATEGORY", "category_id is required", nil)
	}

	ok, err := v.participants.Exists(ctx, participantID)
	if err != nil {
		return category.Category{}, err
	}
	if !ok {
		return category.Category{}, newServiceError(http.StatusUnprocessableEntity, "BIOBANK_PARTICIPANT_NOT_FOUND", "participant does not exist", nil)
	}

	cat, err := v.categories.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, category.ErrNotFound) {
			return category.Category{}, newServiceError(http.StatusUnprocessableEntity, "BIOBANK_CATEGORY_NOT_FOUND", "category does not exist", nil)
		}
		return category.Category{}, err
	}

	checks := []struct {
		field string
		id    uuid.UUID
	}{
		{"created-site", sites.Created},
		{"collected-site", sites.Collected},
		{"finalized-site", sites.Finalized},
		{"transition-site", sites.Transition},
	}
	seen := make(map[uuid.UUID]struct{}, len(checks))
	for _, c := range checks {
		if c.id == uuid.Nil {
			continue
		}
		if _, done := seen[c.id]; done {
			continue
		}
		seen[c.id] = struct{}{}

		ok, err := v.sites.Exists(ctx, c.id)
		if err != nil {
			return category.Category{}, err
		}
		if !ok {
			return category.Category{}, newServiceError(http.StatusUnprocessableEntity, "BIOBANK_SITE_NOT_FOUND", c.field+" does not exist", nil)
		}
	}
	return cat, nil
}
