package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/entities/category"
)

func validatorFixture() (*ReferenceValidator, *fixture) {
	f := newFixture(category.KindBiospecimen)
	return NewReferenceValidator(f.participants, f.sites, f.categories), f
}

func requireServiceError(t *testing.T, err error) *ServiceError {
	t.Helper()
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	return svcErr
}

func TestValidateOrderRefs_AllKnown(t *testing.T) {
	v, f := validatorFixture()

	cat, err := v.ValidateOrderRefs(testContext(), f.participantID, f.categoryID, SiteRefs{
		Created:   f.siteID,
		Collected: f.siteID,
		Finalized: f.siteID,
	})
	require.NoError(t, err)
	assert.Equal(t, category.KindBiospecimen, cat.Kind())
}

func TestValidateOrderRefs_RequiredIDs(t *testing.T) {
	v, f := validatorFixture()

	_, err := v.ValidateOrderRefs(testContext(), uuid.Nil, f.categoryID, SiteRefs{})
	svcErr := requireServiceError(t, err)
	assert.Equal(t, 400, svcErr.Status)
	assert.Equal(t, "BIOBANK_NO_PARTICIPANT", svcErr.Code)

	_, err = v.ValidateOrderRefs(testContext(), f.participantID, uuid.Nil, SiteRefs{})
	svcErr = requireServiceError(t, err)
	assert.Equal(t, 400, svcErr.Status)
	assert.Equal(t, "BIOBANK_NO_CATEGORY", svcErr.Code)
}

func TestValidateOrderRefs_UnknownReferences(t *testing.T) {
	v, f := validatorFixture()

	_, err := v.ValidateOrderRefs(testContext(), uuid.New(), f.categoryID, SiteRefs{})
	svcErr := requireServiceError(t, err)
	assert.Equal(t, 422, svcErr.Status)
	assert.Equal(t, "BIOBANK_PARTICIPANT_NOT_FOUND", svcErr.Code)

	_, err = v.ValidateOrderRefs(testContext(), f.participantID, uuid.New(), SiteRefs{})
	svcErr = requireServiceError(t, err)
	assert.Equal(t, "BIOBANK_CATEGORY_NOT_FOUND", svcErr.Code)
}

func TestValidateOrderRefs_NamesOffendingSite(t *testing.T) {
	v, f := validatorFixture()

	cases := []struct {
		field string
		refs  SiteRefs
	}{
		{"created-site", SiteRefs{Created: uuid.New()}},
		{"collected-site", SiteRefs{Collected: uuid.New()}},
		{"finalized-site", SiteRefs{Finalized: uuid.New()}},
		{"transition-site", SiteRefs{Transition: uuid.New()}},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			_, err := v.ValidateOrderRefs(testContext(), f.participantID, f.categoryID, tc.refs)
			svcErr := requireServiceError(t, err)
			assert.Equal(t, 422, svcErr.Status)
			assert.Equal(t, "BIOBANK_SITE_NOT_FOUND", svcErr.Code)
			assert.Equal(t, tc.field+" does not exist", svcErr.Message)
		})
	}
}

func TestValidateOrderRefs_NilSitesSkipped(t *testing.T) {
	v, f := validatorFixture()

	_, err := v.ValidateOrderRefs(testContext(), f.participantID, f.categoryID, SiteRefs{})
	assert.NoError(t, err)
}
