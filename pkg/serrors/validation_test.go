package serrors

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessValidatorErrors(t *testing.T) {
	type form struct {
		ClientID string `validate:"required"`
		Version  int    `validate:"min=1"`
		Status   string `validate:"omitempty,oneof=active cancelled"`
		Notes    string `validate:"max=4"`
	}

	err := validator.New().Struct(form{Version: 0, Status: "weird", Notes: "too long"})
	require.Error(t, err)

	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)

	out := ProcessValidatorErrors(vErrs)
	assert.Equal(t, "ClientID is required", out["ClientID"])
	assert.Equal(t, "Version must be at least 1", out["Version"])
	assert.Equal(t, "Status must be one of active cancelled", out["Status"])
	assert.Equal(t, "Notes must be at most 4", out["Notes"])
}

func TestValidationErrors_First(t *testing.T) {
	assert.Equal(t, "validation failed", ValidationErrors{}.First())
	assert.Equal(t, "x is required", ValidationErrors{"x": "x is required"}.First())
}
