package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plexward/internal/shared/errors"
)

func TestValidateStruct(t *testing.T) {
	type announcementRequest struct {
		Subject string `json:"subject" validate:"required,max=200"`
		Body    string `json:"body" validate:"required"`
	}
	type shareLinkRequest struct {
		ProspectEmail string `json:"prospect_email" validate:"omitempty,email"`
		Note          string `json:"note" validate:"max=500"`
	}

	t.Run("valid struct passes", func(t *testing.T) {
		err := ValidateStruct(&announcementRequest{Subject: "Maintenance", Body: "Back soon"})
		assert.NoError(t, err)
	})

	t.Run("missing required fields use json names", func(t *testing.T) {
		err := ValidateStruct(&announcementRequest{})
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))

		appErr := err.(*errors.AppError)
		assert.Contains(t, appErr.Details, "subject is required")
		assert.Contains(t, appErr.Details, "body is required")
	})

	t.Run("invalid email rejected", func(t *testing.T) {
		err := ValidateStruct(&shareLinkRequest{ProspectEmail: "not-an-email"})
		require.Error(t, err)
		assert.Contains(t, err.(*errors.AppError).Details, "prospect_email must be a valid email address")
	})

	t.Run("omitempty skips blank optional fields", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(&shareLinkRequest{}))
	})
}
