package validation

import (
	"errors"
	"testing"

	"admissions-workflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *IntakeValidator {
	t.Helper()
	v, err := NewIntakeValidator()
	require.NoError(t, err)
	return v
}

func TestValidate_StudentIntake(t *testing.T) {
	v := newValidator(t)

	result, err := v.Validate(models.RecordTypeStudent, map[string]interface{}{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      "ada@example.com",
		"phone":      "(317) 555-0100",
		"program_id": "barber-apprenticeship",
	})
	require.NoError(t, err)
	assert.True(t, result.Valid, result.GetErrorMessages())
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	v := newValidator(t)

	result, err := v.Validate(models.RecordTypeStudent, map[string]interface{}{
		"first_name": "Ada",
	})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
	for _, e := range result.Errors {
		assert.Equal(t, "required", e.Code)
	}
}

func TestValidate_BadFormats(t *testing.T) {
	v := newValidator(t)

	result, err := v.Validate(models.RecordTypeEmployer, map[string]interface{}{
		"company_name": "Acme Staffing",
		"contact_name": "R. Jones",
		"email":        "not-an-email",
		"ein":          "12345",
	})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors("email"))
	assert.True(t, result.HasErrors("ein"))
}

func TestValidate_NilIntake(t *testing.T) {
	v := newValidator(t)

	result, err := v.Validate(models.RecordTypePartner, nil)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 3)
}

func TestValidate_UnknownRecordType(t *testing.T) {
	v := newValidator(t)

	_, err := v.Validate(models.RecordType("vendor"), map[string]interface{}{})
	assert.True(t, errors.Is(err, models.ErrInvalidRecordType))
}
