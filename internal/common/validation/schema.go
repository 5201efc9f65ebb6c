// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"admissions-workflow/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

const contactProperties = `
		"email": {"type": "string", "format": "email"},
		"phone": {"type": "string", "pattern": "^[0-9+() .-]{7,20}$"}`

var intakeSchemas = map[models.RecordType]string{
	models.RecordTypeStudent: `{
	"type": "object",
	"required": ["first_name", "last_name", "email"],
	"properties": {
		"first_name": {"type": "string", "minLength": 1, "maxLength": 100},
		"last_name": {"type": "string", "minLength": 1, "maxLength": 100},
		"date_of_birth": {"type": ["string", "null"], "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"address": {"type": "string"},
		"city": {"type": "string"},
		"program_id": {"type": "string"},` + contactProperties + `
	}
}`,
	models.RecordTypePartner: `{
	"type": "object",
	"required": ["shop_name", "contact_name", "email"],
	"properties": {
		"shop_name": {"type": "string", "minLength": 1, "maxLength": 200},
		"contact_name": {"type": "string", "minLength": 1},
		"license_number": {"type": "string"},
		"license_expiry": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"apprentice_capacity": {"type": "integer", "minimum": 0},` + contactProperties + `
	}
}`,
	models.RecordTypeEmployer: `{
	"type": "object",
	"required": ["company_name", "contact_name", "email"],
	"properties": {
		"company_name": {"type": "string", "minLength": 1, "maxLength": 200},
		"contact_name": {"type": "string", "minLength": 1},
		"ein": {"type": "string", "pattern": "^[0-9]{2}-?[0-9]{7}$"},
		"open_positions": {"type": "integer", "minimum": 0},` + contactProperties + `
	}
}`,
}

// IntakeValidator checks the free-form intake payload captured when an
// application is created. The payload stays opaque to the workflow; only its
// shape is checked here.
type IntakeValidator struct {
	schemas map[models.RecordType]*gojsonschema.Schema
}

func NewIntakeValidator() (*IntakeValidator, error) {
	v := &IntakeValidator{schemas: make(map[models.RecordType]*gojsonschema.Schema, len(intakeSchemas))}
	for recordType, raw := range intakeSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile %s intake schema: %w", recordType, err)
		}
		v.schemas[recordType] = schema
	}
	return v, nil
}

func (v *IntakeValidator) Validate(recordType models.RecordType, intake map[string]interface{}) (*ValidationResult, error) {
	schema, ok := v.schemas[recordType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidRecordType, recordType)
	}
	if intake == nil {
		intake = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(intake))
	if err != nil {
		return nil, fmt.Errorf("validate intake: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, re := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   re.Field(),
			Message: re.Description(),
			Code:    re.Type(),
		})
	}
	return out, nil
}
