package validation

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	apperrors "diabetes-risk/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed profile_schema.json
var profileSchemaJSON []byte

// ProfileSchema is the JSON schema every API profile document must satisfy.
var ProfileSchema = MustCompile(profileSchemaJSON)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema wraps a compiled gojsonschema schema.
type Schema struct {
	schema *gojsonschema.Schema
}

func Compile(schemaJSON []byte) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

func MustCompile(schemaJSON []byte) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateJSON checks a raw document. A document that is not JSON at all
// yields a single error on the root.
func (s *Schema) ValidateJSON(doc []byte) *ValidationResult {
	return s.validate(gojsonschema.NewBytesLoader(doc))
}

// ValidateInput checks an already decoded document.
func (s *Schema) ValidateInput(input map[string]interface{}) *ValidationResult {
	return s.validate(gojsonschema.NewGoLoader(input))
}

func (s *Schema) validate(doc gojsonschema.JSONLoader) *ValidationResult {
	result, err := s.schema.Validate(doc)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_DOCUMENT",
			}},
		}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   fieldName(desc),
			Message: desc.Description(),
			Code:    errorCode(desc.Type()),
		})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	return &ValidationResult{Valid: result.Valid(), Errors: errs}
}

// fieldName points required/additional-property errors at the property
// rather than at the enclosing object.
func fieldName(desc gojsonschema.ResultError) string {
	details := desc.Details()
	switch desc.Type() {
	case "required":
		if p, ok := details["property"].(string); ok {
			return p
		}
	case "additional_property_not_allowed":
		if p, ok := details["property"].(string); ok {
			return p
		}
	}
	return desc.Field()
}

func errorCode(kind string) string {
	switch kind {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "additional_property_not_allowed":
		return "EXTRA_FIELD"
	case "invalid_type":
		return "INVALID_TYPE"
	case "enum":
		return "INVALID_ENUM_VALUE"
	case "number_gte":
		return "MINIMUM_VIOLATION"
	case "number_lte":
		return "MAXIMUM_VIOLATION"
	default:
		return strings.ToUpper(kind)
	}
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Err converts a failed result into a VALIDATION_FAILED error, nil when valid.
func (vr *ValidationResult) Err() error {
	if vr.Valid {
		return nil
	}
	fields := make([]apperrors.FieldError, len(vr.Errors))
	for i, e := range vr.Errors {
		fields[i] = apperrors.FieldError{Field: e.Field, Message: e.Message}
	}
	return apperrors.NewValidationFailedError(fields)
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}
