package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const rootField = "(root)"

// Schema is a compiled JSON schema used to check job variables and request bodies.
type Schema struct {
	compiled *gojsonschema.Schema
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Compile parses a JSON schema document.
func Compile(schemaJSON string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateJSON validates a raw JSON document such as job.Variables.
func (s *Schema) ValidateJSON(raw []byte) *ValidationResult {
	return s.validate(gojsonschema.NewBytesLoader(raw))
}

// Validate validates an already decoded Go value.
func (s *Schema) Validate(doc interface{}) *ValidationResult {
	return s.validate(gojsonschema.NewGoLoader(doc))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) *ValidationResult {
	result, err := s.compiled.Validate(loader)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   rootField,
				Message: err.Error(),
				Code:    "INVALID_DOCUMENT",
			}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, re := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldOf(re),
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		})
	}
	return out
}

// fieldOf reports the offending property for "required" errors, which the
// library attaches to the parent object.
func fieldOf(re gojsonschema.ResultError) string {
	field := re.Field()
	if re.Type() != "required" {
		return field
	}
	prop, ok := re.Details()["property"].(string)
	if !ok || prop == "" || field == prop || strings.HasSuffix(field, "."+prop) {
		return field
	}
	if field == rootField || field == "" {
		return prop
	}
	return field + "." + prop
}

// Error joins the messages into one string, or returns "" when valid.
func (vr *ValidationResult) Error() string {
	if vr.Valid {
		return ""
	}
	return strings.Join(vr.GetErrorMessages(), "; ")
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
	return len(vr.GetErrorsForField(field)) > 0
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}
