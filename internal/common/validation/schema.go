// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Result collects field-qualified validation failures for one document.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (r *Result) ErrorString() string {
	if len(r.Errors) == 0 {
		return ""
	}
	msg := ""
	for i, e := range r.Errors {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return msg
}

// ValidateJSON validates a JSON document against a JSON-schema document.
// Both are given as raw JSON strings.
func ValidateJSON(schemaJSON, documentJSON string) (*Result, error) {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewStringLoader(documentJSON)

	res, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed to run: %w", err)
	}

	out := &Result{Valid: res.Valid()}
	for _, e := range res.Errors() {
		field := e.Field()
		if field == "(root)" {
			// Required-property errors report the missing property name
			// in the details map rather than in Field().
			if p, ok := e.Details()["property"]; ok {
				field = fmt.Sprintf("%v", p)
			}
		}
		out.Errors = append(out.Errors, FieldError{
			Field:   field,
			Message: e.Description(),
		})
	}
	return out, nil
}
