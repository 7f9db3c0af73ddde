// internal/workers/scoring/score-application/validation.go
package scoreapplication

import (
	commonerrors "microloan-workers/internal/common/errors"
	"microloan-workers/internal/common/validation"
)

// inputSchema gates the job variable shape before the encoder sees the
// document. Numeric coercion (strings-as-numbers) is the encoder's job, so
// the schema only pins structure and presence here.
const inputSchema = `{
	"type": "object",
	"required": ["userId", "application"],
	"properties": {
		"userId": {"type": "string", "minLength": 1},
		"application": {
			"type": "object",
			"required": ["amount", "duration", "monthlyIncome", "creditHistory", "mobileMoneyHistory"],
			"properties": {
				"creditHistory": {"type": "string"},
				"mobileMoneyHistory": {
					"type": "object",
					"required": ["averageBalance", "transactionFrequency"]
				}
			}
		}
	}
}`

// validateInput checks the raw job variables against the input schema and
// folds failures into a single field-qualified validation error.
func validateInput(variables string) error {
	result, err := validation.ValidateJSON(inputSchema, variables)
	if err != nil {
		return commonerrors.NewValidationError("input", err.Error())
	}
	if !result.Valid {
		field := "input"
		if len(result.Errors) > 0 {
			field = result.Errors[0].Field
		}
		return commonerrors.NewValidationError(field, result.ErrorString())
	}
	return nil
}
