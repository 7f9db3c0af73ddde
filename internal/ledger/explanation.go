// internal/ledger/explanation.go
package ledger

import (
	"encoding/json"

	"microloan-workers/internal/models"
)

// The explanation is stored as a JSONB column rather than normalized rows:
// it is written once at scoring time and only ever read back whole.

func marshalExplanation(e models.Explanation) ([]byte, error) {
	return json.Marshal(e)
}

func unmarshalExplanation(data []byte, e *models.Explanation) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, e)
}
