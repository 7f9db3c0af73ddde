// internal/workers/scoring/score-application/models.go
package scoreapplication

import (
	"encoding/json"

	"microloan-workers/internal/models"
)

type Input struct {
	UserID      string          `json:"userId"`
	Application json.RawMessage `json:"application"`
}

type Output struct {
	ApplicationID     string             `json:"applicationId"`
	RiskScore         float64            `json:"riskScore"`
	Recommendation    string             `json:"recommendation"`
	Explanation       models.Explanation `json:"explanation"`
	ApplicationStatus string             `json:"applicationStatus"`
	CreatedAt         string             `json:"createdAt"` // ISO 8601
}
