// internal/models/prediction.go
package models

// Recommendation values derived from the fixed risk thresholds.
const (
	RecommendationApproved = "approved"
	RecommendationReview   = "review"
	RecommendationRejected = "rejected"
)

// PredictionResult is the structured output of the scoring pipeline.
type PredictionResult struct {
	RiskScore      float64     `json:"riskScore"`
	Recommendation string      `json:"recommendation"`
	Explanation    Explanation `json:"explanation"`
}

// Explanation is the additive attribution of one score: BaseValue plus the
// sum of FeatureImportances equals RiskScore.
type Explanation struct {
	BaseValue          float64            `json:"baseValue"`
	FeatureImportances map[string]float64 `json:"featureImportances"`
}
