// pkg/artifact/schema.go
package artifact

// Model is the frozen logistic-regression scoring artifact, produced by the
// offline training job. The engine never fits or tunes it.
type Model struct {
	Version      string    `json:"version"`
	TrainedAt    string    `json:"trainedAt"`
	FeatureNames []string  `json:"featureNames"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// Background is the fixed reference sample the explainer is initialized
// with. Rows are already encoded in the model's feature order.
type Background struct {
	Version      string      `json:"version"`
	FeatureNames []string    `json:"featureNames"`
	Rows         [][]float64 `json:"rows"`
}
