// internal/risk/model.go
package risk

import (
	"fmt"
	"math"

	"microloan-workers/pkg/artifact"
)

// Model is the frozen binary classifier behind the scorer and explainer.
// It is built once at process start and treated as read-only shared state
// afterwards; concurrent reads need no synchronization.
type Model struct {
	version      string
	coefficients []float64
	intercept    float64
}

// NewModel validates a loaded artifact against the engine's fixed feature
// schema and freezes it.
func NewModel(art *artifact.Model) (*Model, error) {
	if err := art.Validate(); err != nil {
		return nil, err
	}
	if len(art.FeatureNames) != NumFeatures {
		return nil, fmt.Errorf("model %q has %d features, engine expects %d",
			art.Version, len(art.FeatureNames), NumFeatures)
	}
	for i, name := range art.FeatureNames {
		if name != FeatureColumns[i] {
			return nil, fmt.Errorf("model %q feature %d is %q, engine expects %q",
				art.Version, i, name, FeatureColumns[i])
		}
	}

	coefs := make([]float64, NumFeatures)
	copy(coefs, art.Coefficients)

	return &Model{
		version:      art.Version,
		coefficients: coefs,
		intercept:    art.Intercept,
	}, nil
}

// Version returns the artifact version the model was frozen from.
func (m *Model) Version() string {
	return m.version
}

// PredictProba evaluates the default-risk probability for one encoded
// vector: sigmoid(intercept + w.x).
func (m *Model) PredictProba(v FeatureVector) (float64, error) {
	if len(v) != NumFeatures {
		return 0, fmt.Errorf("feature vector has %d components, want %d", len(v), NumFeatures)
	}
	z := m.intercept
	for i, w := range m.coefficients {
		z += w * v[i]
	}
	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
