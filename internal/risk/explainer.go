// internal/risk/explainer.go
package risk

import (
	"fmt"
	"math/bits"

	commonerrors "microloan-workers/internal/common/errors"
	"microloan-workers/internal/models"
	"microloan-workers/pkg/artifact"
)

// Explainer computes exact additive (Shapley) feature attributions against
// a fixed background sample captured once at startup alongside the model.
// With six features the 2^6 coalitions are enumerated outright, so the
// attribution is exact: baseValue plus the sum of all contributions equals
// the scored probability to float precision. The background sample is
// shared read-only across calls; it is never resampled, which keeps
// explanations for the same input reproducible.
type Explainer struct {
	model      *Model
	background []FeatureVector
	bgVersion  string
	loadErr    error

	// Shapley kernel weights indexed by coalition size: |S|!(n-|S|-1)!/n!.
	weights []float64
}

// NewExplainer builds an explainer over a loaded model and its companion
// background sample.
func NewExplainer(model *Model, bg *artifact.Background) (*Explainer, error) {
	if err := bg.Validate(NumFeatures); err != nil {
		return nil, err
	}

	rows := make([]FeatureVector, len(bg.Rows))
	for i, row := range bg.Rows {
		v := make(FeatureVector, NumFeatures)
		copy(v, row)
		rows[i] = v
	}

	weights := make([]float64, NumFeatures)
	for s := 0; s < NumFeatures; s++ {
		weights[s] = float64(factorial(s)*factorial(NumFeatures-s-1)) / float64(factorial(NumFeatures))
	}

	return &Explainer{
		model:      model,
		background: rows,
		bgVersion:  bg.Version,
		weights:    weights,
	}, nil
}

// NewUnavailableExplainer builds an explainer that reports the given
// startup failure on every call.
func NewUnavailableExplainer(loadErr error) *Explainer {
	return &Explainer{loadErr: loadErr}
}

// BackgroundVersion returns the version of the injected background sample.
func (e *Explainer) BackgroundVersion() string {
	return e.bgVersion
}

// Explain decomposes the prediction for v into a baseline plus one signed
// contribution per feature. Deterministic for a fixed model, background
// sample, and input.
func (e *Explainer) Explain(v FeatureVector) (models.Explanation, error) {
	if e.model == nil {
		return models.Explanation{}, commonerrors.NewModelUnavailableError(e.loadErr)
	}
	if len(v) != NumFeatures {
		return models.Explanation{}, fmt.Errorf("feature vector has %d components, want %d", len(v), NumFeatures)
	}

	// coalitionValue[mask] is the expected model output when the features
	// in mask take the instance's values and the rest are drawn from the
	// background sample.
	const coalitions = 1 << NumFeatures
	values := make([]float64, coalitions)
	blend := make(FeatureVector, NumFeatures)
	for mask := 0; mask < coalitions; mask++ {
		sum := 0.0
		for _, bg := range e.background {
			for i := 0; i < NumFeatures; i++ {
				if mask&(1<<i) != 0 {
					blend[i] = v[i]
				} else {
					blend[i] = bg[i]
				}
			}
			p, err := e.model.PredictProba(blend)
			if err != nil {
				return models.Explanation{}, err
			}
			sum += p
		}
		values[mask] = sum / float64(len(e.background))
	}

	importances := make(map[string]float64, NumFeatures)
	for i := 0; i < NumFeatures; i++ {
		phi := 0.0
		for mask := 0; mask < coalitions; mask++ {
			if mask&(1<<i) != 0 {
				continue
			}
			phi += e.weights[bits.OnesCount(uint(mask))] * (values[mask|1<<i] - values[mask])
		}
		importances[FeatureColumns[i]] = phi
	}

	return models.Explanation{
		BaseValue:          values[0],
		FeatureImportances: importances,
	}, nil
}

func factorial(n int) int {
	f := 1
	for i := 2; i <= n; i++ {
		f *= i
	}
	return f
}
