// internal/risk/scorer.go
package risk

import (
	commonerrors "microloan-workers/internal/common/errors"
)

// Scorer wraps the frozen model. If the artifact failed to load at process
// start the failure is captured once and every subsequent Score call
// reports the same fatal condition; the scorer never attempts a reload,
// which would mask the startup failure and cost latency per call.
type Scorer struct {
	model   *Model
	loadErr error
}

// NewScorer builds a scorer over a successfully loaded model.
func NewScorer(model *Model) *Scorer {
	return &Scorer{model: model}
}

// NewUnavailableScorer builds a scorer that reports the given startup
// failure on every call.
func NewUnavailableScorer(loadErr error) *Scorer {
	return &Scorer{loadErr: loadErr}
}

// Available reports whether the backing model loaded at startup.
func (s *Scorer) Available() bool {
	return s.model != nil
}

// Score produces the default-risk probability in [0,1] for one encoded
// vector. Stateless and safe for concurrent use once loaded.
func (s *Scorer) Score(v FeatureVector) (float64, error) {
	if s.model == nil {
		return 0, commonerrors.NewModelUnavailableError(s.loadErr)
	}
	return s.model.PredictProba(v)
}
