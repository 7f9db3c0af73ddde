// internal/risk/pipeline.go
package risk

import (
	"time"

	commonerrors "microloan-workers/internal/common/errors"
	"microloan-workers/internal/common/logger"
	"microloan-workers/internal/common/metrics"
	"microloan-workers/internal/models"
	"microloan-workers/pkg/artifact"
)

// Recommendation thresholds. Fixed, not configurable per request.
const (
	ApproveBelow = 0.3
	RejectFrom   = 0.7
)

// Recommend maps a risk score onto the fixed recommendation bands.
func Recommend(riskScore float64) string {
	switch {
	case riskScore < ApproveBelow:
		return models.RecommendationApproved
	case riskScore < RejectFrom:
		return models.RecommendationReview
	default:
		return models.RecommendationRejected
	}
}

// Pipeline orchestrates encode, score, explain and threshold for one raw
// application. It persists nothing; persistence is the caller's concern
// after a successful result.
type Pipeline struct {
	scorer    *Scorer
	explainer *Explainer
	logger    logger.Logger
}

func NewPipeline(scorer *Scorer, explainer *Explainer, log logger.Logger) *Pipeline {
	return &Pipeline{
		scorer:    scorer,
		explainer: explainer,
		logger:    log,
	}
}

// Initialize loads the frozen model artifact and background sample exactly
// once and returns the pipeline handle call sites inject. A load failure
// is not fatal to process start: the returned pipeline reports the same
// MODEL_UNAVAILABLE condition on every Predict until restart.
func Initialize(modelPath, backgroundPath string, log logger.Logger) *Pipeline {
	art, err := artifact.LoadModel(modelPath)
	if err != nil {
		log.Error("model artifact load failed", map[string]interface{}{
			"path":  modelPath,
			"error": err.Error(),
		})
		return NewPipeline(NewUnavailableScorer(err), NewUnavailableExplainer(err), log)
	}

	model, err := NewModel(art)
	if err != nil {
		log.Error("model artifact rejected", map[string]interface{}{
			"path":  modelPath,
			"error": err.Error(),
		})
		return NewPipeline(NewUnavailableScorer(err), NewUnavailableExplainer(err), log)
	}

	bg, err := artifact.LoadBackground(backgroundPath)
	if err != nil {
		log.Error("background sample load failed", map[string]interface{}{
			"path":  backgroundPath,
			"error": err.Error(),
		})
		return NewPipeline(NewUnavailableScorer(err), NewUnavailableExplainer(err), log)
	}

	explainer, err := NewExplainer(model, bg)
	if err != nil {
		log.Error("background sample rejected", map[string]interface{}{
			"path":  backgroundPath,
			"error": err.Error(),
		})
		return NewPipeline(NewUnavailableScorer(err), NewUnavailableExplainer(err), log)
	}

	log.Info("scoring model loaded", map[string]interface{}{
		"modelVersion":      model.Version(),
		"backgroundVersion": bg.Version,
		"backgroundRows":    len(bg.Rows),
	})
	return NewPipeline(NewScorer(model), explainer, log)
}

// Available reports whether the frozen model loaded at startup.
func (p *Pipeline) Available() bool {
	return p.scorer.Available()
}

// Predict runs encode, score, explain and threshold. Validation and
// model-unavailable failures propagate unchanged; any other internal
// failure is logged with full detail and reported as an opaque internal
// error.
func (p *Pipeline) Predict(raw *RawApplication) (*models.PredictionResult, error) {
	start := time.Now()

	vector, err := Encode(raw)
	if err != nil {
		return nil, err
	}

	score, err := p.scorer.Score(vector)
	if err != nil {
		return nil, p.sanitize("score", err)
	}

	explanation, err := p.explainer.Explain(vector)
	if err != nil {
		return nil, p.sanitize("explain", err)
	}

	recommendation := Recommend(score)
	metrics.PredictionsTotal.WithLabelValues(recommendation).Inc()
	metrics.PredictionDuration.Observe(time.Since(start).Seconds())

	return &models.PredictionResult{
		RiskScore:      score,
		Recommendation: recommendation,
		Explanation:    explanation,
	}, nil
}

// sanitize passes taxonomy errors through and converts everything else
// into an opaque internal error, keeping scoring internals out of caller
// responses.
func (p *Pipeline) sanitize(stage string, err error) error {
	if stdErr := commonerrors.AsStandard(err); stdErr != nil {
		return stdErr
	}
	p.logger.Error("prediction pipeline failed", map[string]interface{}{
		"stage": stage,
		"error": err.Error(),
	})
	return commonerrors.NewInternalError(err)
}
