// internal/workers/scoring/score-application/handler.go
package scoreapplication

import (
	"context"
	"encoding/json"
	"time"

	commonerrors "microloan-workers/internal/common/errors"
	"microloan-workers/internal/common/logger"
	"microloan-workers/internal/ledger"
	"microloan-workers/internal/models"
	"microloan-workers/internal/risk"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "score-application"
)

// Handler scores one raw loan application, persists the scored record in
// pending status, and returns the prediction to the workflow.
type Handler struct {
	pipeline     *risk.Pipeline
	store        ledger.Store
	errorHandler *commonerrors.ErrorHandler
	timeout      time.Duration
	logger       logger.Logger
}

func NewHandler(config *Config, pipeline *risk.Pipeline, store ledger.Store, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		pipeline:     pipeline,
		store:        store,
		errorHandler: commonerrors.NewErrorHandler(l),
		timeout:      config.Timeout,
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := validateInput(job.Variables); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job,
			commonerrors.NewValidationError("input", err.Error()))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	var raw risk.RawApplication
	if err := json.Unmarshal(input.Application, &raw); err != nil {
		return nil, commonerrors.NewValidationError("application", err.Error())
	}

	// Encoded once for persistence; Predict re-encodes internally, which is
	// pure and cheap for six features.
	vector, err := risk.Encode(&raw)
	if err != nil {
		return nil, err
	}

	result, err := h.pipeline.Predict(&raw)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	app := &models.Application{
		ID:             uuid.New().String(),
		UserID:         input.UserID,
		Amount:         vector[0],
		Duration:       int(vector[1]),
		MonthlyIncome:  vector[2],
		CreditHistory:  *raw.CreditHistory,
		AvgBalance:     vector[4],
		TxnFrequency:   vector[5],
		RiskScore:      result.RiskScore,
		Recommendation: result.Recommendation,
		Explanation:    result.Explanation,
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.store.Create(ctx, app); err != nil {
		return nil, err
	}

	h.logger.Info("application scored", map[string]interface{}{
		"applicationId":  app.ID,
		"userId":         app.UserID,
		"riskScore":      app.RiskScore,
		"recommendation": app.Recommendation,
	})

	return &Output{
		ApplicationID:     app.ID,
		RiskScore:         result.RiskScore,
		Recommendation:    result.Recommendation,
		Explanation:       result.Explanation,
		ApplicationStatus: models.StatusPending,
		CreatedAt:         now.Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	} else {
		h.logger.Info("job completed successfully", map[string]interface{}{
			"jobKey": job.Key,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
