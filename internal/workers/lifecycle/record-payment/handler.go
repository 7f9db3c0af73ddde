// internal/workers/lifecycle/record-payment/handler.go
package recordpayment

import (
	"context"
	"encoding/json"
	"time"

	commonerrors "microloan-workers/internal/common/errors"
	"microloan-workers/internal/common/logger"
	"microloan-workers/internal/ledger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "record-payment"
)

// Controller is the slice of the lifecycle controller this worker drives.
type Controller interface {
	RecordPayment(ctx context.Context, id string, amount float64, method, actorID string) (*ledger.PaymentReceipt, error)
}

type Handler struct {
	controller   Controller
	errorHandler *commonerrors.ErrorHandler
	timeout      time.Duration
	logger       logger.Logger
}

func NewHandler(config *Config, controller Controller, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		controller:   controller,
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
	receipt, err := h.controller.RecordPayment(ctx, input.ApplicationID, input.Amount, input.Method, input.ActorID)
	if err != nil {
		return nil, err
	}

	return &Output{
		ApplicationID:     input.ApplicationID,
		PaymentID:         receipt.PaymentID,
		ApplicationStatus: receipt.NewStatus,
		TotalPaid:         receipt.NewTotalPaid,
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
