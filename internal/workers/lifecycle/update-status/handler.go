// internal/workers/lifecycle/update-status/handler.go
package updatestatus

import (
	"context"
	"encoding/json"
	"time"

	commonerrors "microloan-workers/internal/common/errors"
	"microloan-workers/internal/common/logger"
	"microloan-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "update-application-status"
)

// Controller is the slice of the lifecycle controller this worker drives.
type Controller interface {
	SetStatus(ctx context.Context, id, status, actorID, note string) (*models.Application, error)
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
	app, err := h.controller.SetStatus(ctx, input.ApplicationID, input.Status, input.ActorID, input.Note)
	if err != nil {
		return nil, err
	}

	// The accepted transition is the last history entry; the one before it,
	// if any, is what the record transitioned from.
	previous := ""
	if n := len(app.StatusHistory); n > 1 {
		previous = app.StatusHistory[n-2].Status
	}

	return &Output{
		ApplicationID:     app.ID,
		PreviousStatus:    previous,
		ApplicationStatus: app.Status,
		UpdatedAt:         app.UpdatedAt.Format(time.RFC3339),
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
