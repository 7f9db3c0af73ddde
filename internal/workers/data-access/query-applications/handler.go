// internal/workers/data-access/query-applications/handler.go
package queryapplications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	commonerrors "microloan-workers/internal/common/errors"
	"microloan-workers/internal/common/logger"
	"microloan-workers/internal/ledger"
	"microloan-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "query-applications"
)

// Cache is the slice of the redis client the read-through path needs. Any
// cache failure degrades to a ledger read, never to a job failure.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type Handler struct {
	store        ledger.Store
	cache        Cache
	config       *Config
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, store ledger.Store, cache Cache, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		store:        store,
		cache:        cache,
		config:       config,
		errorHandler: commonerrors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
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
	start := time.Now()

	var output *Output
	var err error
	switch input.QueryType {
	case QueryTypeGetApplication:
		output, err = h.getApplication(ctx, input.ApplicationID)
	case QueryTypeListByUser:
		output, err = h.listByUser(ctx, input.UserID)
	case QueryTypeListApplications:
		limit := input.Limit
		if limit <= 0 {
			limit = h.config.DefaultLimit
		}
		output, err = h.listAll(ctx, limit)
	default:
		return nil, commonerrors.NewValidationError("queryType",
			fmt.Sprintf("unknown query type %q", input.QueryType))
	}
	if err != nil {
		return nil, err
	}

	output.QueryExecutionTime = time.Since(start).Milliseconds()
	return output, nil
}

// getApplication serves single-record reads through the cache. The cached
// copy is the serialized record; lifecycle mutations drop it, so a hit is
// never staler than the last accepted mutation.
func (h *Handler) getApplication(ctx context.Context, id string) (*Output, error) {
	if id == "" {
		return nil, commonerrors.NewValidationError("applicationId", "applicationId is required")
	}

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, ledger.CacheKey(id)); err == nil {
			var app models.Application
			if err := json.Unmarshal([]byte(cached), &app); err == nil {
				return &Output{Data: &app, RowCount: 1, CacheHit: true}, nil
			}
		}
	}

	app, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if data, err := json.Marshal(app); err == nil {
			if err := h.cache.Set(ctx, ledger.CacheKey(id), string(data), h.config.CacheTTL); err != nil {
				h.logger.Warn("cache write failed", map[string]interface{}{
					"applicationId": id,
					"error":         err.Error(),
				})
			}
		}
	}

	return &Output{Data: app, RowCount: 1, CacheHit: false}, nil
}

func (h *Handler) listByUser(ctx context.Context, userID string) (*Output, error) {
	if userID == "" {
		return nil, commonerrors.NewValidationError("userId", "userId is required")
	}

	apps, err := h.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Output{Data: apps, RowCount: len(apps)}, nil
}

func (h *Handler) listAll(ctx context.Context, limit int) (*Output, error) {
	apps, err := h.store.ListAll(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &Output{Data: apps, RowCount: len(apps)}, nil
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
