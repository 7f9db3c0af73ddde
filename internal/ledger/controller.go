// internal/ledger/controller.go
package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	commonerrors "microloan-workers/internal/common/errors"
	"microloan-workers/internal/common/logger"
	"microloan-workers/internal/common/metrics"
	"microloan-workers/internal/models"

	"github.com/google/uuid"
)

// Invalidator drops cached copies of a record after a mutation. Satisfied
// by the redis client; nil disables caching.
type Invalidator interface {
	Del(ctx context.Context, keys ...string) error
}

// Auditor receives every accepted status transition for indexing. Nil
// disables audit indexing; indexing failures never fail the transition.
type Auditor interface {
	IndexStatusChange(ctx context.Context, audit *models.StatusChangeAudit)
}

// CacheKey is the cache slot holding the serialized record for one id.
func CacheKey(id string) string {
	return "app:" + id
}

// PaymentReceipt is the outcome of one accepted payment.
type PaymentReceipt struct {
	PaymentID    string  `json:"paymentId"`
	NewStatus    string  `json:"newStatus"`
	NewTotalPaid float64 `json:"newTotalPaid"`
}

// Controller validates lifecycle mutation requests and applies them
// through the store. All side effects that must survive (row mutation,
// history, audit) happen inside the store's transaction; cache drops and
// audit indexing are best effort afterwards.
type Controller struct {
	store   Store
	cache   Invalidator
	auditor Auditor
	logger  logger.Logger
}

func NewController(store Store, cache Invalidator, auditor Auditor, log logger.Logger) *Controller {
	return &Controller{
		store:   store,
		cache:   cache,
		auditor: auditor,
		logger:  log,
	}
}

// SetStatus overwrites the record status with an administrative value.
// Payment-derived statuses are rejected here; they only ever come out of
// the payment path.
func (c *Controller) SetStatus(ctx context.Context, id, status, actorID, note string) (*models.Application, error) {
	if id == "" {
		return nil, commonerrors.NewValidationError("applicationId", "applicationId is required")
	}
	if !models.IsAdminStatus(status) {
		return nil, commonerrors.NewValidationError("status",
			fmt.Sprintf("status must be one of [%s], got %q", strings.Join(models.AdminStatuses, " "), status))
	}

	app, audit, err := c.store.UpdateStatus(ctx, id, status, actorID, note, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues(status).Inc()
	c.invalidate(ctx, id)
	if c.auditor != nil {
		c.auditor.IndexStatusChange(ctx, audit)
	}

	c.logger.Info("application status updated", map[string]interface{}{
		"applicationId":  id,
		"previousStatus": audit.PreviousStatus,
		"newStatus":      status,
		"actorId":        actorID,
	})
	return app, nil
}

// RecordPayment validates and applies one repayment. The overpayment check
// and the status recompute happen atomically in the store under the
// record's row lock.
func (c *Controller) RecordPayment(ctx context.Context, id string, amount float64, method, actorID string) (*PaymentReceipt, error) {
	if id == "" {
		return nil, commonerrors.NewValidationError("applicationId", "applicationId is required")
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, commonerrors.NewValidationError("amount", "amount must be a finite number")
	}
	if amount <= 0 {
		return nil, commonerrors.NewValidationError("amount", "amount must be positive")
	}

	payment := &models.Payment{
		ID:        uuid.New().String(),
		Amount:    amount,
		Method:    method,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	}

	newStatus, newTotal, err := c.store.ApplyPayment(ctx, id, payment)
	if err != nil {
		return nil, err
	}

	metrics.PaymentsRecorded.WithLabelValues(newStatus).Inc()
	c.invalidate(ctx, id)

	c.logger.Info("payment recorded", map[string]interface{}{
		"applicationId": id,
		"paymentId":     payment.ID,
		"amount":        amount,
		"newStatus":     newStatus,
		"newTotalPaid":  newTotal,
	})
	return &PaymentReceipt{
		PaymentID:    payment.ID,
		NewStatus:    newStatus,
		NewTotalPaid: newTotal,
	}, nil
}

func (c *Controller) invalidate(ctx context.Context, id string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Del(ctx, CacheKey(id)); err != nil {
		c.logger.Warn("cache invalidation failed", map[string]interface{}{
			"applicationId": id,
			"error":         err.Error(),
		})
	}
}
