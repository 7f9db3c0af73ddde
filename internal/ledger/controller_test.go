// internal/ledger/controller_test.go
package ledger

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	commonerrors "microloan-workers/internal/common/errors"
	"microloan-workers/internal/common/database"
	"microloan-workers/internal/common/logger"
	"microloan-workers/internal/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

// fakeStore implements Store in memory with the same atomicity contract as
// the postgres store: one mutex serializes mutations, so the overpayment
// check always runs against the committed total.
type fakeStore struct {
	mu     sync.Mutex
	apps   map[string]*models.Application
	audits []*models.StatusChangeAudit
}

func newFakeStore() *fakeStore {
	return &fakeStore{apps: map[string]*models.Application{}}
}

func (f *fakeStore) Create(_ context.Context, app *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[app.ID] = app
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, commonerrors.NewNotFoundError(id)
	}
	cp := *app
	return &cp, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string) ([]*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Application
	for _, app := range f.apps {
		if app.UserID == userID {
			cp := *app
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(_ context.Context, _ int) ([]*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Application
	for _, app := range f.apps {
		cp := *app
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id, newStatus, actorID, note string, now time.Time) (*models.Application, *models.StatusChangeAudit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, nil, commonerrors.NewNotFoundError(id)
	}

	audit := &models.StatusChangeAudit{
		ID:            "audit-" + now.Format("150405.000000000"),
		ApplicationID: id,
		NewStatus:     newStatus,
		ActorID:       actorID,
		Note:          note,
		Timestamp:     now,
	}
	if n := len(app.StatusHistory); n > 0 {
		audit.PreviousStatus = app.StatusHistory[n-1].Status
	}

	app.Status = newStatus
	app.UpdatedAt = now
	app.StatusHistory = append(app.StatusHistory, models.StatusChange{
		Status: newStatus, ActorID: actorID, Timestamp: now,
	})
	f.audits = append(f.audits, audit)

	cp := *app
	return &cp, audit, nil
}

func (f *fakeStore) ApplyPayment(_ context.Context, id string, payment *models.Payment) (string, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return "", 0, commonerrors.NewNotFoundError(id)
	}

	remaining := app.Amount - app.TotalPaid
	if payment.Amount > remaining+OverpaymentTolerance {
		return "", 0, commonerrors.NewOverpaymentError(payment.Amount, remaining)
	}

	app.Payments = append(app.Payments, *payment)
	app.TotalPaid += payment.Amount
	app.Status = PaymentStatus(app.TotalPaid, app.Amount, app.Status)
	app.UpdatedAt = payment.Timestamp
	return app.Status, app.TotalPaid, nil
}

type fakeCache struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, keys...)
	return nil
}

type fakeAuditor struct {
	mu      sync.Mutex
	indexed []*models.StatusChangeAudit
}

func (f *fakeAuditor) IndexStatusChange(_ context.Context, audit *models.StatusChangeAudit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, audit)
}

func seedApplication(t *testing.T, store *fakeStore, amount float64, status string) string {
	t.Helper()
	app := &models.Application{
		ID:        "app-001",
		UserID:    "user-001",
		Amount:    amount,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Create(context.Background(), app))
	return app.ID
}

// ==========================
// SetStatus
// ==========================

func TestSetStatus_RejectsUnknownValue(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, nil, nil, logger.NewTestLogger(t))

	_, err := ctrl.SetStatus(context.Background(), "app-001", "fully_paid", "admin-1", "")

	require.Error(t, err)
	assert.True(t, commonerrors.IsValidation(err))
	assert.Equal(t, "status", commonerrors.AsStandard(err).Metadata["field"])
}

func TestSetStatus_UnknownApplication(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, nil, nil, logger.NewTestLogger(t))

	_, err := ctrl.SetStatus(context.Background(), "missing", models.StatusApproved, "admin-1", "")

	require.Error(t, err)
	assert.True(t, commonerrors.IsNotFound(err))
}

func TestSetStatus_AppendsHistoryAndAudit(t *testing.T) {
	store := newFakeStore()
	auditor := &fakeAuditor{}
	cache := &fakeCache{}
	ctrl := NewController(store, cache, auditor, logger.NewTestLogger(t))
	id := seedApplication(t, store, 1000, models.StatusPending)

	app, err := ctrl.SetStatus(context.Background(), id, models.StatusApproved, "admin-1", "income verified")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, app.Status)

	app, err = ctrl.SetStatus(context.Background(), id, models.StatusDisbursed, "admin-2", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisbursed, app.Status)

	// Two transitions, two history entries in order.
	require.Len(t, app.StatusHistory, 2)
	assert.Equal(t, models.StatusApproved, app.StatusHistory[0].Status)
	assert.Equal(t, models.StatusDisbursed, app.StatusHistory[1].Status)

	// Two immutable audit entries, second carrying the first as previous.
	require.Len(t, auditor.indexed, 2)
	assert.Empty(t, auditor.indexed[0].PreviousStatus)
	assert.Equal(t, models.StatusApproved, auditor.indexed[1].PreviousStatus)
	assert.Equal(t, models.StatusDisbursed, auditor.indexed[1].NewStatus)
	assert.Equal(t, "income verified", auditor.indexed[0].Note)

	// Cache slot dropped on every mutation.
	assert.Equal(t, []string{CacheKey(id), CacheKey(id)}, cache.deleted)
}

func TestSetStatus_OverwriteIsUnconditional(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, nil, nil, logger.NewTestLogger(t))
	id := seedApplication(t, store, 1000, models.StatusRejected)

	// rejected back to pending is an allowed administrative correction
	app, err := ctrl.SetStatus(context.Background(), id, models.StatusPending, "admin-1", "appeal granted")

	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, app.Status)
}

// ==========================
// RecordPayment
// ==========================

func TestRecordPayment_ValidatesAmount(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, nil, nil, logger.NewTestLogger(t))
	seedApplication(t, store, 1000, models.StatusDisbursed)

	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := ctrl.RecordPayment(context.Background(), "app-001", amount, "cash", "officer-1")
		require.Error(t, err)
		assert.True(t, commonerrors.IsValidation(err))
		assert.Equal(t, "amount", commonerrors.AsStandard(err).Metadata["field"])
	}
}

func TestRecordPayment_PartialThenFull(t *testing.T) {
	store := newFakeStore()
	cache := &fakeCache{}
	ctrl := NewController(store, cache, nil, logger.NewTestLogger(t))
	id := seedApplication(t, store, 1000, models.StatusDisbursed)

	receipt, err := ctrl.RecordPayment(context.Background(), id, 400, "mobile_money", "officer-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartiallyPaid, receipt.NewStatus)
	assert.Equal(t, 400.0, receipt.NewTotalPaid)
	assert.NotEmpty(t, receipt.PaymentID)

	receipt, err = ctrl.RecordPayment(context.Background(), id, 600, "mobile_money", "officer-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFullyPaid, receipt.NewStatus)
	assert.Equal(t, 1000.0, receipt.NewTotalPaid)

	app, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, app.Payments, 2)
	assert.Len(t, cache.deleted, 2)
}

func TestRecordPayment_OverpaymentSurfacesBalance(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, nil, nil, logger.NewTestLogger(t))
	id := seedApplication(t, store, 1000, models.StatusDisbursed)

	_, err := ctrl.RecordPayment(context.Background(), id, 900, "cash", "officer-1")
	require.NoError(t, err)

	_, err = ctrl.RecordPayment(context.Background(), id, 100.02, "cash", "officer-1")
	require.Error(t, err)
	assert.True(t, commonerrors.IsOverpayment(err))
	assert.InDelta(t, 100.0, commonerrors.AsStandard(err).Metadata["remainingBalance"].(float64), 1e-9)

	// Rejected payment must leave no trace.
	app, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 900.0, app.TotalPaid)
	assert.Len(t, app.Payments, 1)
}

func TestRecordPayment_ConcurrentPaymentsNeverOvercommit(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, nil, nil, logger.NewNoOpLogger())
	id := seedApplication(t, store, 1000, models.StatusDisbursed)

	// 20 workers each try to pay 100 against a 1000 balance. Exactly ten
	// can land; the rest must be rejected as overpayments.
	const workers = 20
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = ctrl.RecordPayment(context.Background(), id, 100, "cash", "officer-1")
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
		} else {
			assert.True(t, commonerrors.IsOverpayment(err))
		}
	}
	assert.Equal(t, 10, accepted)

	app, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, app.TotalPaid)
	assert.Equal(t, models.StatusFullyPaid, app.Status)
	assert.Len(t, app.Payments, 10)
}

func TestSetStatus_InvalidatesRedisKey(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := newFakeStore()
	ctrl := NewController(store, &database.RedisClient{Client: db}, nil, logger.NewTestLogger(t))
	id := seedApplication(t, store, 1000, models.StatusPending)

	mock.ExpectDel(CacheKey(id)).SetVal(1)

	_, err := ctrl.SetStatus(context.Background(), id, models.StatusApproved, "admin-1", "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
