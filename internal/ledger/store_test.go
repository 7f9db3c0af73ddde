// internal/ledger/store_test.go
package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	commonerrors "microloan-workers/internal/common/errors"
	"microloan-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresStore(db), mock, func() { db.Close() }
}

func testPayment(amount float64) *models.Payment {
	return &models.Payment{
		ID:        "payment-001",
		Amount:    amount,
		Method:    "mobile_money",
		ActorID:   "officer-1",
		Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func expectPaymentRow(mock sqlmock.Sqlmock, loanAmount, totalPaid float64, status string) {
	mock.ExpectQuery(`SELECT amount, total_paid, status FROM loan_applications`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"amount", "total_paid", "status"}).
			AddRow(loanAmount, totalPaid, status))
}

// ==========================
// PaymentStatus
// ==========================

func TestPaymentStatus(t *testing.T) {
	tests := []struct {
		name       string
		totalPaid  float64
		loanAmount float64
		current    string
		want       string
	}{
		{"no payments yet keeps status", 0, 1000, models.StatusDisbursed, models.StatusDisbursed},
		{"partial payment", 400, 1000, models.StatusDisbursed, models.StatusPartiallyPaid},
		{"exact payoff", 1000, 1000, models.StatusPartiallyPaid, models.StatusFullyPaid},
		{"payoff within tolerance overshoot", 1000.009, 1000, models.StatusPartiallyPaid, models.StatusFullyPaid},
		{"one cent short stays partial", 999.99, 1000, models.StatusDisbursed, models.StatusPartiallyPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PaymentStatus(tt.totalPaid, tt.loanAmount, tt.current))
		})
	}
}

// ==========================
// ApplyPayment
// ==========================

func TestApplyPayment_PartialPayment(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectBegin()
	expectPaymentRow(mock, 1000, 0, models.StatusDisbursed)
	mock.ExpectExec(`INSERT INTO loan_payments`).
		WithArgs("payment-001", "app-001", 400.0, "mobile_money", "officer-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE loan_applications SET total_paid`).
		WithArgs(400.0, models.StatusPartiallyPaid, sqlmock.AnyArg(), "app-001").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	newStatus, newTotal, err := store.ApplyPayment(context.Background(), "app-001", testPayment(400))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusPartiallyPaid, newStatus)
	assert.Equal(t, 400.0, newTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayment_FinalPaymentFullyPays(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectBegin()
	expectPaymentRow(mock, 1000, 600, models.StatusPartiallyPaid)
	mock.ExpectExec(`INSERT INTO loan_payments`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE loan_applications SET total_paid`).
		WithArgs(1000.0, models.StatusFullyPaid, sqlmock.AnyArg(), "app-001").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	newStatus, newTotal, err := store.ApplyPayment(context.Background(), "app-001", testPayment(400))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusFullyPaid, newStatus)
	assert.Equal(t, 1000.0, newTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayment_OverpaymentRejected(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectBegin()
	expectPaymentRow(mock, 1000, 900, models.StatusPartiallyPaid)
	mock.ExpectRollback()

	// Remaining balance is 100; 100.02 exceeds it beyond tolerance.
	_, _, err := store.ApplyPayment(context.Background(), "app-001", testPayment(100.02))

	require.Error(t, err)
	assert.True(t, commonerrors.IsOverpayment(err))
	stdErr := commonerrors.AsStandard(err)
	require.NotNil(t, stdErr)
	assert.Equal(t, 100.02, stdErr.Metadata["amount"])
	assert.InDelta(t, 100.0, stdErr.Metadata["remainingBalance"].(float64), 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayment_OverpaymentWithinToleranceAccepted(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectBegin()
	expectPaymentRow(mock, 1000, 900, models.StatusPartiallyPaid)
	mock.ExpectExec(`INSERT INTO loan_payments`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE loan_applications SET total_paid`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	newStatus, _, err := store.ApplyPayment(context.Background(), "app-001", testPayment(100.005))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusFullyPaid, newStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayment_UnknownApplication(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT amount, total_paid, status FROM loan_applications`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"amount", "total_paid", "status"}))
	mock.ExpectRollback()

	_, _, err := store.ApplyPayment(context.Background(), "app-001", testPayment(100))

	require.Error(t, err)
	assert.True(t, commonerrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayment_InsertFailureRollsBack(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectBegin()
	expectPaymentRow(mock, 1000, 0, models.StatusDisbursed)
	mock.ExpectExec(`INSERT INTO loan_payments`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, _, err := store.ApplyPayment(context.Background(), "app-001", testPayment(100))

	require.Error(t, err)
	assert.True(t, commonerrors.IsStorage(err))
	assert.True(t, commonerrors.AsStandard(err).Retryable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// UpdateStatus
// ==========================

func TestUpdateStatus_FirstTransitionHasNoPrevious(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM loan_applications`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.StatusPending))
	mock.ExpectQuery(`SELECT status FROM status_history`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectExec(`UPDATE loan_applications SET status`).
		WithArgs(models.StatusApproved, now, "app-001").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO status_history`).
		WithArgs("app-001", models.StatusApproved, "admin-1", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO status_change_audit`).
		WithArgs(sqlmock.AnyArg(), "app-001", sqlmock.AnyArg(), models.StatusApproved, "admin-1", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// Post-commit re-read of the full record.
	mock.ExpectQuery(`SELECT id, user_id`).
		WithArgs("app-001").
		WillReturnRows(applicationRow(models.StatusApproved))
	mock.ExpectQuery(`SELECT id, amount, method`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "method", "actor_id", "created_at"}))
	mock.ExpectQuery(`SELECT status, actor_id`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"status", "actor_id", "created_at"}).
			AddRow(models.StatusApproved, "admin-1", now))

	app, audit, err := store.UpdateStatus(context.Background(), "app-001", models.StatusApproved, "admin-1", "income verified", now)

	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, app.Status)
	assert.Empty(t, audit.PreviousStatus)
	assert.Equal(t, models.StatusApproved, audit.NewStatus)
	assert.Equal(t, "admin-1", audit.ActorID)
	assert.NotEmpty(t, audit.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_CarriesPreviousFromHistory(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM loan_applications`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.StatusApproved))
	mock.ExpectQuery(`SELECT status FROM status_history`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.StatusApproved))
	mock.ExpectExec(`UPDATE loan_applications SET status`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO status_history`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO status_change_audit`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT id, user_id`).
		WithArgs("app-001").
		WillReturnRows(applicationRow(models.StatusDisbursed))
	mock.ExpectQuery(`SELECT id, amount, method`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "method", "actor_id", "created_at"}))
	mock.ExpectQuery(`SELECT status, actor_id`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"status", "actor_id", "created_at"}))

	_, audit, err := store.UpdateStatus(context.Background(), "app-001", models.StatusDisbursed, "admin-1", "", now)

	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, audit.PreviousStatus)
	assert.Equal(t, models.StatusDisbursed, audit.NewStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_UnknownApplication(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM loan_applications`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	_, _, err := store.UpdateStatus(context.Background(), "missing", models.StatusApproved, "admin-1", "", time.Now().UTC())

	require.Error(t, err)
	assert.True(t, commonerrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Get
// ==========================

func TestGet_LoadsPaymentsAndHistory(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, user_id`).
		WithArgs("app-001").
		WillReturnRows(applicationRow(models.StatusPartiallyPaid))
	mock.ExpectQuery(`SELECT id, amount, method`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "method", "actor_id", "created_at"}).
			AddRow("payment-001", 400.0, "mobile_money", "officer-1", now))
	mock.ExpectQuery(`SELECT status, actor_id`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"status", "actor_id", "created_at"}).
			AddRow(models.StatusApproved, "admin-1", now).
			AddRow(models.StatusDisbursed, "admin-1", now))

	app, err := store.Get(context.Background(), "app-001")

	require.NoError(t, err)
	assert.Equal(t, "app-001", app.ID)
	assert.Len(t, app.Payments, 1)
	assert.Equal(t, 400.0, app.Payments[0].Amount)
	assert.Len(t, app.StatusHistory, 2)
	assert.Equal(t, models.StatusApproved, app.StatusHistory[0].Status)
	assert.InDelta(t, 0.42, app.Explanation.BaseValue, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectQuery(`SELECT id, user_id`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, commonerrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func applicationRow(status string) *sqlmock.Rows {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	explanation := []byte(`{"baseValue":0.42,"featureImportances":{"amount":0.1}}`)
	return sqlmock.NewRows([]string{
		"id", "user_id", "amount", "duration", "monthly_income", "credit_history",
		"avg_balance", "txn_frequency", "risk_score", "recommendation",
		"explanation", "status", "total_paid", "created_at", "updated_at",
	}).AddRow(
		"app-001", "user-001", 1000.0, 12, 3000.0, "good",
		1500.0, 25.0, 0.25, models.RecommendationApproved,
		explanation, status, 400.0, now, now,
	)
}
