// internal/ledger/store.go
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	commonerrors "microloan-workers/internal/common/errors"
	"microloan-workers/internal/models"

	"github.com/google/uuid"
)

// OverpaymentTolerance is the slack, in currency units, allowed between a
// payment and the remaining balance before the payment is rejected
// outright. Rejecting instead of clamping means no partial payment is ever
// silently created.
const OverpaymentTolerance = 0.01

// PaymentStatus recomputes the record status from the new paid total. Pure
// function of the accumulator versus the loan amount; statuses outside the
// payment workflow are left unchanged until the first payment lands.
func PaymentStatus(totalPaid, loanAmount float64, current string) string {
	switch {
	case totalPaid >= loanAmount:
		return models.StatusFullyPaid
	case totalPaid > 0:
		return models.StatusPartiallyPaid
	default:
		return current
	}
}

// Store is the durable application ledger. Mutations are serialized per
// application id; mutations on different ids do not block each other.
type Store interface {
	Create(ctx context.Context, app *models.Application) error
	Get(ctx context.Context, id string) (*models.Application, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Application, error)
	ListAll(ctx context.Context, limit int) ([]*models.Application, error)
	UpdateStatus(ctx context.Context, id, newStatus, actorID, note string, now time.Time) (*models.Application, *models.StatusChangeAudit, error)
	ApplyPayment(ctx context.Context, id string, payment *models.Payment) (newStatus string, newTotalPaid float64, err error)
}

// PostgresStore implements Store on PostgreSQL. The read-check-write
// sequences of UpdateStatus and ApplyPayment run inside a transaction
// holding a row lock on the application, so concurrent payments against
// one record never evaluate the overpayment check against a stale total,
// and a cancelled mutation either commits fully or not at all.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	explanationJSON, err := marshalExplanation(app.Explanation)
	if err != nil {
		return commonerrors.NewStorageError("create", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO loan_applications (
			id, user_id, amount, duration, monthly_income, credit_history,
			avg_balance, txn_frequency, risk_score, recommendation,
			explanation, status, total_paid, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		app.ID, app.UserID, app.Amount, app.Duration, app.MonthlyIncome,
		app.CreditHistory, app.AvgBalance, app.TxnFrequency, app.RiskScore,
		app.Recommendation, explanationJSON, app.Status, app.TotalPaid,
		app.CreatedAt,
	)
	if err != nil {
		return commonerrors.NewStorageError("create", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.scanApplication(ctx, s.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount, duration, monthly_income, credit_history,
		       avg_balance, txn_frequency, risk_score, recommendation,
		       explanation, status, total_paid, created_at, updated_at
		FROM loan_applications WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	if err := s.loadPayments(ctx, app); err != nil {
		return nil, err
	}
	if err := s.loadStatusHistory(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, duration, monthly_income, credit_history,
		       avg_balance, txn_frequency, risk_score, recommendation,
		       explanation, status, total_paid, created_at, updated_at
		FROM loan_applications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, commonerrors.NewStorageError("list_by_user", err)
	}
	defer rows.Close()
	return s.collectApplications(rows)
}

func (s *PostgresStore) ListAll(ctx context.Context, limit int) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, duration, monthly_income, credit_history,
		       avg_balance, txn_frequency, risk_score, recommendation,
		       explanation, status, total_paid, created_at, updated_at
		FROM loan_applications ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, commonerrors.NewStorageError("list_all", err)
	}
	defer rows.Close()
	return s.collectApplications(rows)
}

// UpdateStatus unconditionally overwrites the status and appends one
// status-history entry plus one immutable audit entry, both carrying the
// previous status read from the last history entry under the row lock.
// No transition-adjacency check: administrative correction must always be
// possible.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id, newStatus, actorID, note string, now time.Time) (*models.Application, *models.StatusChangeAudit, error) {
	audit := &models.StatusChangeAudit{
		ID:            uuid.New().String(),
		ApplicationID: id,
		NewStatus:     newStatus,
		ActorID:       actorID,
		Note:          note,
		Timestamp:     now,
	}

	err := s.withTx(ctx, "update_status", func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM loan_applications WHERE id = $1 FOR UPDATE`, id,
		).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return commonerrors.NewNotFoundError(id)
		}
		if err != nil {
			return commonerrors.NewStorageError("update_status", err)
		}

		var previous sql.NullString
		err = tx.QueryRowContext(ctx, `
			SELECT status FROM status_history
			WHERE application_id = $1 ORDER BY seq DESC LIMIT 1`, id,
		).Scan(&previous)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return commonerrors.NewStorageError("update_status", err)
		}
		if previous.Valid {
			audit.PreviousStatus = previous.String
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE loan_applications SET status = $1, updated_at = $2 WHERE id = $3`,
			newStatus, now, id); err != nil {
			return commonerrors.NewStorageError("update_status", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO status_history (application_id, status, actor_id, created_at)
			VALUES ($1, $2, $3, $4)`,
			id, newStatus, actorID, now); err != nil {
			return commonerrors.NewStorageError("update_status", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO status_change_audit (id, application_id, previous_status, new_status, actor_id, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			audit.ID, id, previous, newStatus, actorID, nullable(note), now); err != nil {
			return commonerrors.NewStorageError("update_status", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return app, audit, nil
}

// ApplyPayment validates the payment against the balance, appends it and
// recomputes the status as one atomic unit under the row lock.
func (s *PostgresStore) ApplyPayment(ctx context.Context, id string, payment *models.Payment) (string, float64, error) {
	var newStatus string
	var newTotal float64

	err := s.withTx(ctx, "apply_payment", func(tx *sql.Tx) error {
		var loanAmount, totalPaid float64
		var current string
		err := tx.QueryRowContext(ctx, `
			SELECT amount, total_paid, status FROM loan_applications
			WHERE id = $1 FOR UPDATE`, id,
		).Scan(&loanAmount, &totalPaid, &current)
		if errors.Is(err, sql.ErrNoRows) {
			return commonerrors.NewNotFoundError(id)
		}
		if err != nil {
			return commonerrors.NewStorageError("apply_payment", err)
		}

		remaining := loanAmount - totalPaid
		if payment.Amount > remaining+OverpaymentTolerance {
			return commonerrors.NewOverpaymentError(payment.Amount, remaining)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO loan_payments (id, application_id, amount, method, actor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			payment.ID, id, payment.Amount, payment.Method, payment.ActorID, payment.Timestamp); err != nil {
			return commonerrors.NewStorageError("apply_payment", err)
		}

		newTotal = totalPaid + payment.Amount
		newStatus = PaymentStatus(newTotal, loanAmount, current)

		if _, err := tx.ExecContext(ctx, `
			UPDATE loan_applications SET total_paid = $1, status = $2, updated_at = $3
			WHERE id = $4`,
			newTotal, newStatus, payment.Timestamp, id); err != nil {
			return commonerrors.NewStorageError("apply_payment", err)
		}

		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return newStatus, newTotal, nil
}

// --- helpers ---

func (s *PostgresStore) withTx(ctx context.Context, operation string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return commonerrors.NewStorageError(operation, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return commonerrors.NewStorageError(operation, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanApplication(_ context.Context, row rowScanner) (*models.Application, error) {
	var app models.Application
	var explanationJSON []byte
	err := row.Scan(
		&app.ID, &app.UserID, &app.Amount, &app.Duration, &app.MonthlyIncome,
		&app.CreditHistory, &app.AvgBalance, &app.TxnFrequency, &app.RiskScore,
		&app.Recommendation, &explanationJSON, &app.Status, &app.TotalPaid,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, commonerrors.NewNotFoundError(app.ID)
	}
	if err != nil {
		return nil, commonerrors.NewStorageError("get", err)
	}
	if err := unmarshalExplanation(explanationJSON, &app.Explanation); err != nil {
		return nil, commonerrors.NewStorageError("get", err)
	}
	return &app, nil
}

func (s *PostgresStore) collectApplications(rows *sql.Rows) ([]*models.Application, error) {
	var apps []*models.Application
	for rows.Next() {
		app, err := s.scanApplication(context.Background(), rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewStorageError("list", err)
	}
	return apps, nil
}

func (s *PostgresStore) loadPayments(ctx context.Context, app *models.Application) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, method, actor_id, created_at FROM loan_payments
		WHERE application_id = $1 ORDER BY created_at ASC, id ASC`, app.ID)
	if err != nil {
		return commonerrors.NewStorageError("get", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.Amount, &p.Method, &p.ActorID, &p.Timestamp); err != nil {
			return commonerrors.NewStorageError("get", err)
		}
		app.Payments = append(app.Payments, p)
	}
	return rows.Err()
}

func (s *PostgresStore) loadStatusHistory(ctx context.Context, app *models.Application) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, actor_id, created_at FROM status_history
		WHERE application_id = $1 ORDER BY seq ASC`, app.ID)
	if err != nil {
		return commonerrors.NewStorageError("get", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sc models.StatusChange
		if err := rows.Scan(&sc.Status, &sc.ActorID, &sc.Timestamp); err != nil {
			return commonerrors.NewStorageError("get", err)
		}
		app.StatusHistory = append(app.StatusHistory, sc)
	}
	return rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
