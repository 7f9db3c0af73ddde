// internal/models/application.go
package models

import "time"

// Application status values. A single status field tracks both the
// approval workflow (pending/approved/rejected/disbursed) and the payment
// workflow (partially_paid/fully_paid); rejected and fully_paid are
// terminal for their respective workflows.
const (
	StatusPending       = "pending"
	StatusApproved      = "approved"
	StatusRejected      = "rejected"
	StatusDisbursed     = "disbursed"
	StatusPartiallyPaid = "partially_paid"
	StatusFullyPaid     = "fully_paid"
)

// AdminStatuses are the values accepted by a status-update request.
// Payment statuses are never set directly; they are recomputed from
// totalPaid on each accepted payment.
var AdminStatuses = []string{StatusPending, StatusApproved, StatusRejected, StatusDisbursed}

// IsAdminStatus reports whether s may be applied by a status update.
func IsAdminStatus(s string) bool {
	for _, v := range AdminStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Application is the persisted loan application record, owned by the
// ledger. All mutation goes through the lifecycle controller or the
// initial creation step.
type Application struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Amount         float64         `json:"amount"`
	Duration       int             `json:"duration"`
	MonthlyIncome  float64         `json:"monthlyIncome"`
	CreditHistory  string          `json:"creditHistory"`
	AvgBalance     float64         `json:"avgBalance"`
	TxnFrequency   float64         `json:"txnFrequency"`
	RiskScore      float64         `json:"riskScore"`
	Recommendation string          `json:"recommendation"`
	Explanation    Explanation     `json:"explanation"`
	Status         string          `json:"status"`
	TotalPaid      float64         `json:"totalPaid"`
	Payments       []Payment       `json:"payments,omitempty"`
	StatusHistory  []StatusChange  `json:"statusHistory,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// RemainingBalance is the amount still owed against the loan.
func (a *Application) RemainingBalance() float64 {
	return a.Amount - a.TotalPaid
}

// Payment is one accepted repayment against an application. The payments
// sequence is append-only.
type Payment struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	ActorID   string    `json:"actorId"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusChange is one entry of the append-only per-record status history.
type StatusChange struct {
	Status    string    `json:"status"`
	ActorID   string    `json:"actorId"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusChangeAudit is the immutable cross-record audit entry written once
// per transition, never updated or deleted.
type StatusChangeAudit struct {
	ID             string    `json:"id"`
	ApplicationID  string    `json:"applicationId"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	NewStatus      string    `json:"newStatus"`
	ActorID        string    `json:"actorId"`
	Note           string    `json:"note,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
