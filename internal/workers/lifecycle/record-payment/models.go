// internal/workers/lifecycle/record-payment/models.go
package recordpayment

type Input struct {
	ApplicationID string  `json:"applicationId"`
	Amount        float64 `json:"amount"`
	Method        string  `json:"method,omitempty"`
	ActorID       string  `json:"actorId"`
}

type Output struct {
	ApplicationID     string  `json:"applicationId"`
	PaymentID         string  `json:"paymentId"`
	ApplicationStatus string  `json:"applicationStatus"`
	TotalPaid         float64 `json:"totalPaid"`
}
