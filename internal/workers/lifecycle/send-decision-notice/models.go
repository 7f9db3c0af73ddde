// internal/workers/lifecycle/send-decision-notice/models.go
package senddecisionnotice

const (
	StatusSent     = "sent"
	StatusDisabled = "disabled"
	StatusFailed   = "failed"
)

type Input struct {
	ApplicationID string `json:"applicationId"`
	UserID        string `json:"userId"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Decision      string `json:"decision"` // application status after the transition
	Note          string `json:"note,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	SentAt         string `json:"sentAt"` // ISO 8601
}
