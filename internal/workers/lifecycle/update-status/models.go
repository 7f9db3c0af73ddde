// internal/workers/lifecycle/update-status/models.go
package updatestatus

type Input struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	ActorID       string `json:"actorId"`
	Note          string `json:"note,omitempty"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	PreviousStatus    string `json:"previousStatus,omitempty"`
	ApplicationStatus string `json:"applicationStatus"`
	UpdatedAt         string `json:"updatedAt"` // ISO 8601
}
