// internal/workers/application/transition-application-status/models.go
package transitionapplicationstatus

type Input struct {
	ApplicationID   string `json:"applicationId"`
	ApplicationType string `json:"applicationType,omitempty"`
	NewState        string `json:"newState"`
	ActorID         string `json:"actorId"`
	ActorRole       string `json:"actorRole"`
	Reason          string `json:"reason,omitempty"`
	// Surface is "admin" or "self_service"; empty picks admin for admin
	// roles and self_service otherwise.
	Surface string `json:"surface,omitempty"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	StatusLabel       string `json:"statusLabel"`
	StatusUpdatedAt   string `json:"statusUpdatedAt"` // ISO 8601
	Terminal          bool   `json:"terminal"`
}
