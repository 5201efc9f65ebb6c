// internal/workers/application/create-application-record/models.go
package createapplicationrecord

type Input struct {
	ApplicationType string                 `json:"applicationType"`
	OwnerID         string                 `json:"ownerId"`
	Intake          map[string]interface{} `json:"intake"`
	// Submit moves the new record straight to submitted on the owner's behalf.
	Submit bool `json:"submit"`
	// ActorID and ActorRole default to the owner acting through the system
	// role.
	ActorID   string `json:"actorId,omitempty"`
	ActorRole string `json:"actorRole,omitempty"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	CreatedAt         string `json:"createdAt"` // ISO 8601
}
