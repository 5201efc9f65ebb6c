// internal/workflow/authorizer.go
package workflow

import (
	"fmt"

	"admissions-workflow/internal/models"
)

// Surface is the interface a transition request came through.
type Surface string

const (
	SurfaceAdmin       Surface = "admin"
	SurfaceSelfService Surface = "self_service"
)

// IsAdmin reports whether role may use the administrative surface.
func IsAdmin(role models.Role) bool {
	return role == models.RoleAdmin || role == models.RoleSuperAdmin
}

// CanTransition is the administrative allow-rule: admin roles may apply
// exactly the edges of the record type's table and nothing else.
func CanTransition(role models.Role, recordType models.RecordType, from, to models.Status) bool {
	if !IsAdmin(role) {
		return false
	}
	return AllowedNextStatesFor(recordType, from).Has(to)
}

// CanSelfServe is the owner allow-rule: whatever their role, owners may submit
// their own started application.
func CanSelfServe(actorID, ownerID string, from, to models.Status) bool {
	return actorID != "" &&
		actorID == ownerID &&
		from == models.StatusStarted &&
		to == models.StatusSubmitted
}

// Authorize applies the rule of the given surface and fails closed.
func Authorize(actor models.Actor, app models.Application, to models.Status, surface Surface) error {
	switch surface {
	case SurfaceAdmin:
		if CanTransition(actor.Role, app.Type, app.Status, to) {
			return nil
		}
	case SurfaceSelfService:
		if CanSelfServe(actor.ID, app.OwnerID, app.Status, to) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (%s) may not move application %s from %s to %s via %s",
		ErrUnauthorized, actor.ID, actor.Role, app.ID, app.Status, to, surface)
}

// AvailableTransitions lists what actor could do to app right now, for the
// detail view's action buttons.
func AvailableTransitions(actor models.Actor, app models.Application) StatusSet {
	out := StatusSet{}
	for _, to := range AllowedNextStatesFor(app.Type, app.Status) {
		if CanTransition(actor.Role, app.Type, app.Status, to) ||
			CanSelfServe(actor.ID, app.OwnerID, app.Status, to) {
			out = append(out, to)
		}
	}
	return out
}
