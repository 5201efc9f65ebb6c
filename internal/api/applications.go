// internal/api/applications.go
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"admissions-workflow/internal/models"
	"admissions-workflow/internal/workflow"
)

// ApplicationView is a record as the admin and applicant views show it.
type ApplicationView struct {
	Application       models.Application     `json:"application"`
	Display           workflow.StatusDisplay `json:"display"`
	AllowedNextStates []models.Status        `json:"allowed_next_states"`
}

func viewFor(actor models.Actor, app models.Application) ApplicationView {
	next := workflow.AvailableTransitions(actor, app)
	if next == nil {
		next = workflow.StatusSet{}
	}
	return ApplicationView{
		Application:       app,
		Display:           workflow.Display(app.Status),
		AllowedNextStates: next,
	}
}

type HistoryView struct {
	ApplicationID string                    `json:"application_id"`
	Events        []models.StateChangeEvent `json:"events"`
	ChainValid    bool                      `json:"chain_valid"`
	ChainError    string                    `json:"chain_error,omitempty"`
}

type applicationOutput struct {
	Body ApplicationView `json:"body"`
}

type applicationPath struct {
	ID string `path:"id"`
}

// canView lets admins see everything and owners see their own records.
func canView(actor models.Actor, app *models.Application) error {
	if workflow.IsAdmin(actor.Role) || actor.ID == app.OwnerID {
		return nil
	}
	return fmt.Errorf("%w: %s may not view application %s", workflow.ErrUnauthorized, actor.ID, app.ID)
}

func (s *server) registerApplications(api huma.API) {
	type transitionInput struct {
		Body struct {
			ApplicationType string `json:"application_type" example:"student"`
			ApplicationID   string `json:"application_id"`
			NewState        string `json:"new_state" example:"in_review"`
			Reason          string `json:"reason,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "transition-application",
		Method:      http.MethodPost,
		Path:        "/applications/transitions",
		Summary:     "Change an application's status (admin)",
	}, func(ctx context.Context, input *transitionInput) (*applicationOutput, error) {
		actor, authErr := requireActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		recordType, err := models.ParseRecordType(input.Body.ApplicationType)
		if err != nil {
			return nil, s.fail(err)
		}
		to, err := models.ParseStatus(input.Body.NewState)
		if err != nil {
			return nil, s.fail(err)
		}
		app, err := s.cfg.Workflow.Transition(ctx, workflow.TransitionRequest{
			RecordType:    recordType,
			ApplicationID: input.Body.ApplicationID,
			To:            to,
			Actor:         actor,
			Reason:        input.Body.Reason,
			Surface:       workflow.SurfaceAdmin,
		})
		if err != nil {
			return nil, s.fail(err)
		}
		return &applicationOutput{Body: viewFor(actor, *app)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/submit",
		Summary:     "Submit your own started application",
	}, func(ctx context.Context, input *applicationPath) (*applicationOutput, error) {
		actor, authErr := requireActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := s.cfg.Workflow.Transition(ctx, workflow.TransitionRequest{
			ApplicationID: input.ID,
			To:            models.StatusSubmitted,
			Actor:         actor,
			Surface:       workflow.SurfaceSelfService,
		})
		if err != nil {
			return nil, s.fail(err)
		}
		return &applicationOutput{Body: viewFor(actor, *app)}, nil
	})

	type createInput struct {
		Body struct {
			ApplicationType string                 `json:"application_type" example:"partner"`
			OwnerID         string                 `json:"owner_id,omitempty" doc:"Defaults to the caller"`
			Intake          map[string]interface{} `json:"intake,omitempty"`
			Submit          bool                   `json:"submit,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID:   "create-application",
		Method:        http.MethodPost,
		Path:          "/applications",
		Summary:       "Open an application",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *createInput) (*applicationOutput, error) {
		actor, authErr := requireActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		recordType, err := models.ParseRecordType(input.Body.ApplicationType)
		if err != nil {
			return nil, s.fail(err)
		}
		owner := input.Body.OwnerID
		if owner == "" {
			owner = actor.ID
		}
		app, err := s.cfg.Workflow.Create(ctx, workflow.NewApplication{
			Type:    recordType,
			OwnerID: owner,
			Intake:  input.Body.Intake,
			Submit:  input.Body.Submit,
			Actor:   actor,
		})
		if err != nil {
			return nil, s.fail(err)
		}
		return &applicationOutput{Body: viewFor(actor, *app)}, nil
	})

	type listInput struct {
		State string `query:"state" doc:"Filter by status"`
		Type  string `query:"type" doc:"Filter by application type"`
		Page  int    `query:"page" minimum:"0"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/applications",
		Summary:     "Admin review queue",
	}, func(ctx context.Context, input *listInput) (*struct {
		Body models.ApplicationPage `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !workflow.IsAdmin(actor.Role) {
			return nil, s.fail(fmt.Errorf("%w: the review queue is admin only", workflow.ErrUnauthorized))
		}
		filter := models.ApplicationFilter{Page: input.Page}
		if input.State != "" {
			st, err := models.ParseStatus(input.State)
			if err != nil {
				return nil, s.fail(err)
			}
			filter.Status = &st
		}
		if input.Type != "" {
			rt, err := models.ParseRecordType(input.Type)
			if err != nil {
				return nil, s.fail(err)
			}
			filter.Type = &rt
		}
		page, err := s.cfg.Applications.ListApplications(ctx, filter)
		if err != nil {
			return nil, s.fail(err)
		}
		return &struct {
			Body models.ApplicationPage `json:"body"`
		}{Body: *page}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/applications/{id}",
		Summary:     "Application detail with the caller's available transitions",
	}, func(ctx context.Context, input *applicationPath) (*applicationOutput, error) {
		actor, authErr := requireActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := s.cfg.Applications.GetApplication(ctx, input.ID)
		if err != nil {
			return nil, s.fail(err)
		}
		if err := canView(actor, app); err != nil {
			return nil, s.fail(err)
		}
		return &applicationOutput{Body: viewFor(actor, *app)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "application-history",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/history",
		Summary:     "Ordered audit trail of an application",
	}, func(ctx context.Context, input *applicationPath) (*struct {
		Body HistoryView `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := s.cfg.Applications.GetApplication(ctx, input.ID)
		if err != nil {
			return nil, s.fail(err)
		}
		if err := canView(actor, app); err != nil {
			return nil, s.fail(err)
		}
		events, err := s.cfg.History.History(ctx, input.ID)
		if err != nil {
			return nil, s.fail(err)
		}
		view := HistoryView{ApplicationID: input.ID, Events: events, ChainValid: true}
		if view.Events == nil {
			view.Events = []models.StateChangeEvent{}
		}
		if err := workflow.VerifyChain(events); err != nil {
			view.ChainValid = false
			view.ChainError = err.Error()
			s.logger.Error("audit chain verification failed", map[string]interface{}{
				"applicationId": input.ID,
				"error":         err,
			})
		}
		return &struct {
			Body HistoryView `json:"body"`
		}{Body: view}, nil
	})
}

func (s *server) registerStatuses(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-statuses",
		Method:      http.MethodGet,
		Path:        "/statuses",
		Summary:     "Status display metadata and the transition table",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []workflow.TableEntry `json:"body"`
	}, error) {
		return &struct {
			Body []workflow.TableEntry `json:"body"`
		}{Body: workflow.Describe()}, nil
	})
}
