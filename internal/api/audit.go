// internal/api/audit.go
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"admissions-workflow/internal/audit"
	apperrors "admissions-workflow/internal/common/errors"
	"admissions-workflow/internal/models"
	"admissions-workflow/internal/workflow"
)

func (s *server) registerAudit(api huma.API) {
	type searchInput struct {
		ActorID string `query:"actor_id"`
		ToState string `query:"to_state"`
		Type    string `query:"type"`
		Size    int    `query:"size" minimum:"0" maximum:"500"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "search-audit-events",
		Method:      http.MethodGet,
		Path:        "/audit/events",
		Summary:     "Search state change events across applications (admin)",
	}, func(ctx context.Context, input *searchInput) (*struct {
		Body audit.SearchResult `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !workflow.IsAdmin(actor.Role) {
			return nil, s.fail(fmt.Errorf("%w: audit search is admin only", workflow.ErrUnauthorized))
		}
		if s.cfg.Audit == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, string(apperrors.ErrCodeSearchQueryFailed), "audit search is not configured", nil)
		}

		q := models.AuditQuery{ActorID: input.ActorID, Size: input.Size}
		if input.ToState != "" {
			st, err := models.ParseStatus(input.ToState)
			if err != nil {
				return nil, s.fail(err)
			}
			q.ToState = &st
		}
		if input.Type != "" {
			rt, err := models.ParseRecordType(input.Type)
			if err != nil {
				return nil, s.fail(err)
			}
			q.RecordType = &rt
		}

		res, err := s.cfg.Audit.Search(ctx, q)
		if err != nil {
			return nil, s.fail(err)
		}
		return &struct {
			Body audit.SearchResult `json:"body"`
		}{Body: *res}, nil
	})
}
