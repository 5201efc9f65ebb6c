// internal/api/onboarding.go
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"admissions-workflow/internal/models"
	"admissions-workflow/internal/onboarding"
	"admissions-workflow/internal/workflow"
)

// multipartOverhead is the slack allowed on top of the file itself for the
// form fields and part headers.
const multipartOverhead = 1 << 20

func canActFor(actor models.Actor, subjectID string) error {
	if workflow.IsAdmin(actor.Role) || actor.ID == subjectID {
		return nil
	}
	return fmt.Errorf("%w: %s may not act for subject %s", workflow.ErrUnauthorized, actor.ID, subjectID)
}

// kindForRole guesses the checklist kind of a subject uploading for itself.
func kindForRole(role models.Role) models.RecordType {
	switch role {
	case models.RoleStudent:
		return models.RecordTypeStudent
	case models.RolePartner:
		return models.RecordTypePartner
	case models.RoleEmployer:
		return models.RecordTypeEmployer
	}
	return ""
}

func (s *server) registerOnboarding(api huma.API) {
	type subjectPath struct {
		SubjectID string `path:"subject_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "onboarding-readiness",
		Method:      http.MethodGet,
		Path:        "/onboarding/{subject_id}/readiness",
		Summary:     "Whether every required onboarding document is approved",
	}, func(ctx context.Context, input *subjectPath) (*struct {
		Body models.Readiness `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := canActFor(actor, input.SubjectID); err != nil {
			return nil, s.fail(err)
		}
		r, err := s.cfg.Onboarding.IsReady(ctx, input.SubjectID)
		if err != nil {
			return nil, s.fail(err)
		}
		return &struct {
			Body models.Readiness `json:"body"`
		}{Body: r}, nil
	})

	type itemPath struct {
		ItemID string `path:"item_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "approve-onboarding-item",
		Method:      http.MethodPost,
		Path:        "/onboarding/items/{item_id}/approve",
		Summary:     "Approve an uploaded onboarding document (admin)",
	}, func(ctx context.Context, input *itemPath) (*struct {
		Body models.OnboardingItem `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !workflow.IsAdmin(actor.Role) {
			return nil, s.fail(fmt.Errorf("%w: only admins approve documents", workflow.ErrUnauthorized))
		}
		item, err := s.cfg.Onboarding.ApproveItem(ctx, input.ItemID, actor.ID)
		if err != nil {
			return nil, s.fail(err)
		}
		return &struct {
			Body models.OnboardingItem `json:"body"`
		}{Body: *item}, nil
	})
}

// UploadResponse is returned by the document upload route.
type UploadResponse struct {
	DocumentID string                `json:"document_id"`
	Item       models.OnboardingItem `json:"item"`
}

// registerUpload mounts the multipart upload route directly on the router;
// the file is streamed into memory once and handed to the uploader.
func (s *server) registerUpload(r chi.Router) {
	r.Post(routePath(s.cfg.BasePath, "/onboarding/{subject_id}/documents"), func(w http.ResponseWriter, req *http.Request) {
		actor, ok := ActorFromContext(req.Context())
		if !ok {
			respondStatusError(w, newAPIError(http.StatusUnauthorized, "", "authentication required", nil))
			return
		}
		subjectID := chi.URLParam(req, "subject_id")
		if err := canActFor(actor, subjectID); err != nil {
			respondStatusError(w, s.fail(err))
			return
		}

		req.Body = http.MaxBytesReader(w, req.Body, s.cfg.MaxUploadBytes+multipartOverhead)
		if err := req.ParseMultipartForm(multipartOverhead); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondStatusError(w, s.fail(fmt.Errorf("%w: file exceeds %d bytes", onboarding.ErrInvalidDocument, s.cfg.MaxUploadBytes)))
				return
			}
			respondStatusError(w, s.fail(fmt.Errorf("%w: malformed multipart body: %v", onboarding.ErrInvalidDocument, err)))
			return
		}
		defer req.MultipartForm.RemoveAll()

		file, header, err := req.FormFile("file")
		if err != nil {
			respondStatusError(w, s.fail(fmt.Errorf("%w: file is required", onboarding.ErrInvalidDocument)))
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			respondStatusError(w, s.fail(fmt.Errorf("%w: read upload: %v", onboarding.ErrInvalidDocument, err)))
			return
		}

		kind := models.RecordType(req.FormValue("subject_kind"))
		if kind == "" && actor.ID == subjectID {
			kind = kindForRole(actor.Role)
		}

		item, err := s.cfg.Uploads.Upload(req.Context(), onboarding.UploadRequest{
			SubjectID:    subjectID,
			SubjectKind:  kind,
			DocumentType: req.FormValue("document_type"),
			FileName:     header.Filename,
			ContentType:  header.Header.Get("Content-Type"),
			Content:      content,
			UploadedBy:   actor.ID,
		})
		if err != nil {
			respondStatusError(w, s.fail(err))
			return
		}
		writeJSON(w, http.StatusCreated, UploadResponse{DocumentID: item.ID, Item: *item})
	})
}
