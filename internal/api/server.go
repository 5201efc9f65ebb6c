// Package api exposes the admissions workflow over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"admissions-workflow/internal/audit"
	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/models"
	"admissions-workflow/internal/onboarding"
	"admissions-workflow/internal/workflow"
)

// Workflow changes application status.
type Workflow interface {
	Transition(ctx context.Context, req workflow.TransitionRequest) (*models.Application, error)
	Create(ctx context.Context, req workflow.NewApplication) (*models.Application, error)
}

// Applications reads the application records.
type Applications interface {
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	ListApplications(ctx context.Context, filter models.ApplicationFilter) (*models.ApplicationPage, error)
}

type History interface {
	History(ctx context.Context, applicationID string) ([]models.StateChangeEvent, error)
}

type Onboarding interface {
	IsReady(ctx context.Context, subjectID string) (models.Readiness, error)
	ApproveItem(ctx context.Context, itemID, approverID string) (*models.OnboardingItem, error)
}

type Uploads interface {
	Upload(ctx context.Context, req onboarding.UploadRequest) (*models.OnboardingItem, error)
}

type AuditSearch interface {
	Search(ctx context.Context, q models.AuditQuery) (*audit.SearchResult, error)
}

// Check is a named readiness probe.
type Check func(ctx context.Context) error

// Config for the HTTP API handler.
type Config struct {
	BasePath string
	Auth     AuthConfig
	// MaxUploadBytes bounds the multipart body of a document upload.
	MaxUploadBytes int64

	Workflow     Workflow
	Applications Applications
	History      History
	Onboarding   Onboarding
	Uploads      Uploads
	// Audit is nil when Elasticsearch is disabled.
	Audit  AuditSearch
	Checks map[string]Check
	Logger logger.Logger
}

type server struct {
	cfg    Config
	logger logger.Logger
}

// New returns an HTTP handler exposing the admissions API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	cfg.BasePath = strings.TrimSuffix(basePath, "/")
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = onboarding.DefaultMaxUploadBytes
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &server{cfg: cfg, logger: log.WithFields(map[string]interface{}{"component": "api"})}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// request schema violations
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(newAuthMiddleware(cfg.BasePath, cfg.Auth))

	hcfg := huma.DefaultConfig("Admissions Workflow API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, cfg.BasePath)

	s.registerProbes(router)
	s.registerApplications(group)
	s.registerStatuses(group)
	s.registerOnboarding(group)
	s.registerUpload(router)
	s.registerAudit(group)

	return router, nil
}

func (s *server) registerProbes(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		failed := map[string]string{}
		for name, check := range s.cfg.Checks {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
			cancel()
		}
		if len(failed) > 0 {
			s.logger.Warn("readiness check failed", map[string]interface{}{"failed": failed})
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.Handler())
}

// requireActor returns the caller or a 401.
func requireActor(ctx context.Context) (models.Actor, huma.StatusError) {
	if a, ok := ActorFromContext(ctx); ok {
		return a, nil
	}
	return models.Actor{}, newAPIError(http.StatusUnauthorized, "", "authentication required", nil)
}

func (s *server) fail(err error) huma.StatusError {
	return handleError(s.logger, err)
}

func routePath(basePath, p string) string {
	return path.Join(basePath, p)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
