// Package server exposes the Taskdesk HTTP API: huma operations mounted
// on a chi router behind the bearer-token middleware. Every response,
// success or failure, uses the {success, message, data} envelope.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"taskdesk/internal/audit"
	"taskdesk/internal/auth"
	"taskdesk/internal/blob"
	"taskdesk/internal/domain"
	"taskdesk/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Repo       repo.Repo
	Users      repo.Users
	Auth       *auth.Authenticator
	Audit      audit.Writer
	Blobs      *blob.Store
	BasePath   string
	BcryptCost int
	Log        zerolog.Logger
}

// envelope is the uniform response body. Data is omitted on failures.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

type payload[T any] struct {
	Body envelope[T] `json:"body"`
}

func respond[T any](data T) (*payload[T], error) {
	return &payload[T]{Body: envelope[T]{Success: true, Data: data}}, nil
}

// apiError models the failure envelope. It marshals flat so failures
// look exactly like {"success":false,"message":"..."}.
type apiError struct {
	status  int
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"not authorized to access this route"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, Success: false, Message: message}
}

func badRequest(message string) huma.StatusError {
	return newAPIError(http.StatusBadRequest, message)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// New returns an HTTP handler exposing the Taskdesk API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors so schema failures use the same envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Taskdesk API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAuthRoutes(group, cfg)
	registerUsers(group, cfg)
	registerTasks(group, cfg)
	registerMessages(group, cfg)
	registerAnnouncements(group, cfg)
	registerAuditTrail(group, cfg)
	registerAttachmentRoutes(router, basePath, cfg)

	return router, nil
}

// handleError maps domain errors onto the envelope. Authentication
// failures stay 401 with the same generic message regardless of cause;
// authorization failures are 403.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return newAPIError(http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrUnauthenticated):
		return newAPIError(http.StatusUnauthorized, "not authorized to access this route")
	case errors.As(err, &fe):
		return newAPIError(http.StatusForbidden, fe.Error())
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "resource not found")
	case errors.Is(err, repo.ErrEmailExists):
		return newAPIError(http.StatusConflict, "email already registered")
	default:
		return newAPIError(http.StatusInternalServerError, "internal error")
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*payload[map[string]string], error) {
		return respond(map[string]string{"status": "ok"})
	})
}

func registerAuditTrail(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-events",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "Latest audit events",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"20" minimum:"1" maximum:"200"`
	}) (*payload[[]auditEventResponse], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.RequireRole(pc, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		events, err := cfg.Audit.Latest(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(mapAuditEvents(events))
	})
}
