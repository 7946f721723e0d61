package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"taskdesk/internal/auth"
	"taskdesk/internal/domain"
)

// newAuthMiddleware authenticates every request under basePath except
// the public login, register and health endpoints. A rejected request
// never reaches a handler; the failure body uses the standard envelope.
func newAuthMiddleware(basePath string, a *auth.Authenticator) func(http.Handler) http.Handler {
	public := map[string]bool{
		path.Join(basePath, "health"):        true,
		path.Join(basePath, "auth/login"):    true,
		path.Join(basePath, "auth/register"): true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if public[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			pc, err := a.AuthenticateRequest(req.Header.Get("Authorization"))
			if err != nil {
				respondStatusError(w, handleError(err))
				return
			}
			next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), pc)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

// requirePrincipal returns the authenticated principal or a 401. The
// middleware populates the context for every non-public route, so a
// miss here means the route was wired outside the middleware.
func requirePrincipal(ctx context.Context) (auth.PrincipalContext, huma.StatusError) {
	pc, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return auth.PrincipalContext{}, newAPIError(http.StatusUnauthorized, "not authorized to access this route")
	}
	return pc, nil
}

func registerAuthRoutes(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Register a new account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body registerRequest `json:"body"`
	}) (*payload[authData], error) {
		if input.Body.Name == "" || input.Body.Email == "" || input.Body.Password == "" {
			return nil, badRequest("name, email and password are required")
		}
		// Self-registration always yields an employee; admins are
		// created by an existing admin or the CLI.
		p, err := cfg.Users.Create(ctx, domain.Principal{
			Name:       input.Body.Name,
			Email:      input.Body.Email,
			Role:       domain.RoleEmployee,
			Department: input.Body.Department,
			Position:   input.Body.Position,
			Phone:      input.Body.Phone,
		}, input.Body.Password, cfg.BcryptCost)
		if err != nil {
			return nil, handleError(err)
		}
		result, err := cfg.Auth.Login(ctx, p.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(authData{Token: result.Token, User: result.Principal})
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in with email and password",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body loginRequest `json:"body"`
	}) (*payload[authData], error) {
		if input.Body.Email == "" || input.Body.Password == "" {
			return nil, badRequest("email and password are required")
		}
		result, err := cfg.Auth.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(authData{Token: result.Token, User: result.Principal})
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*payload[domain.PrincipalSummary], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := cfg.Users.FindByID(ctx, pc.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p.Public())
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-details",
		Method:      http.MethodPut,
		Path:        "/auth/updatedetails",
		Summary:     "Update own profile",
		Errors:      []int{http.StatusUnauthorized, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body updateDetailsRequest `json:"body"`
	}) (*payload[domain.PrincipalSummary], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := cfg.Users.Update(ctx, pc.ID, input.Body.toUserUpdate())
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p.Public())
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-password",
		Method:      http.MethodPut,
		Path:        "/auth/updatepassword",
		Summary:     "Change own password",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body updatePasswordRequest `json:"body"`
	}) (*payload[authData], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.CurrentPassword == "" || input.Body.NewPassword == "" {
			return nil, badRequest("current and new password are required")
		}
		p, err := cfg.Users.FindByID(ctx, pc.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if !cfg.Users.VerifySecret(p, input.Body.CurrentPassword) {
			return nil, handleError(auth.ErrInvalidCredentials)
		}
		if err := cfg.Users.UpdatePassword(ctx, pc.ID, input.Body.NewPassword, cfg.BcryptCost); err != nil {
			return nil, handleError(err)
		}
		result, err := cfg.Auth.Login(ctx, p.Email, input.Body.NewPassword)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(authData{Token: result.Token, User: result.Principal})
	})
}
