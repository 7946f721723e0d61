package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskdesk/internal/auth"
	"taskdesk/internal/domain"
	"taskdesk/internal/repo"
)

func registerUsers(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*payload[[]domain.PrincipalSummary], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.RequireRole(pc, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		items, err := cfg.Users.List(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(mapPrincipals(items))
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body createUserRequest `json:"body"`
	}) (*payload[domain.PrincipalSummary], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.RequireRole(pc, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		if input.Body.Name == "" || input.Body.Email == "" || input.Body.Password == "" {
			return nil, badRequest("name, email and password are required")
		}
		role := domain.RoleEmployee
		if input.Body.Role != "" {
			parsed, ok := domain.ParseRole(input.Body.Role)
			if !ok {
				return nil, badRequest("invalid role")
			}
			role = parsed
		}
		p, err := cfg.Users.Create(ctx, domain.Principal{
			Name:       input.Body.Name,
			Email:      input.Body.Email,
			Role:       role,
			Department: input.Body.Department,
			Position:   input.Body.Position,
			Phone:      input.Body.Phone,
		}, input.Body.Password, cfg.BcryptCost)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p.Public())
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*payload[domain.PrincipalSummary], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		// Non-admins may only fetch themselves.
		if !pc.IsAdmin() && pc.ID != input.UserID {
			return nil, handleError(auth.ForbiddenError{Reason: "cannot view other users"})
		}
		p, err := cfg.Users.FindByID(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p.Public())
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPut,
		Path:        "/users/{user_id}",
		Summary:     "Update user",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		UserID string            `path:"user_id"`
		Body   updateUserRequest `json:"body"`
	}) (*payload[domain.PrincipalSummary], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.RequireRole(pc, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		upd := repo.UserUpdate{
			Name:       input.Body.Name,
			Email:      input.Body.Email,
			Department: input.Body.Department,
			Position:   input.Body.Position,
			Phone:      input.Body.Phone,
			Avatar:     input.Body.Avatar,
		}
		if input.Body.Role != nil {
			role, ok := domain.ParseRole(*input.Body.Role)
			if !ok {
				return nil, badRequest("invalid role")
			}
			upd.Role = &role
		}
		p, err := cfg.Users.Update(ctx, input.UserID, upd)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p.Public())
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-user",
		Method:      http.MethodDelete,
		Path:        "/users/{user_id}",
		Summary:     "Delete user",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*payload[struct{}], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanDeleteUser(pc, input.UserID) {
			if pc.IsAdmin() {
				return nil, handleError(auth.ForbiddenError{Reason: "cannot delete own account"})
			}
			return nil, handleError(auth.ForbiddenError{Reason: "admin role required"})
		}
		if err := cfg.Users.Delete(ctx, input.UserID); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Audit.Append(ctx, nil, "user.deleted", "user", input.UserID, pc.ID, nil); err != nil {
			cfg.Log.Error().Err(err).Msg("append audit event")
		}
		return respond(struct{}{})
	})
}
