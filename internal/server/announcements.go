package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"taskdesk/internal/auth"
	"taskdesk/internal/domain"
	"taskdesk/internal/repo"
)

func registerAnnouncements(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-announcement",
		Method:        http.MethodPost,
		Path:          "/announcements",
		Summary:       "Create announcement",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body createAnnouncementRequest `json:"body"`
	}) (*payload[domain.Announcement], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.RequireRole(pc, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		if input.Body.Title == "" || input.Body.Content == "" {
			return nil, badRequest("title and content are required")
		}
		importance := input.Body.Importance
		if importance == "" {
			importance = domain.ImportanceNormal
		}
		a, err := cfg.Repo.InsertAnnouncement(ctx, domain.Announcement{
			Title:      input.Body.Title,
			Content:    input.Body.Content,
			AuthorID:   pc.ID,
			Importance: importance,
			VisibleTo:  input.Body.VisibleTo,
			ExpiresAt:  input.Body.ExpiresAt,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(a)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-announcements",
		Method:      http.MethodGet,
		Path:        "/announcements",
		Summary:     "List announcements",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*payload[[]domain.Announcement], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := cfg.Repo.ListAnnouncements(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		// Visibility and expiry apply per principal; admins see all.
		now := time.Now()
		visible := []domain.Announcement{}
		for _, a := range items {
			if auth.CanReadAnnouncement(pc, a, now) {
				visible = append(visible, a)
			}
		}
		return respond(visible)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-announcement",
		Method:      http.MethodGet,
		Path:        "/announcements/{announcement_id}",
		Summary:     "Get announcement",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AnnouncementID string `path:"announcement_id"`
	}) (*payload[domain.Announcement], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := cfg.Repo.GetAnnouncement(ctx, input.AnnouncementID)
		if err != nil {
			return nil, handleError(err)
		}
		if !auth.CanReadAnnouncement(pc, a, time.Now()) {
			return nil, handleError(auth.ForbiddenError{Reason: "announcement not visible"})
		}
		return respond(a)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-announcement",
		Method:      http.MethodPut,
		Path:        "/announcements/{announcement_id}",
		Summary:     "Update announcement",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AnnouncementID string                    `path:"announcement_id"`
		Body           updateAnnouncementRequest `json:"body"`
	}) (*payload[domain.Announcement], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.RequireRole(pc, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		if input.Body.Importance != nil && !domain.ValidImportance(*input.Body.Importance) {
			return nil, badRequest("invalid importance")
		}
		upd := repo.AnnouncementUpdate{
			Title:      input.Body.Title,
			Content:    input.Body.Content,
			Importance: input.Body.Importance,
			VisibleTo:  input.Body.VisibleTo,
		}
		// An empty expires_at removes the expiry.
		if input.Body.ExpiresAt != nil {
			if *input.Body.ExpiresAt == "" {
				upd.ClearExpiry = true
			} else {
				upd.ExpiresAt = input.Body.ExpiresAt
			}
		}
		a, err := cfg.Repo.UpdateAnnouncement(ctx, input.AnnouncementID, upd)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(a)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-announcement",
		Method:      http.MethodDelete,
		Path:        "/announcements/{announcement_id}",
		Summary:     "Delete announcement",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AnnouncementID string `path:"announcement_id"`
	}) (*payload[struct{}], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.RequireRole(pc, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Repo.DeleteAnnouncement(ctx, input.AnnouncementID); err != nil {
			return nil, handleError(err)
		}
		return respond(struct{}{})
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-announcement-read",
		Method:      http.MethodPut,
		Path:        "/announcements/{announcement_id}/read",
		Summary:     "Mark announcement read",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AnnouncementID string `path:"announcement_id"`
	}) (*payload[domain.Announcement], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := cfg.Repo.GetAnnouncement(ctx, input.AnnouncementID)
		if err != nil {
			return nil, handleError(err)
		}
		if !auth.CanReadAnnouncement(pc, a, time.Now()) {
			return nil, handleError(auth.ForbiddenError{Reason: "announcement not visible"})
		}
		if err := cfg.Repo.MarkAnnouncementRead(ctx, a.ID, pc.ID); err != nil {
			return nil, handleError(err)
		}
		a, err = cfg.Repo.GetAnnouncement(ctx, a.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(a)
	})
}
