package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskdesk/internal/auth"
	"taskdesk/internal/domain"
)

func registerMessages(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "send-message",
		Method:        http.MethodPost,
		Path:          "/messages",
		Summary:       "Send message",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body sendMessageRequest `json:"body"`
	}) (*payload[domain.Message], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.RecipientID == "" || input.Body.Subject == "" || input.Body.Content == "" {
			return nil, badRequest("recipient_id, subject and content are required")
		}
		if _, err := cfg.Users.FindByID(ctx, input.Body.RecipientID); err != nil {
			return nil, handleError(err)
		}
		m, err := cfg.Repo.InsertMessage(ctx, domain.Message{
			SenderID:    pc.ID,
			RecipientID: input.Body.RecipientID,
			Subject:     input.Body.Subject,
			Content:     input.Body.Content,
			RelatedTask: input.Body.RelatedTask,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(m)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-inbox",
		Method:      http.MethodGet,
		Path:        "/messages",
		Summary:     "Inbox",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*payload[[]domain.Message], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := cfg.Repo.ListInbox(ctx, pc.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Message{}
		}
		return respond(items)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sent",
		Method:      http.MethodGet,
		Path:        "/messages/sent",
		Summary:     "Sent messages",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*payload[[]domain.Message], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := cfg.Repo.ListSent(ctx, pc.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Message{}
		}
		return respond(items)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-message",
		Method:      http.MethodGet,
		Path:        "/messages/{message_id}",
		Summary:     "Get message",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MessageID string `path:"message_id"`
	}) (*payload[domain.Message], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := cfg.Repo.GetMessage(ctx, input.MessageID)
		if err != nil {
			return nil, handleError(err)
		}
		if !auth.CanAccessMessage(pc, m) {
			return nil, handleError(auth.ForbiddenError{Reason: "not a participant of this message"})
		}
		return respond(m)
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-message-read",
		Method:      http.MethodPut,
		Path:        "/messages/{message_id}/read",
		Summary:     "Mark message read",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MessageID string `path:"message_id"`
	}) (*payload[domain.Message], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := cfg.Repo.GetMessage(ctx, input.MessageID)
		if err != nil {
			return nil, handleError(err)
		}
		// Only the recipient reads a message.
		if m.RecipientID != pc.ID {
			return nil, handleError(auth.ForbiddenError{Reason: "only the recipient may mark a message read"})
		}
		m, err = cfg.Repo.MarkMessageRead(ctx, m.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(m)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-message",
		Method:      http.MethodDelete,
		Path:        "/messages/{message_id}",
		Summary:     "Delete message",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MessageID string `path:"message_id"`
	}) (*payload[struct{}], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := cfg.Repo.GetMessage(ctx, input.MessageID)
		if err != nil {
			return nil, handleError(err)
		}
		if !auth.CanAccessMessage(pc, m) {
			return nil, handleError(auth.ForbiddenError{Reason: "not a participant of this message"})
		}
		if err := cfg.Repo.DeleteMessage(ctx, m.ID); err != nil {
			return nil, handleError(err)
		}
		return respond(struct{}{})
	})
}
