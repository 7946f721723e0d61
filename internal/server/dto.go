package server

import (
	"encoding/json"

	"taskdesk/internal/domain"
	"taskdesk/internal/repo"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type authData struct {
	Token string                  `json:"token"`
	User  domain.PrincipalSummary `json:"user"`
}

type updateDetailsRequest struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Department *string `json:"department,omitempty"`
	Position   *string `json:"position,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
}

func (r updateDetailsRequest) toUserUpdate() repo.UserUpdate {
	return repo.UserUpdate{
		Name:       r.Name,
		Email:      r.Email,
		Department: r.Department,
		Position:   r.Position,
		Phone:      r.Phone,
		Avatar:     r.Avatar,
	}
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type createUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role" enum:"admin,employee"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type updateUserRequest struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Role       *string `json:"role,omitempty" enum:"admin,employee"`
	Department *string `json:"department,omitempty"`
	Position   *string `json:"position,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
}

type createTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status,omitempty" enum:"todo,in_progress,under_review,completed,blocked"`
	Priority    string   `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	Category    string   `json:"category,omitempty"`
	AssignedTo  []string `json:"assigned_to,omitempty"`
	StartDate   string   `json:"start_date,omitempty" format:"date-time"`
	DueDate     string   `json:"due_date" format:"date-time"`
}

type updateTaskRequest struct {
	Title         *string   `json:"title,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Status        *string   `json:"status,omitempty" enum:"todo,in_progress,under_review,completed,blocked"`
	Priority      *string   `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	Category      *string   `json:"category,omitempty"`
	DueDate       *string   `json:"due_date,omitempty" format:"date-time"`
	AssignedTo    *[]string `json:"assigned_to,omitempty"`
	CompletedDate *string   `json:"completed_date,omitempty" format:"date-time"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type sendMessageRequest struct {
	RecipientID string  `json:"recipient_id"`
	Subject     string  `json:"subject"`
	Content     string  `json:"content"`
	RelatedTask *string `json:"related_task,omitempty"`
}

type createAnnouncementRequest struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Importance string   `json:"importance,omitempty" enum:"normal,important,urgent"`
	VisibleTo  []string `json:"visible_to,omitempty"`
	ExpiresAt  *string  `json:"expires_at,omitempty" format:"date-time"`
}

type updateAnnouncementRequest struct {
	Title      *string   `json:"title,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Importance *string   `json:"importance,omitempty" enum:"normal,important,urgent"`
	VisibleTo  *[]string `json:"visible_to,omitempty"`
	// RFC3339 timestamp; an empty string removes the expiry.
	ExpiresAt *string `json:"expires_at,omitempty"`
}

type taskStatsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

type auditEventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func mapAuditEvents(events []domain.AuditEvent) []auditEventResponse {
	res := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		var payload map[string]any
		_ = json.Unmarshal([]byte(e.Payload), &payload)
		res = append(res, auditEventResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			ActorID:    e.ActorID,
			Payload:    payload,
		})
	}
	return res
}

func mapPrincipals(items []domain.Principal) []domain.PrincipalSummary {
	res := make([]domain.PrincipalSummary, 0, len(items))
	for _, p := range items {
		res = append(res, p.Public())
	}
	return res
}
