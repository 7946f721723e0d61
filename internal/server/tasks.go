package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskdesk/internal/auth"
	"taskdesk/internal/domain"
	"taskdesk/internal/repo"
)

func registerTasks(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body createTaskRequest `json:"body"`
	}) (*payload[domain.Task], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.RequireRole(pc, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		if input.Body.Title == "" || input.Body.Description == "" || input.Body.DueDate == "" {
			return nil, badRequest("title, description and due_date are required")
		}
		status := input.Body.Status
		if status == "" {
			status = domain.TaskStatusTodo
		}
		priority := input.Body.Priority
		if priority == "" {
			priority = "medium"
		}
		t, err := cfg.Repo.InsertTask(ctx, domain.Task{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Status:      status,
			Priority:    priority,
			Category:    input.Body.Category,
			AssignedTo:  input.Body.AssignedTo,
			AssignedBy:  pc.ID,
			StartDate:   input.Body.StartDate,
			DueDate:     input.Body.DueDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Audit.Append(ctx, nil, "task.created", "task", t.ID, pc.ID, nil); err != nil {
			cfg.Log.Error().Err(err).Msg("append audit event")
		}
		return respond(t)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		Priority string `query:"priority"`
		Assignee string `query:"assignee"`
	}) (*payload[[]domain.Task], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Status != "" && !domain.ValidTaskStatus(input.Status) {
			return nil, badRequest("invalid status filter")
		}
		if input.Priority != "" && !domain.ValidTaskPriority(input.Priority) {
			return nil, badRequest("invalid priority filter")
		}
		filters := repo.TaskFilters{
			Status:     input.Status,
			Priority:   input.Priority,
			AssigneeID: input.Assignee,
		}
		// Non-admins only see tasks they are assigned to or created.
		if !pc.IsAdmin() {
			filters.ViewerID = pc.ID
		}
		items, err := cfg.Repo.ListTasks(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Task{}
		}
		return respond(items)
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-stats",
		Method:      http.MethodGet,
		Path:        "/tasks/stats",
		Summary:     "Task counts by status",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*payload[taskStatsResponse], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.RequireRole(pc, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		counts, err := cfg.Repo.CountTasksByStatus(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		return respond(taskStatsResponse{Total: total, ByStatus: counts})
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*payload[domain.Task], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := cfg.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		if !auth.CanReadTask(pc, t) {
			return nil, handleError(auth.ForbiddenError{Reason: "not assigned to this task"})
		}
		return respond(t)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   updateTaskRequest `json:"body"`
	}) (*payload[domain.Task], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := cfg.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		if !auth.CanMutateTask(pc, t) {
			return nil, handleError(auth.ForbiddenError{Reason: "not assigned to this task"})
		}
		// Assignees may only move the status; everything else stays
		// admin-only, reassignment included.
		if !pc.IsAdmin() && touchesMoreThanStatus(input.Body) {
			return nil, handleError(auth.ForbiddenError{Reason: "only status updates are allowed"})
		}
		upd := repo.TaskUpdate{
			Title:         input.Body.Title,
			Description:   input.Body.Description,
			Status:        input.Body.Status,
			Priority:      input.Body.Priority,
			Category:      input.Body.Category,
			DueDate:       input.Body.DueDate,
			CompletedDate: input.Body.CompletedDate,
			AssignedTo:    input.Body.AssignedTo,
		}
		// Completion date follows the status unless the caller sets it
		// explicitly: entering completed stamps it, leaving clears it.
		if input.Body.Status != nil && input.Body.CompletedDate == nil {
			switch {
			case *input.Body.Status == domain.TaskStatusCompleted:
				now := nowRFC3339()
				upd.CompletedDate = &now
			case t.Status == domain.TaskStatusCompleted:
				upd.ClearComplete = true
			}
		}
		updated, err := cfg.Repo.UpdateTask(ctx, input.TaskID, upd)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Status != nil && *input.Body.Status != t.Status {
			if err := cfg.Audit.RecordStatusTransition(ctx, nil, t.ID, pc.ID, t.Status, *input.Body.Status); err != nil {
				cfg.Log.Error().Err(err).Msg("record status transition")
			}
		}
		return respond(updated)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*payload[struct{}], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.RequireRole(pc, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Repo.DeleteTask(ctx, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Audit.Append(ctx, nil, "task.deleted", "task", input.TaskID, pc.ID, nil); err != nil {
			cfg.Log.Error().Err(err).Msg("append audit event")
		}
		return respond(struct{}{})
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-task-comment",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/comments",
		Summary:       "Comment on task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string         `path:"task_id"`
		Body   commentRequest `json:"body"`
	}) (*payload[domain.Comment], error) {
		pc, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Text == "" {
			return nil, badRequest("text is required")
		}
		t, err := cfg.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		if !auth.CanMutateTask(pc, t) {
			return nil, handleError(auth.ForbiddenError{Reason: "not assigned to this task"})
		}
		c, err := cfg.Repo.AddComment(ctx, domain.Comment{
			TaskID:   t.ID,
			AuthorID: pc.ID,
			Text:     input.Body.Text,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(c)
	})
}

func touchesMoreThanStatus(r updateTaskRequest) bool {
	return r.Title != nil || r.Description != nil || r.Priority != nil ||
		r.Category != nil || r.DueDate != nil || r.AssignedTo != nil
}
