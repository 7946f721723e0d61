package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskdesk/internal/domain"
)

// assigned_by goes NULL when the creating user is deleted; tasks
// outlive their creator.
const taskColumns = `id,title,description,status,priority,COALESCE(category,''),COALESCE(assigned_by,''),COALESCE(start_date,''),due_date,completed_date,created_at,updated_at`

// TaskFilters narrows ListTasks. A non-empty ViewerID restricts the
// result to tasks the viewer is assigned to or created.
type TaskFilters struct {
	Status     string
	Priority   string
	AssigneeID string
	ViewerID   string
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	t.CreatedAt, t.UpdatedAt = now, now
	if t.StartDate == "" {
		t.StartDate = now
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO tasks(id,title,description,status,priority,category,assigned_by,start_date,due_date,completed_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, t.Status, t.Priority, nullable(t.Category), nullable(t.AssignedBy),
		t.StartDate, t.DueDate, nullableStringPtr(t.CompletedDate), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	if err := replaceAssignees(ctx, tx, t.ID, t.AssignedTo); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return r.GetTask(ctx, t.ID)
}

func replaceAssignees(ctx context.Context, tx *sql.Tx, taskID string, assignees []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id=?`, taskID); err != nil {
		return err
	}
	for _, userID := range assignees {
		if userID == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_assignees(task_id,user_id) VALUES (?,?)`, taskID, userID); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var t domain.Task
	var completed sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id).
		Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Category, &t.AssignedBy,
			&t.StartDate, &t.DueDate, &completed, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if completed.Valid {
		t.CompletedDate = &completed.String
	}
	if t.AssignedTo, err = r.taskAssignees(ctx, id); err != nil {
		return t, err
	}
	if t.Comments, err = r.taskComments(ctx, id); err != nil {
		return t, err
	}
	if t.Attachments, err = r.taskAttachments(ctx, id); err != nil {
		return t, err
	}
	return t, nil
}

func (r Repo) taskAssignees(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id FROM task_assignees WHERE task_id=? ORDER BY user_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r Repo) taskComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,author_id,body,created_at FROM task_comments WHERE task_id=? ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) taskAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,filename,blob_key,uploaded_by,uploaded_at FROM task_attachments WHERE task_id=? ORDER BY uploaded_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.Filename, &a.BlobKey, &a.UploadedBy, &a.UploadedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM task_assignees ta WHERE ta.task_id=tasks.id AND ta.user_id=?)")
		args = append(args, f.AssigneeID)
	}
	if f.ViewerID != "" {
		clauses = append(clauses, "(assigned_by=? OR EXISTS (SELECT 1 FROM task_assignees ta WHERE ta.task_id=tasks.id AND ta.user_id=?))")
		args = append(args, f.ViewerID, f.ViewerID)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		var t domain.Task
		var completed sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Category, &t.AssignedBy,
			&t.StartDate, &t.DueDate, &completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if completed.Valid {
			t.CompletedDate = &completed.String
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		assignees, err := r.taskAssignees(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].AssignedTo = assignees
	}
	return res, nil
}

// TaskUpdate carries the optional fields of a partial task update.
type TaskUpdate struct {
	Title         *string
	Description   *string
	Status        *string
	Priority      *string
	Category      *string
	DueDate       *string
	CompletedDate *string
	ClearComplete bool
	AssignedTo    *[]string
}

func (r Repo) UpdateTask(ctx context.Context, id string, upd TaskUpdate) (domain.Task, error) {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v any) {
		fields = append(fields, col+"=?")
		args = append(args, v)
	}
	if upd.Title != nil {
		set("title", *upd.Title)
	}
	if upd.Description != nil {
		set("description", *upd.Description)
	}
	if upd.Status != nil {
		set("status", *upd.Status)
	}
	if upd.Priority != nil {
		set("priority", *upd.Priority)
	}
	if upd.Category != nil {
		set("category", nullable(*upd.Category))
	}
	if upd.DueDate != nil {
		set("due_date", *upd.DueDate)
	}
	if upd.ClearComplete {
		set("completed_date", nil)
	} else if upd.CompletedDate != nil {
		set("completed_date", *upd.CompletedDate)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if len(fields) > 0 {
		set("updated_at", time.Now().UTC().Format(time.RFC3339))
		args = append(args, id)
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE tasks SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
		if err != nil {
			return domain.Task{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.Task{}, ErrNotFound
		}
	}
	if upd.AssignedTo != nil {
		if err := replaceAssignees(ctx, tx, id, *upd.AssignedTo); err != nil {
			return domain.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return r.GetTask(ctx, id)
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) AddComment(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx, `INSERT INTO task_comments(id,task_id,author_id,body,created_at) VALUES (?,?,?,?,?)`,
		c.ID, c.TaskID, c.AuthorID, c.Text, c.CreatedAt)
	return c, err
}

func (r Repo) AddAttachment(ctx context.Context, a domain.Attachment) (domain.Attachment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.UploadedAt = time.Now().UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx, `INSERT INTO task_attachments(id,task_id,filename,blob_key,uploaded_by,uploaded_at) VALUES (?,?,?,?,?,?)`,
		a.ID, a.TaskID, a.Filename, a.BlobKey, a.UploadedBy, a.UploadedAt)
	return a, err
}

func (r Repo) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
