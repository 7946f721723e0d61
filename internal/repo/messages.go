package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"taskdesk/internal/domain"
)

const messageColumns = `id,sender_id,recipient_id,subject,content,is_read,read_at,related_task,created_at`

func scanMessage(scan func(...any) error) (domain.Message, error) {
	var m domain.Message
	var readAt, relatedTask sql.NullString
	err := scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Subject, &m.Content, &m.IsRead, &readAt, &relatedTask, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	if readAt.Valid {
		m.ReadAt = &readAt.String
	}
	if relatedTask.Valid {
		m.RelatedTask = &relatedTask.String
	}
	return m, nil
}

func (r Repo) InsertMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	m.IsRead = false
	m.ReadAt = nil
	_, err := r.DB.ExecContext(ctx, `INSERT INTO messages(id,sender_id,recipient_id,subject,content,is_read,read_at,related_task,created_at)
VALUES (?,?,?,?,?,0,NULL,?,?)`,
		m.ID, m.SenderID, m.RecipientID, m.Subject, m.Content, nullableStringPtr(m.RelatedTask), m.CreatedAt)
	return m, err
}

func (r Repo) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=?`, id)
	m, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) listMessages(ctx context.Context, where string, arg string) ([]domain.Message, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE `+where+` ORDER BY created_at DESC, id DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// ListInbox returns messages received by the principal, newest first.
func (r Repo) ListInbox(ctx context.Context, recipientID string) ([]domain.Message, error) {
	return r.listMessages(ctx, "recipient_id=?", recipientID)
}

// ListSent returns messages sent by the principal, newest first.
func (r Repo) ListSent(ctx context.Context, senderID string) ([]domain.Message, error) {
	return r.listMessages(ctx, "sender_id=?", senderID)
}

// MarkMessageRead stamps the message read. Re-reading keeps the first
// read timestamp.
func (r Repo) MarkMessageRead(ctx context.Context, id string) (domain.Message, error) {
	_, err := r.DB.ExecContext(ctx, `UPDATE messages SET is_read=1, read_at=COALESCE(read_at, ?) WHERE id=?`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return domain.Message{}, err
	}
	return r.GetMessage(ctx, id)
}

func (r Repo) DeleteMessage(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM messages WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUnread returns the principal's unread inbox size.
func (r Repo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE recipient_id=? AND is_read=0`, recipientID).Scan(&n)
	return n, err
}
