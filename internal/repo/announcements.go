package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskdesk/internal/domain"
)

const announcementColumns = `id,title,content,author_id,importance,visible_to_json,expires_at,created_at,updated_at`

func scanAnnouncement(scan func(...any) error) (domain.Announcement, error) {
	var a domain.Announcement
	var visibleJSON string
	var expires sql.NullString
	err := scan(&a.ID, &a.Title, &a.Content, &a.AuthorID, &a.Importance, &visibleJSON, &expires, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(visibleJSON), &a.VisibleTo); err != nil {
		return a, fmt.Errorf("decode visible_to for announcement %s: %w", a.ID, err)
	}
	if expires.Valid {
		a.ExpiresAt = &expires.String
	}
	return a, nil
}

func (r Repo) InsertAnnouncement(ctx context.Context, a domain.Announcement) (domain.Announcement, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.VisibleTo == nil {
		a.VisibleTo = []string{}
	}
	visibleJSON, err := json.Marshal(a.VisibleTo)
	if err != nil {
		return domain.Announcement{}, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	a.CreatedAt, a.UpdatedAt = now, now
	_, err = r.DB.ExecContext(ctx, `INSERT INTO announcements(id,title,content,author_id,importance,visible_to_json,expires_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Title, a.Content, a.AuthorID, a.Importance, string(visibleJSON), nullableStringPtr(a.ExpiresAt), a.CreatedAt, a.UpdatedAt)
	return a, err
}

func (r Repo) GetAnnouncement(ctx context.Context, id string) (domain.Announcement, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id=?`, id)
	a, err := scanAnnouncement(row.Scan)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if a.ReadBy, err = r.announcementReads(ctx, id); err != nil {
		return a, err
	}
	return a, nil
}

func (r Repo) announcementReads(ctx context.Context, id string) ([]domain.ReadReceipt, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT reader_id,read_at FROM announcement_reads WHERE announcement_id=? ORDER BY read_at ASC, reader_id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ReadReceipt
	for rows.Next() {
		var rr domain.ReadReceipt
		if err := rows.Scan(&rr.ReaderID, &rr.ReadAt); err != nil {
			return nil, err
		}
		res = append(res, rr)
	}
	return res, rows.Err()
}

// ListAnnouncements returns all announcements, newest first. Visibility
// and expiry filtering is the access policy's job, not the store's.
func (r Repo) ListAnnouncements(ctx context.Context) ([]domain.Announcement, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+announcementColumns+` FROM announcements ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// AnnouncementUpdate carries the optional fields of a partial update.
type AnnouncementUpdate struct {
	Title       *string
	Content     *string
	Importance  *string
	VisibleTo   *[]string
	ExpiresAt   *string
	ClearExpiry bool
}

func (r Repo) UpdateAnnouncement(ctx context.Context, id string, upd AnnouncementUpdate) (domain.Announcement, error) {
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
	if upd.Content != nil {
		set("content", *upd.Content)
	}
	if upd.Importance != nil {
		set("importance", *upd.Importance)
	}
	if upd.VisibleTo != nil {
		visibleJSON, err := json.Marshal(*upd.VisibleTo)
		if err != nil {
			return domain.Announcement{}, err
		}
		set("visible_to_json", string(visibleJSON))
	}
	if upd.ClearExpiry {
		set("expires_at", nil)
	} else if upd.ExpiresAt != nil {
		set("expires_at", *upd.ExpiresAt)
	}
	if len(fields) > 0 {
		set("updated_at", time.Now().UTC().Format(time.RFC3339))
		args = append(args, id)
		res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE announcements SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
		if err != nil {
			return domain.Announcement{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.Announcement{}, ErrNotFound
		}
	}
	return r.GetAnnouncement(ctx, id)
}

func (r Repo) DeleteAnnouncement(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM announcements WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAnnouncementRead records a read receipt. Re-reads keep the first
// timestamp.
func (r Repo) MarkAnnouncementRead(ctx context.Context, id, readerID string) error {
	var exists int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM announcements WHERE id=?`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	_, err = r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO announcement_reads(announcement_id,reader_id,read_at) VALUES (?,?,?)`,
		id, readerID, time.Now().UTC().Format(time.RFC3339))
	return err
}
