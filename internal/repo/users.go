package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskdesk/internal/auth"
	"taskdesk/internal/domain"
)

// Users is the identity store adapter: lookups, secret verification and
// principal CRUD. No business logic lives here.
type Users struct {
	DB *sql.DB
}

const userColumns = `id,name,email,role,COALESCE(department,''),COALESCE(position,''),COALESCE(phone,''),COALESCE(avatar,''),password_hash,created_at,updated_at`

func scanUser(row *sql.Row) (domain.Principal, error) {
	var p domain.Principal
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.Department, &p.Position, &p.Phone, &p.Avatar, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (u Users) FindByEmail(ctx context.Context, email string) (domain.Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	return scanUser(u.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email))
}

func (u Users) FindByID(ctx context.Context, id string) (domain.Principal, error) {
	return scanUser(u.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

// VerifySecret compares the presented secret against the stored bcrypt
// hash. Never plaintext equality, demo accounts included.
func (u Users) VerifySecret(p domain.Principal, secret string) bool {
	return auth.ComparePasswordAndHash(secret, p.PasswordHash) == nil
}

// Create inserts a principal with a freshly hashed secret. The email
// must be unique.
func (u Users) Create(ctx context.Context, p domain.Principal, secret string, bcryptCost int) (domain.Principal, error) {
	hash, err := auth.HashPassword(secret, bcryptCost)
	if err != nil {
		return domain.Principal{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))
	p.PasswordHash = hash
	now := time.Now().UTC().Format(time.RFC3339)
	p.CreatedAt, p.UpdatedAt = now, now
	_, err = u.DB.ExecContext(ctx, `INSERT INTO users(id,name,email,role,department,position,phone,avatar,password_hash,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Email, p.Role, nullable(p.Department), nullable(p.Position), nullable(p.Phone), nullable(p.Avatar), p.PasswordHash, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err, "users.email") {
		return domain.Principal{}, ErrEmailExists
	}
	if err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}

// UserUpdate carries the optional profile fields of a partial update.
type UserUpdate struct {
	Name       *string
	Email      *string
	Role       *domain.Role
	Department *string
	Position   *string
	Phone      *string
	Avatar     *string
}

// Update applies a partial profile update and returns the stored row.
func (u Users) Update(ctx context.Context, id string, upd UserUpdate) (domain.Principal, error) {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v any) {
		fields = append(fields, col+"=?")
		args = append(args, v)
	}
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Email != nil {
		set("email", strings.TrimSpace(strings.ToLower(*upd.Email)))
	}
	if upd.Role != nil {
		set("role", *upd.Role)
	}
	if upd.Department != nil {
		set("department", nullable(*upd.Department))
	}
	if upd.Position != nil {
		set("position", nullable(*upd.Position))
	}
	if upd.Phone != nil {
		set("phone", nullable(*upd.Phone))
	}
	if upd.Avatar != nil {
		set("avatar", nullable(*upd.Avatar))
	}
	if len(fields) > 0 {
		set("updated_at", time.Now().UTC().Format(time.RFC3339))
		args = append(args, id)
		res, err := u.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE users SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
		if isUniqueViolation(err, "users.email") {
			return domain.Principal{}, ErrEmailExists
		}
		if err != nil {
			return domain.Principal{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.Principal{}, ErrNotFound
		}
	}
	return u.FindByID(ctx, id)
}

// UpdatePassword replaces the stored hash.
func (u Users) UpdatePassword(ctx context.Context, id, secret string, bcryptCost int) error {
	hash, err := auth.HashPassword(secret, bcryptCost)
	if err != nil {
		return err
	}
	res, err := u.DB.ExecContext(ctx, `UPDATE users SET password_hash=?, updated_at=? WHERE id=?`,
		hash, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a principal. The self-delete guard is enforced by the
// caller via the access policy; the adapter only deletes rows.
func (u Users) Delete(ctx context.Context, id string) error {
	res, err := u.DB.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (u Users) List(ctx context.Context) ([]domain.Principal, error) {
	rows, err := u.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Principal
	for rows.Next() {
		var p domain.Principal
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.Department, &p.Position, &p.Phone, &p.Avatar, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (u Users) Count(ctx context.Context) (int, error) {
	var n int
	err := u.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
