package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserRepository is a read-only view over the users and role tables. Account
// management lives in another service.
type UserRepository struct {
	db      *sql.DB
	timeout time.Duration
}

func NewUserRepository(db *sql.DB, timeout time.Duration) *UserRepository {
	return &UserRepository{db: db, timeout: timeout}
}

const selectUser = `
	SELECT u.id, u.username, u.email, u.hashed_password,
		COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), u.is_active,
		r.title, ur.is_active, ur.expire_at
	FROM users u
	LEFT JOIN user_role ur ON ur.user_id = u.id
	LEFT JOIN role r ON r.id = ur.role_id
`

// GetUserByUsernameOrEmail matches login against both columns.
func (r *UserRepository) GetUserByUsernameOrEmail(ctx context.Context, login string) (*User, error) {
	return r.get(ctx, `WHERE u.username = $1 OR u.email = $1`, login)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, `WHERE u.id = $1`, id)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, selectUser+where+` ORDER BY u.id, ur.created_at`, arg)
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	defer rows.Close()

	var u *User
	for rows.Next() {
		var (
			row       User
			roleName  sql.NullString
			roleOn    sql.NullBool
			roleUntil sql.NullTime
		)
		err := rows.Scan(&row.ID, &row.Username, &row.Email, &row.PasswordHash,
			&row.FirstName, &row.LastName, &row.IsActive,
			&roleName, &roleOn, &roleUntil)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if u == nil {
			u = &row
		} else if u.ID != row.ID {
			break
		}
		if roleName.Valid {
			ra := RoleAssignment{Name: roleName.String, IsActive: roleOn.Bool}
			if roleUntil.Valid {
				until := roleUntil.Time
				ra.ExpiresAt = &until
			}
			u.Roles = append(u.Roles, ra)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}
