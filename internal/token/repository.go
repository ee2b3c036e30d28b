package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// TokenRepository is the only writer of the refresh_tokens table.
type TokenRepository struct {
	db      *sql.DB
	timeout time.Duration
}

func NewTokenRepository(db *sql.DB, timeout time.Duration) *TokenRepository {
	return &TokenRepository{db: db, timeout: timeout}
}

// Create inserts rt as an active record. A zero ID is replaced by a new UUID.
func (r *TokenRepository) Create(ctx context.Context, rt *RefreshToken) (*RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec := *rt
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.IsActive = true

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING created_at`,
		rec.ID, rec.UserID, rec.Token, rec.ExpiresAt,
	).Scan(&rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateToken
		}
		return nil, fmt.Errorf("insert refresh token: %w", err)
	}
	return &rec, nil
}

// GetActiveByToken returns ErrTokenNotFound for unknown and for inactive tokens.
func (r *TokenRepository) GetActiveByToken(ctx context.Context, token string) (*RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rt RefreshToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token, expires_at, is_active, created_at
		FROM refresh_tokens
		WHERE token = $1`,
		token,
	).Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.ExpiresAt, &rt.IsActive, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("select refresh token: %w", err)
	}
	if !rt.IsActive {
		return nil, ErrTokenNotFound
	}
	return &rt, nil
}

// Deactivate flips an active record to inactive and reports whether this call
// did the flip. false means another caller consumed or revoked it first.
func (r *TokenRepository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET is_active = FALSE
		WHERE id = $1 AND is_active = TRUE`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate refresh token: %w", err)
	}
	return n == 1, nil
}
