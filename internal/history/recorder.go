// Package history writes login and logout activity records. Writes happen in
// the background; callers never wait for them and never see their errors.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ActivityLogin  = "login"
	ActivityLogout = "logout"

	maxUserAgentLen = 255

	DefaultPageSize = 50
	MaxPageSize     = 100
)

type Activity struct {
	CreatedAt time.Time `json:"created_at"`
	UserAgent string    `json:"user_agent"`
	Activity  string    `json:"activity"`
}

type Recorder struct {
	db      *sql.DB
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRecorder(db *sql.DB, log *zap.Logger, timeout time.Duration) *Recorder {
	return &Recorder{db: db, log: log, timeout: timeout}
}

func (r *Recorder) RecordLogin(ctx context.Context, userID uuid.UUID, userAgent string) {
	r.record(ctx, userID, userAgent, ActivityLogin)
}

func (r *Recorder) RecordLogout(ctx context.Context, userID uuid.UUID, userAgent string) {
	r.record(ctx, userID, userAgent, ActivityLogout)
}

// Wait blocks until all pending writes have finished. Called on shutdown.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) record(ctx context.Context, userID uuid.UUID, userAgent, activity string) {
	if userAgent == "" {
		userAgent = "Unknown"
	}
	userAgent = truncateRunes(strings.ToValidUTF8(userAgent, "\uFFFD"), maxUserAgentLen)

	// the request context is cancelled as soon as the handler returns
	ctx = context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		_, err := r.db.ExecContext(ctx, `
			INSERT INTO user_activity_history (id, user_id, user_agent, activity)
			VALUES ($1, $2, $3, $4)`,
			uuid.New(), userID, userAgent, activity,
		)
		if err != nil {
			r.log.Warn("failed to record user activity",
				zap.String("user_id", userID.String()),
				zap.String("activity", activity),
				zap.Error(err),
			)
		}
	}()
}

// List returns the user's activity, newest first. limit is clamped to
// MaxPageSize and a non-positive limit means DefaultPageSize.
func (r *Recorder) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Activity, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT created_at, user_agent, activity
		FROM user_activity_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select user activity: %w", err)
	}
	defer rows.Close()

	activities := make([]Activity, 0, limit)
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.CreatedAt, &a.UserAgent, &a.Activity); err != nil {
			return nil, fmt.Errorf("scan user activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user activity: %w", err)
	}
	return activities, nil
}

// truncateRunes keeps at most n characters. user_agent is VARCHAR(n), which
// counts characters, and a cut inside a rune is rejected by Postgres.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
