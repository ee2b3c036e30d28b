package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AntonTsoy/tokenguard/internal/history"
	"github.com/AntonTsoy/tokenguard/internal/metrics"
	"github.com/AntonTsoy/tokenguard/internal/token"
	"github.com/AntonTsoy/tokenguard/internal/users"
)

type RefreshTokenStore interface {
	Create(ctx context.Context, rt *token.RefreshToken) (*token.RefreshToken, error)
	GetActiveByToken(ctx context.Context, token string) (*token.RefreshToken, error)
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
}

type RevocationCache interface {
	Revoke(ctx context.Context, userID, accessToken string, ttl time.Duration) error
	IsRevoked(ctx context.Context, userID, accessToken string) (bool, error)
}

type UserDirectory interface {
	GetUserByUsernameOrEmail(ctx context.Context, login string) (*users.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// ActivityHistory writes are best-effort: Record* must not block the caller
// and report their own failures.
type ActivityHistory interface {
	RecordLogin(ctx context.Context, userID uuid.UUID, userAgent string)
	RecordLogout(ctx context.Context, userID uuid.UUID, userAgent string)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]history.Activity, error)
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"tokens_type"`
}

type Deps struct {
	Signer      *token.Signer
	Tokens      RefreshTokenStore
	Revocations RevocationCache
	Users       UserDirectory
	History     ActivityHistory
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

type Options struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AdminRole     string
	Now           func() time.Time
}

// Service owns every token lifecycle decision. A refresh token record moves
// from active to consumed (Refresh) or to revoked (Logout); both transitions go
// through the store's conditional deactivate, so at most one wins.
type Service struct {
	signer  *token.Signer
	tokens  RefreshTokenStore
	revoked RevocationCache
	users   UserDirectory
	history ActivityHistory
	metrics *metrics.Metrics
	log     *zap.Logger
	opts    Options
}

func NewService(deps Deps, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AdminRole == "" {
		opts.AdminRole = "admin"
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		signer:  deps.Signer,
		tokens:  deps.Tokens,
		revoked: deps.Revocations,
		users:   deps.Users,
		history: deps.History,
		metrics: deps.Metrics,
		log:     log,
		opts:    opts,
	}
}

// Login accepts either a username or an email as login.
func (s *Service) Login(ctx context.Context, login, password, userAgent string) (pair *TokenPair, err error) {
	defer func() { s.metrics.TokenOperation("login", err) }()

	u, err := s.users.GetUserByUsernameOrEmail(ctx, login)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}
	return s.IssuePair(ctx, u, userAgent)
}

// IssuePair mints an access/refresh pair for u and stores the refresh token as
// an active record.
func (s *Service) IssuePair(ctx context.Context, u *users.User, userAgent string) (*TokenPair, error) {
	claims := token.Claims{
		UserID:    u.ID.String(),
		Username:  u.Username,
		Roles:     u.RoleNames(s.opts.Now()),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}

	access, _, err := s.signer.Issue(claims, s.opts.AccessSecret, s.opts.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.signer.Issue(claims, s.opts.RefreshSecret, s.opts.RefreshTTL)
	if err != nil {
		return nil, err
	}

	_, err = s.tokens.Create(ctx, &token.RefreshToken{
		UserID:    u.ID,
		Token:     refresh,
		ExpiresAt: refreshExp,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateToken) {
			s.log.Error("refresh token collision", zap.String("user_id", claims.UserID))
			return nil, err
		}
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.history.RecordLogin(ctx, u.ID, userAgent)

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

// GetCurrentUser trusts the claims of accessToken only after the signature,
// the expiry, the revocation set and the live account state have all passed.
func (s *Service) GetCurrentUser(ctx context.Context, accessToken string) (claims *token.Claims, err error) {
	defer func() { s.metrics.TokenOperation("current_user", err) }()
	return s.currentUser(ctx, accessToken)
}

func (s *Service) currentUser(ctx context.Context, accessToken string) (*token.Claims, error) {
	claims, err := s.signer.Verify(accessToken, s.opts.AccessSecret)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id is not a uuid", ErrTokenMalformed)
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.UserID, accessToken)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrCredentialsInvalid
	}

	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrCredentialsInvalid
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}
	return claims, nil
}

// Refresh exchanges an active refresh token for a new pair. The old record is
// claimed before the new pair is minted, so concurrent refreshes of the same
// token produce exactly one pair; the losers get ErrTokenNotFound.
func (s *Service) Refresh(ctx context.Context, refreshToken, userAgent string) (pair *TokenPair, err error) {
	defer func() { s.metrics.TokenOperation("refresh", err) }()

	claims, err := s.signer.Verify(refreshToken, s.opts.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshTokenRejected, err)
	}

	rec, err := s.tokens.GetActiveByToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	u, err := s.users.GetUserByUsernameOrEmail(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u.ID != rec.UserID {
		return nil, ErrUserNotFound
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}

	consumed, err := s.tokens.Deactivate(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	if !consumed {
		return nil, ErrTokenNotFound
	}

	pair, err = s.IssuePair(ctx, u, userAgent)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token consumed but new pair not issued: %w", ErrProcessFailed, err)
	}
	return pair, nil
}

// Logout revokes accessToken and deactivates refreshToken. Both tokens must
// belong to the same user. If either post-condition does not hold the caller
// gets ErrProcessFailed and no history is recorded.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken, userAgent string) (err error) {
	defer func() { s.metrics.TokenOperation("logout", err) }()

	current, err := s.currentUser(ctx, accessToken)
	if err != nil {
		return err
	}

	refreshClaims, err := s.signer.Verify(refreshToken, s.opts.RefreshSecret)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshTokenRejected, err)
	}
	if refreshClaims.Username != current.Username || refreshClaims.UserID != current.UserID {
		return ErrValidationFailed
	}

	rec, err := s.tokens.GetActiveByToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("lookup refresh token: %w", err)
	}

	remaining := current.ExpiresAt.Time.Sub(s.opts.Now())
	if err := s.revoked.Revoke(ctx, current.UserID, accessToken, remaining); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}

	revoked, err := s.revoked.IsRevoked(ctx, current.UserID, accessToken)
	if err != nil {
		return fmt.Errorf("%w: confirm revocation: %w", ErrProcessFailed, err)
	}
	deactivated, err := s.tokens.Deactivate(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("%w: deactivate refresh token: %w", ErrProcessFailed, err)
	}
	if !revoked || !deactivated {
		s.log.Warn("logout post-conditions failed",
			zap.String("user_id", current.UserID),
			zap.Bool("access_revoked", revoked),
			zap.Bool("refresh_deactivated", deactivated),
		)
		return ErrProcessFailed
	}

	s.history.RecordLogout(ctx, rec.UserID, userAgent)
	return nil
}

// CheckRights resolves the caller and applies the role gate. The admin role
// passes every gate; an empty requiredRole admits any authenticated user.
func (s *Service) CheckRights(ctx context.Context, accessToken, requiredRole string) (claims *token.Claims, err error) {
	defer func() { s.metrics.TokenOperation("check_rights", err) }()

	claims, err = s.currentUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if claims.HasRole(s.opts.AdminRole) || requiredRole == "" {
		return claims, nil
	}
	if !claims.HasRole(requiredRole) {
		return nil, ErrInsufficientRights
	}
	return claims, nil
}

// History returns a page of the caller's own login and logout activity.
func (s *Service) History(ctx context.Context, accessToken string, limit, offset int) (activities []history.Activity, err error) {
	defer func() { s.metrics.TokenOperation("history", err) }()

	claims, err := s.currentUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id is not a uuid", ErrTokenMalformed)
	}
	activities, err = s.history.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return activities, nil
}
