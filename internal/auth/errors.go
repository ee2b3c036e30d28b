package auth

import (
	"errors"
	"net/http"

	"github.com/AntonTsoy/tokenguard/internal/ratelimit"
	"github.com/AntonTsoy/tokenguard/internal/revocation"
	"github.com/AntonTsoy/tokenguard/internal/token"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserInactive       = errors.New("user is inactive")
	ErrUserNotFound       = errors.New("user not found")
	ErrCredentialsInvalid = errors.New("could not validate credentials")
	ErrValidationFailed   = errors.New("refresh token does not belong to the current user")
	ErrInsufficientRights = errors.New("insufficient rights")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	// ErrProcessFailed wraps a failure that happened after a mutation of a
	// multi-step operation already went through.
	ErrProcessFailed = errors.New("process failed")
	// ErrRefreshTokenRejected marks token errors that came from the refresh
	// token in the request body rather than the bearer access token.
	ErrRefreshTokenRejected = errors.New("refresh token rejected")

	ErrTokenExpired   = token.ErrTokenExpired
	ErrTokenMalformed = token.ErrTokenMalformed
	ErrTokenNotFound  = token.ErrTokenNotFound
	ErrDuplicateToken = token.ErrDuplicateToken
)

var reasonDetail = map[string]string{
	"invalid_credentials": "Invalid username or password",
	"user_inactive":       "User is inactive",
	"user_not_found":      "User not found",
	"token_expired":       "Token has expired, log in to get a new one",
	"token_malformed":     "Invalid token",
	"token_not_found":     "Token does not exist, log in to get a new one",
	"credentials_invalid": "Could not validate credentials",
	"validation_failed":   "Refresh token does not match the current user",
	"insufficient_rights": "Insufficient rights",
	"rate_limit_exceeded": "too many requests",
	"process_failed":      "Processing error",
	"invalid_request":     "Invalid request body",
	"service_unavailable": "Service temporarily unavailable",
	"internal_error":      "Internal server error",
}

// statusFor maps an error to the HTTP status and machine-readable reason
// returned to clients. A Redis outage is 503 on every path unless a mutation
// already went through. Anything outside the taxonomy is an internal error.
func statusFor(err error) (int, string) {
	tokenStatus := http.StatusUnauthorized
	if errors.Is(err, ErrRefreshTokenRejected) {
		tokenStatus = http.StatusBadRequest
	}

	switch {
	case errors.Is(err, ErrProcessFailed):
		return http.StatusUnprocessableEntity, "process_failed"
	case errors.Is(err, revocation.ErrUnavailable), errors.Is(err, ratelimit.ErrUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, ErrDuplicateToken):
		return http.StatusInternalServerError, "internal_error"
	case errors.Is(err, ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "rate_limit_exceeded"
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, ErrUserInactive):
		return http.StatusForbidden, "user_inactive"
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, ErrInsufficientRights):
		return http.StatusForbidden, "insufficient_rights"
	case errors.Is(err, ErrValidationFailed):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, ErrTokenNotFound):
		return http.StatusBadRequest, "token_not_found"
	case errors.Is(err, ErrCredentialsInvalid):
		return http.StatusUnauthorized, "credentials_invalid"
	case errors.Is(err, ErrTokenExpired):
		return tokenStatus, "token_expired"
	case errors.Is(err, ErrTokenMalformed):
		return tokenStatus, "token_malformed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
