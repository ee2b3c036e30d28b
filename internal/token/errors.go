package token

import "errors"

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenNotFound  = errors.New("refresh token not found")
	// ErrDuplicateToken means two issued refresh tokens collided on the
	// unique token column. It should be unreachable.
	ErrDuplicateToken = errors.New("duplicate refresh token")
)
