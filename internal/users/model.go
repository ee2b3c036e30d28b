package users

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrNotFound = errors.New("user not found")

type RoleAssignment struct {
	Name      string
	IsActive  bool
	ExpiresAt *time.Time
}

// User is a point-in-time snapshot of an account and its role assignments.
// AdminView snapshots keep inactive and expired assignments.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	Roles        []RoleAssignment
	AdminView    bool
}

// RoleNames flattens the assignments that are in force at now, preserving
// their order.
func (u *User) RoleNames(now time.Time) []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if !u.AdminView && (!r.IsActive || (r.ExpiresAt != nil && !r.ExpiresAt.After(now))) {
			continue
		}
		names = append(names, r.Name)
	}
	return names
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
