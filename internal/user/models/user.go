package models

import "time"

// Role values a user can carry. Authorities on minted tokens use the same
// strings, so the journal service can check them without a shared package.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// User is a registered account. PasswordHash is a bcrypt hash and must never
// leave the service layer.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidRole reports whether the string is a role this system knows.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
