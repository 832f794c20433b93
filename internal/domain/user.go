package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin    = "Admin"
	RoleCustomer = "Customer"
)

// User is a registered account
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// HasRole reports whether the user is a member of role
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// ValidRole reports whether role is one the store knows about
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleCustomer
}

// RefreshToken is an opaque long-lived token exchanged for new access tokens
type RefreshToken struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Token     string    `db:"token"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
	Revoked   bool      `db:"revoked"`
}

// Session is a storefront cookie session kept in Redis
type Session struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthorizationCode is a single-use OpenID Connect authorization code
type AuthorizationCode struct {
	Code                string    `json:"code"`
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	UserID              uuid.UUID `json:"user_id"`
	Scope               string    `json:"scope"`
	Nonce               string    `json:"nonce,omitempty"`
	CodeChallenge       string    `json:"code_challenge"`
	CodeChallengeMethod string    `json:"code_challenge_method"`
	ExpiresAt           time.Time `json:"expires_at"`
}
