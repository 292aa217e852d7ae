package auth

import (
	"time"

	"taskera.org/internal/authz"
)

// User is an account record. DepartmentID and PositionID are empty until an
// administrator assigns the user; Status tracks the account lifecycle and is
// always read fresh from storage, never from a token. VerifyTokenHash holds
// the hashed single-use verification secret issued at registration and is
// cleared once the email is confirmed.
type User struct {
	ID              string
	Email           string
	Name            string
	PasswordHash    string
	Status          authz.AccountStatus
	EmailVerified   bool
	VerifyTokenHash string
	VerifiedAt      *time.Time
	DepartmentID    string
	PositionID      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RefreshToken is a persisted, hashed refresh credential. Rotation marks the
// old row revoked and issues a replacement.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}
