package auth

import (
	"context"

	"taskera.org/internal/authz"
)

// UserStore manages account records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// MarkVerified flips the account to UNASSIGNED and clears the stored
	// verification token hash.
	MarkVerified(ctx context.Context, userID string) error
}

// PositionDirectory resolves a user's position, including its permissions
// document, for principal construction.
type PositionDirectory interface {
	FindPosition(ctx context.Context, id string) (*authz.Position, error)
}

// RefreshTokenStore manages the refresh token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, id string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByUser(ctx context.Context, userID string) error
}

// Store bundles the persistence the auth service needs.
type Store interface {
	Users() UserStore
	Positions() PositionDirectory
	RefreshTokens() RefreshTokenStore
}
