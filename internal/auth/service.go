package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"taskera.org/internal/authz"
	"taskera.org/internal/ids"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14
)

// Service handles registration, login and token refresh, and builds the
// principal the authorization engine consumes. It never caches account
// state: Principal re-reads the user row on every call so a suspension or
// permission change applies to the very next request.
type Service struct {
	store      Store
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration

	// refresh coalesces concurrent refresh calls per token so that a burst
	// of requests racing on an expired access token results in exactly one
	// rotation; the losers share the winner's pair.
	refresh singleflight.Group
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates a new account in PENDING_VERIFICATION and returns the
// single-use verification token alongside it. Only the token's hash is
// stored; the caller is responsible for delivering the token to the address
// being verified.
func (s *Service) Register(ctx context.Context, email, name, password string) (*User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	password = strings.TrimSpace(password)
	if len(password) < 8 {
		return nil, "", fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}
	verifyToken, err := newSecret()
	if err != nil {
		return nil, "", err
	}
	user := &User{
		ID:              ids.New(),
		Email:           email,
		Name:            strings.TrimSpace(name),
		PasswordHash:    hash,
		Status:          authz.StatusPendingVerification,
		VerifyTokenHash: hashSecret(verifyToken),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, "", err
	}
	return user, verifyToken, nil
}

// VerifyEmail moves a pending account to UNASSIGNED. The token must match
// the one issued at registration; verification consumes it, so a replay
// fails against the cleared hash.
func (s *Service) VerifyEmail(ctx context.Context, userID, token string) error {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return err
	}
	if !authz.CanTransition(user.Status, authz.StatusUnassigned) {
		return fmt.Errorf("%w: account is %s", ErrInvalidInput, user.Status)
	}
	if user.VerifyTokenHash == "" || !hashMatches(user.VerifyTokenHash, token) {
		return ErrInvalidToken
	}
	return s.store.Users().MarkVerified(ctx, userID)
}

// Login checks credentials and issues a token pair. Archived accounts
// cannot log in at all; every other status may authenticate and is gated
// per-operation by the authorization engine.
func (s *Service) Login(ctx context.Context, email, password string) (*User, TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if user.Status == authz.StatusArchived {
		return nil, TokenPair{}, ErrAccountArchived
	}
	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token and returns a fresh pair. Concurrent
// calls with the same token are coalesced: at most one rotation runs and
// all callers receive its result.
func (s *Service) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	tokenID, tokenSecret, err := splitRefreshToken(raw)
	if err != nil {
		return TokenPair{}, err
	}
	v, err, _ := s.refresh.Do(tokenID, func() (any, error) {
		return s.rotate(ctx, tokenID, tokenSecret)
	})
	if err != nil {
		return TokenPair{}, err
	}
	return v.(TokenPair), nil
}

func (s *Service) rotate(ctx context.Context, tokenID, tokenSecret string) (TokenPair, error) {
	stored, err := s.store.RefreshTokens().Find(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if stored.Revoked || s.now().After(stored.ExpiresAt) {
		return TokenPair{}, ErrInvalidToken
	}
	if !hashMatches(stored.TokenHash, tokenSecret) {
		return TokenPair{}, ErrInvalidToken
	}
	if err := s.store.RefreshTokens().MarkRevoked(ctx, tokenID); err != nil {
		return TokenPair{}, err
	}
	return s.issuePair(ctx, stored.UserID)
}

// Logout revokes every refresh token the user holds.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.store.RefreshTokens().MarkRevokedByUser(ctx, userID)
}

// Principal builds the authorization principal for a verified user id.
// Status, department and position come from a fresh lookup; a missing user
// is an authentication failure.
func (s *Service) Principal(ctx context.Context, userID string) (authz.Principal, error) {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return authz.Principal{}, err
	}
	principal := authz.Principal{
		UserID:       user.ID,
		Status:       user.Status,
		DepartmentID: user.DepartmentID,
	}
	if user.PositionID != "" {
		pos, err := s.store.Positions().FindPosition(ctx, user.PositionID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return authz.Principal{}, err
		}
		// A dangling position reference degrades to no position: the
		// engine then applies the personal baseline instead of erroring.
		principal.Position = pos
	}
	return principal, nil
}

func (s *Service) issuePair(ctx context.Context, userID string) (TokenPair, error) {
	access, err := GenerateToken(userID, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	tokenSecret, err := newSecret()
	if err != nil {
		return TokenPair{}, err
	}
	tok := &RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		TokenHash: hashSecret(tokenSecret),
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if err := s.store.RefreshTokens().Create(ctx, tok); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: tok.ID + "." + tokenSecret,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	raw = strings.TrimSpace(raw)
	parts := strings.SplitN(raw, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidToken
	}
	return parts[0], parts[1], nil
}

func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func hashMatches(stored, secret string) bool {
	computed := hashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(computed)) == 1
}
