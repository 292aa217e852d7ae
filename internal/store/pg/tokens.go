package pg

import (
	"context"
	"database/sql"
	"errors"

	"taskera.org/internal/auth"
)

type tokenStore struct {
	db *sql.DB
}

func (st *tokenStore) Create(ctx context.Context, tok *auth.RefreshToken) error {
	_, err := st.db.ExecContext(ctx, `
		insert into refresh_tokens(id, user_id, token_hash, expires_at, created_at, revoked)
		values ($1, $2, $3, $4, now(), false)
	`, tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt)
	if isForeignKeyViolation(err) {
		return auth.ErrNotFound
	}
	return err
}

func (st *tokenStore) Find(ctx context.Context, id string) (*auth.RefreshToken, error) {
	var tok auth.RefreshToken
	err := st.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, expires_at, created_at, revoked
		from refresh_tokens where id=$1
	`, id).Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.ExpiresAt, &tok.CreatedAt, &tok.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (st *tokenStore) MarkRevoked(ctx context.Context, id string) error {
	res, err := st.db.ExecContext(ctx, `
		update refresh_tokens set revoked=true where id=$1
	`, id)
	if err != nil {
		return err
	}
	return oneRow(res, auth.ErrNotFound)
}

func (st *tokenStore) MarkRevokedByUser(ctx context.Context, userID string) error {
	_, err := st.db.ExecContext(ctx, `
		update refresh_tokens set revoked=true where user_id=$1 and not revoked
	`, userID)
	return err
}
