package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/study-room-booking/internal/apperror"
)

// TokenRepo keeps refresh tokens for the session endpoints.  Rows hold
// the SHA-256 of the raw token, never the token itself.  Calls made
// with a transaction context join that transaction.
type TokenRepo struct{ db *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		userID, tokenHash, exp.UTC())
	return apperror.StoreWrite("store refresh token", err)
}

// ValidateRefresh resolves a token hash to its account.  Unknown,
// revoked and expired tokens all come back as not found so callers
// cannot tell them apart.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash = ?`,
		tokenHash).Scan(&userID, &expiresAt, &revokedAt)
	if err != nil {
		return 0, readErr("validate refresh token", "refresh token not found", err)
	}
	if revokedAt.Valid || !now.UTC().Before(expiresAt.UTC()) {
		return 0, apperror.NotFound("refresh token not found")
	}
	return userID, nil
}

func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	return r.revoke(ctx, "revoke refresh token", `token_hash = ?`, tokenHash)
}

// RevokeAllForUser ends every session of an account; used when an
// admin rejects it.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	return r.revoke(ctx, "revoke refresh tokens", `user_id = ?`, userID)
}

func (r *TokenRepo) revoke(ctx context.Context, op, where string, arg any) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP() WHERE `+where+` AND revoked_at IS NULL`,
		arg)
	return apperror.StoreWrite(op, err)
}
