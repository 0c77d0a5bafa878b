package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"case-console/internal/model"
)

// TokenRepository persists refresh tokens by their SHA-256 digest, so a
// leaked table cannot be replayed against /auth/refresh.
type TokenRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool, now: time.Now}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *TokenRepository) Store(ctx context.Context, token string, userID string, expiresAt time.Time) error {
	if token == "" {
		return fmt.Errorf("store refresh token: empty token")
	}

	const q = `
		INSERT INTO refresh_tokens (token_hash, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.pool.Exec(ctx, q, hashToken(token), userID, r.now().UTC(), expiresAt.UTC()); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Consume removes an unexpired token and returns its owner. Each token
// works once; the caller issues a replacement.
func (r *TokenRepository) Consume(ctx context.Context, token string) (string, error) {
	const q = `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1 AND expires_at > $2
		RETURNING user_id`

	var userID string
	switch err := r.pool.QueryRow(ctx, q, hashToken(token), r.now().UTC()).Scan(&userID); {
	case errors.Is(err, pgx.ErrNoRows):
		return "", model.ErrTokenNotFound
	case err != nil:
		return "", fmt.Errorf("consume refresh token: %w", err)
	}
	return userID, nil
}

// Revoke is idempotent: an unknown token is not an error.
func (r *TokenRepository) Revoke(ctx context.Context, token string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, hashToken(token)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser drops every outstanding refresh token of userID.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TokenRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
