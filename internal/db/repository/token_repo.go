package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// TokenRepository keeps the list of revoked token IDs
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Revoke adds a token's JTI to the revocation list
func (r *TokenRepository) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	query := r.db.Rebind(`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?) ON CONFLICT (jti) DO NOTHING`)
	if _, err := r.db.ExecContext(ctx, query, jti, expiresAt.UTC()); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	// Expired revocations can never match a valid token again
	_, _ = r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM revoked_tokens WHERE expires_at < ?`), time.Now().UTC())

	return nil
}

// IsRevoked checks if a token's JTI has been revoked
func (r *TokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`), jti)
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return count > 0, nil
}
