package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rpggio/attemptlog/internal/repository"
)

// APIKeyRepository maps bearer tokens to user IDs
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create stores the hash of token for userID
func (r *APIKeyRepository) Create(ctx context.Context, token, userID, description string) error {
	query := `
		INSERT INTO api_keys (key_hash, user_id, created_at, description)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, hashToken(token), userID, time.Now().UnixMilli(), description); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// ResolveUser returns the user owning token and records its use
func (r *APIKeyRepository) ResolveUser(ctx context.Context, token string) (string, error) {
	hash := hashToken(token)

	var userID string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM api_keys WHERE key_hash = ?`, hash).Scan(&userID)
	if err == sql.ErrNoRows || (err == nil && userID == "") {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now().UnixMilli(), hash); err != nil {
		return "", fmt.Errorf("failed to touch api key: %w", err)
	}

	return userID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
