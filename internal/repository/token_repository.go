package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/pkg/database"
)

const tokenColumns = `id, user_id, token_hash, session_scope, device_info, revoked, revoked_at, expires_at, created_at`

// tokenRepository implements TokenRepository interface
type tokenRepository struct {
	db *database.Postgres
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *database.Postgres) TokenRepository {
	return &tokenRepository{db: db}
}

func scanToken(row rowScanner) (*domain.RefreshToken, error) {
	token := &domain.RefreshToken{}
	var revokedAt sql.NullTime

	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.Scope,
		&token.DeviceInfo,
		&token.Revoked,
		&revokedAt,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}

	return token, nil
}

// Create creates a new refresh token in the database
func (r *tokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, session_scope, device_info, revoked, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
	`

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	token.Revoked = false

	_, err := r.db.DB.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.Scope,
		token.DeviceInfo,
		token.ExpiresAt,
		token.CreatedAt,
	)

	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return fmt.Errorf("token with hash already exists: %w", ErrDuplicateToken)
		}
		return fmt.Errorf("failed to create token: %w", err)
	}

	return nil
}

// FindActive retrieves a non-revoked refresh token by its hash
func (r *tokenRepository) FindActive(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token_hash = $1 AND revoked = FALSE`

	token, err := scanToken(r.db.DB.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active token not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find active token: %w", err)
	}

	return token, nil
}

// FindByHash retrieves a refresh token by its hash in any state
func (r *tokenRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`

	token, err := scanToken(r.db.DB.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("token with hash not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get token by hash: %w", err)
	}

	return token, nil
}

// Revoke marks the token revoked. It reports false when the token was already revoked.
func (r *tokenRepository) Revoke(ctx context.Context, tokenID string, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE id = $1 AND revoked = FALSE
	`

	result, err := r.db.DB.ExecContext(ctx, query, tokenID, at)
	if err != nil {
		if invalidInput(err) {
			return false, fmt.Errorf("token with id %s not found: %w", tokenID, ErrNotFound)
		}
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return true, nil
	}

	var exists bool
	err = r.db.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE id = $1)`, tokenID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check token existence: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("token with id %s not found: %w", tokenID, ErrNotFound)
	}

	return false, nil
}

// RevokeAllForUser revokes every active token of a user
func (r *tokenRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE user_id = $1 AND revoked = FALSE
	`

	result, err := r.db.DB.ExecContext(ctx, query, userID, at)
	if err != nil {
		if invalidInput(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// ListActiveByUser returns the user's unrevoked, unexpired tokens, newest first
func (r *tokenRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID, now)
	if err != nil {
		if invalidInput(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list tokens by user id: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.RefreshToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tokens: %w", err)
	}

	return tokens, nil
}
