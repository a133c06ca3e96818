package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/utils"
	"github.com/prperemyshlev/clavis-auth/pkg/database"
)

// getOrCreateAttempts bounds the insert/read loop of GetOrCreate
const getOrCreateAttempts = 3

const userColumns = `id, provider, provider_user_id, email, username, password_hash, is_active, is_staff, created_at, last_login_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var email sql.NullString
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Provider,
		&user.ProviderUserID,
		&email,
		&user.Username,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsStaff,
		&user.CreatedAt,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	if email.Valid {
		user.Email = email.String
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	return user, nil
}

func nullableEmail(email string) sql.NullString {
	email = utils.NormalizeEmail(email)
	return sql.NullString{String: email, Valid: email != ""}
}

// GetOrCreate inserts the user unless the provider identity already exists.
// A lost insert race is resolved by reading the winner's row.
func (r *userRepository) GetOrCreate(ctx context.Context, a domain.IdentityAssertion) (*domain.User, bool, error) {
	insert := `
		INSERT INTO users (id, provider, provider_user_id, email, username, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		ON CONFLICT (provider, provider_user_id) DO NOTHING
		RETURNING ` + userColumns

	email, username := profileOf(a)
	for attempt := 0; attempt < getOrCreateAttempts; attempt++ {
		row := r.db.DB.QueryRowContext(ctx, insert,
			uuid.New().String(),
			a.Provider,
			a.SubjectID,
			nullableEmail(email),
			username,
			time.Now().UTC(),
		)

		user, err := scanUser(row)
		if err == nil {
			return user, true, nil
		}

		constraint, unique := uniqueViolation(err)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case unique && constraint == usersEmailConstraint:
			// The email check can fire before the identity conflict is seen
			// when a concurrent first login for the same identity commits.
			existing, getErr := r.getByProviderSubject(ctx, a.Provider, a.SubjectID)
			if getErr == nil {
				return existing, false, nil
			}
			if errors.Is(getErr, ErrNotFound) {
				return nil, false, fmt.Errorf("email is bound to another account: %w", ErrDuplicateEmail)
			}
			return nil, false, getErr
		case unique:
		default:
			return nil, false, fmt.Errorf("failed to create user: %w", err)
		}

		existing, err := r.getByProviderSubject(ctx, a.Provider, a.SubjectID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}

	return nil, false, fmt.Errorf("failed to resolve user after %d attempts", getOrCreateAttempts)
}

func (r *userRepository) getByProviderSubject(ctx context.Context, provider, subject string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider = $1 AND provider_user_id = $2`

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, provider, subject))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s/%s not found: %w", provider, subject, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by provider identity: %w", err)
	}
	return user, nil
}

// CreateLocal creates a password-based local user
func (r *userRepository) CreateLocal(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, provider, provider_user_id, email, username, password_hash, is_active, is_staff, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Provider = domain.ProviderLocal
	user.Email = utils.NormalizeEmail(user.Email)
	if user.ProviderUserID == "" {
		user.ProviderUserID = "admin-" + user.Email
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		user.ID,
		user.Provider,
		user.ProviderUserID,
		nullableEmail(user.Email),
		user.Username,
		user.PasswordHash,
		user.IsActive,
		user.IsStaff,
		user.CreatedAt,
	)

	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == usersSubjectConstraint {
				return fmt.Errorf("local user %s already exists: %w", user.Email, ErrDuplicateUser)
			}
			return fmt.Errorf("user with email %s already exists: %w", user.Email, ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || invalidInput(err) {
			return nil, fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

// GetLocalByEmail retrieves a local (password) user by email
func (r *userRepository) GetLocalByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider = $1 AND email = $2`

	email = utils.NormalizeEmail(email)
	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, domain.ProviderLocal, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("local user with email %s not found: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// UpdateLastLogin updates the last login timestamp for a user
func (r *userRepository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, at, userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}

	return nil
}

// Deactivate marks the user inactive and revokes its refresh tokens in one transaction
func (r *userRepository) Deactivate(ctx context.Context, userID string, at time.Time) (int64, error) {
	var revoked int64

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE users SET is_active = FALSE WHERE id = $1`, userID)
		if err != nil {
			if invalidInput(err) {
				return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
			}
			return fmt.Errorf("failed to deactivate user: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
		}

		result, err = tx.ExecContext(ctx, `
			UPDATE refresh_tokens
			SET revoked = TRUE, revoked_at = $2
			WHERE user_id = $1 AND revoked = FALSE
		`, userID, at)
		if err != nil {
			return fmt.Errorf("failed to revoke user tokens: %w", err)
		}

		revoked, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})

	return revoked, err
}
