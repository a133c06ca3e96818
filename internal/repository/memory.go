package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/utils"
)

// memoryStore is a process-local store with the same constraints as the SQL schema
type memoryStore struct {
	mu       sync.RWMutex
	users    map[string]*domain.User
	subjects map[string]string
	emails   map[string]string
	tokens   map[string]*domain.RefreshToken
	hashes   map[string]string
}

// NewMemoryRepositories creates repositories backed by memory, sharing one store
func NewMemoryRepositories() *Repositories {
	s := &memoryStore{
		users:    make(map[string]*domain.User),
		subjects: make(map[string]string),
		emails:   make(map[string]string),
		tokens:   make(map[string]*domain.RefreshToken),
		hashes:   make(map[string]string),
	}
	return &Repositories{
		User:  &memoryUserRepository{s: s},
		Token: &memoryTokenRepository{s: s},
	}
}

func subjectKey(provider, subject string) string {
	return provider + "\x00" + subject
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

func copyToken(t *domain.RefreshToken) *domain.RefreshToken {
	c := *t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		c.RevokedAt = &at
	}
	return &c
}

type memoryUserRepository struct {
	s *memoryStore
}

func (r *memoryUserRepository) GetOrCreate(_ context.Context, a domain.IdentityAssertion) (*domain.User, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if id, ok := r.s.subjects[subjectKey(a.Provider, a.SubjectID)]; ok {
		return copyUser(r.s.users[id]), false, nil
	}

	email, username := profileOf(a)
	if email != "" {
		if _, taken := r.s.emails[email]; taken {
			return nil, false, fmt.Errorf("email is bound to another account: %w", ErrDuplicateEmail)
		}
	}

	user := &domain.User{
		ID:             uuid.New().String(),
		Provider:       a.Provider,
		ProviderUserID: a.SubjectID,
		Email:          email,
		Username:       username,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	r.s.insertUser(user)

	return copyUser(user), true, nil
}

func (s *memoryStore) insertUser(user *domain.User) {
	s.users[user.ID] = user
	s.subjects[subjectKey(user.Provider, user.ProviderUserID)] = user.ID
	if user.Email != "" {
		s.emails[user.Email] = user.ID
	}
}

func (r *memoryUserRepository) CreateLocal(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

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

	if _, ok := r.s.subjects[subjectKey(user.Provider, user.ProviderUserID)]; ok {
		return fmt.Errorf("local user %s already exists: %w", user.Email, ErrDuplicateUser)
	}
	if _, ok := r.s.emails[user.Email]; ok && user.Email != "" {
		return fmt.Errorf("user with email %s already exists: %w", user.Email, ErrDuplicateEmail)
	}

	r.s.insertUser(copyUser(user))
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
	}
	return copyUser(user), nil
}

func (r *memoryUserRepository) GetLocalByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = utils.NormalizeEmail(email)
	id, ok := r.s.emails[email]
	if !ok || r.s.users[id].Provider != domain.ProviderLocal {
		return nil, fmt.Errorf("local user with email %s not found: %w", email, ErrNotFound)
	}
	return copyUser(r.s.users[id]), nil
}

func (r *memoryUserRepository) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[userID]
	if !ok {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}
	user.LastLoginAt = &at
	return nil
}

func (r *memoryUserRepository) Deactivate(_ context.Context, userID string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[userID]
	if !ok {
		return 0, fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}
	user.IsActive = false

	return r.s.revokeAll(userID, at), nil
}

func (s *memoryStore) revokeAll(userID string, at time.Time) int64 {
	var n int64
	for _, t := range s.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			revokedAt := at
			t.RevokedAt = &revokedAt
			n++
		}
	}
	return n
}

type memoryTokenRepository struct {
	s *memoryStore
}

func (r *memoryTokenRepository) Create(_ context.Context, token *domain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.hashes[token.TokenHash]; ok {
		return fmt.Errorf("token with hash already exists: %w", ErrDuplicateToken)
	}
	if _, ok := r.s.users[token.UserID]; !ok {
		return fmt.Errorf("failed to create token: unknown user %s", token.UserID)
	}

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	token.Revoked = false

	stored := copyToken(token)
	r.s.tokens[stored.ID] = stored
	r.s.hashes[stored.TokenHash] = stored.ID
	return nil
}

func (r *memoryTokenRepository) FindActive(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.hashes[tokenHash]
	if !ok || r.s.tokens[id].Revoked {
		return nil, fmt.Errorf("active token not found: %w", ErrNotFound)
	}
	return copyToken(r.s.tokens[id]), nil
}

func (r *memoryTokenRepository) FindByHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.hashes[tokenHash]
	if !ok {
		return nil, fmt.Errorf("token with hash not found: %w", ErrNotFound)
	}
	return copyToken(r.s.tokens[id]), nil
}

func (r *memoryTokenRepository) Revoke(_ context.Context, tokenID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[tokenID]
	if !ok {
		return false, fmt.Errorf("token with id %s not found: %w", tokenID, ErrNotFound)
	}
	if t.Revoked {
		return false, nil
	}
	t.Revoked = true
	t.RevokedAt = &at
	return true, nil
}

func (r *memoryTokenRepository) RevokeAllForUser(_ context.Context, userID string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.revokeAll(userID, at), nil
}

func (r *memoryTokenRepository) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var tokens []*domain.RefreshToken
	for _, t := range r.s.tokens {
		if t.UserID == userID && !t.Revoked && t.ExpiresAt.After(now) {
			tokens = append(tokens, copyToken(t))
		}
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})
	return tokens, nil
}

// SetTokenExpiry overwrites a stored token's expiry. Test helper.
func SetTokenExpiry(repo TokenRepository, tokenHash string, expiresAt time.Time) error {
	m, ok := repo.(*memoryTokenRepository)
	if !ok {
		return fmt.Errorf("SetTokenExpiry requires a memory token repository")
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	id, ok := m.s.hashes[tokenHash]
	if !ok {
		return fmt.Errorf("token with hash not found: %w", ErrNotFound)
	}
	m.s.tokens[id].ExpiresAt = expiresAt
	return nil
}

// DeleteAllTokens drops every stored token. Test helper.
func DeleteAllTokens(repo TokenRepository) {
	if m, ok := repo.(*memoryTokenRepository); ok {
		m.s.mu.Lock()
		defer m.s.mu.Unlock()
		m.s.tokens = make(map[string]*domain.RefreshToken)
		m.s.hashes = make(map[string]string)
	}
}
