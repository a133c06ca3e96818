package repository_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises behaviour every repository implementation must share.
// newRepos must return repositories over an empty store.
func runContract(t *testing.T, newRepos func(t *testing.T) *repository.Repositories) {
	ctx := context.Background()

	assertion := func() domain.IdentityAssertion {
		return domain.IdentityAssertion{
			Provider:  domain.ProviderGoogle,
			SubjectID: gofakeit.UUID(),
			Email:     gofakeit.Email(),
			Name:      gofakeit.Name(),
		}
	}

	storeToken := func(t *testing.T, repos *repository.Repositories, userID string, createdAt, expiresAt time.Time) *domain.RefreshToken {
		token := &domain.RefreshToken{
			UserID:     userID,
			TokenHash:  repository.HashToken(gofakeit.UUID()),
			Scope:      domain.ProviderGoogle,
			DeviceInfo: "Safari on iOS",
			CreatedAt:  createdAt,
			ExpiresAt:  expiresAt,
		}
		require.NoError(t, repos.Token.Create(ctx, token))
		return token
	}

	t.Run("GetOrCreate creates once", func(t *testing.T) {
		repos := newRepos(t)
		a := assertion()

		first, created, err := repos.User.GetOrCreate(ctx, a)
		require.NoError(t, err)
		assert.True(t, created)
		assert.True(t, first.IsActive)
		assert.Equal(t, a.SubjectID, first.ProviderUserID)

		renamed := a
		renamed.Name = "Someone Else"
		second, created, err := repos.User.GetOrCreate(ctx, renamed)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, a.Name, second.Username)
	})

	t.Run("GetOrCreate fits oversized profiles to the columns", func(t *testing.T) {
		repos := newRepos(t)
		a := assertion()
		a.Name = strings.Repeat("ü", 200) + "\xff"
		a.Email = strings.Repeat("a", 250) + "@example.com"

		user, created, err := repos.User.GetOrCreate(ctx, a)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, 150, utf8.RuneCountInString(user.Username))
		assert.True(t, utf8.ValidString(user.Username))
		assert.Empty(t, user.Email)

		again, created, err := repos.User.GetOrCreate(ctx, a)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, user.ID, again.ID)
	})

	t.Run("GetOrCreate is safe under concurrency", func(t *testing.T) {
		repos := newRepos(t)
		a := assertion()

		const workers = 16
		ids := make([]string, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				user, _, err := repos.User.GetOrCreate(ctx, a)
				if assert.NoError(t, err) {
					ids[i] = user.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})

	t.Run("GetOrCreate rejects an email bound to another identity", func(t *testing.T) {
		repos := newRepos(t)
		a := assertion()
		_, _, err := repos.User.GetOrCreate(ctx, a)
		require.NoError(t, err)

		other := assertion()
		other.Email = a.Email
		_, _, err = repos.User.GetOrCreate(ctx, other)
		assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
	})

	t.Run("GetOrCreate without email", func(t *testing.T) {
		repos := newRepos(t)
		first := assertion()
		first.Email = ""
		second := assertion()
		second.Email = ""

		_, _, err := repos.User.GetOrCreate(ctx, first)
		require.NoError(t, err)
		_, created, err := repos.User.GetOrCreate(ctx, second)
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("local users", func(t *testing.T) {
		repos := newRepos(t)
		user := &domain.User{
			Email:        "  Staff@Example.com ",
			Username:     "staff",
			PasswordHash: "hash",
			IsActive:     true,
			IsStaff:      true,
		}
		require.NoError(t, repos.User.CreateLocal(ctx, user))
		assert.Equal(t, domain.ProviderLocal, user.Provider)

		found, err := repos.User.GetLocalByEmail(ctx, "staff@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
		assert.Equal(t, "hash", found.PasswordHash)
		assert.True(t, found.IsStaff)

		err = repos.User.CreateLocal(ctx, &domain.User{Email: "staff@example.com"})
		assert.True(t, errors.Is(err, repository.ErrDuplicateUser) || errors.Is(err, repository.ErrDuplicateEmail), err)

		_, err = repos.User.GetLocalByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("GetByID and UpdateLastLogin", func(t *testing.T) {
		repos := newRepos(t)
		user, _, err := repos.User.GetOrCreate(ctx, assertion())
		require.NoError(t, err)
		assert.Nil(t, user.LastLoginAt)

		at := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, repos.User.UpdateLastLogin(ctx, user.ID, at))

		found, err := repos.User.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, found.LastLoginAt)
		assert.WithinDuration(t, at, *found.LastLoginAt, time.Millisecond)

		for _, id := range []string{uuid.New().String(), "not-a-uuid"} {
			_, err = repos.User.GetByID(ctx, id)
			assert.ErrorIs(t, err, repository.ErrNotFound, id)
		}
		assert.ErrorIs(t, repos.User.UpdateLastLogin(ctx, uuid.New().String(), at), repository.ErrNotFound)
	})

	t.Run("Revoke is monotonic and reports the transition once", func(t *testing.T) {
		repos := newRepos(t)
		user, _, err := repos.User.GetOrCreate(ctx, assertion())
		require.NoError(t, err)
		now := time.Now().UTC()
		token := storeToken(t, repos, user.ID, now, now.Add(time.Hour))

		active, err := repos.Token.FindActive(ctx, token.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, token.ID, active.ID)

		revoked, err := repos.Token.Revoke(ctx, token.ID, now)
		require.NoError(t, err)
		assert.True(t, revoked)

		revoked, err = repos.Token.Revoke(ctx, token.ID, now.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, revoked)

		_, err = repos.Token.FindActive(ctx, token.TokenHash)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		stored, err := repos.Token.FindByHash(ctx, token.TokenHash)
		require.NoError(t, err)
		assert.True(t, stored.Revoked)
		require.NotNil(t, stored.RevokedAt)
		assert.WithinDuration(t, now, *stored.RevokedAt, time.Millisecond)

		_, err = repos.Token.Revoke(ctx, uuid.New().String(), now)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("duplicate token hash", func(t *testing.T) {
		repos := newRepos(t)
		user, _, err := repos.User.GetOrCreate(ctx, assertion())
		require.NoError(t, err)
		now := time.Now().UTC()
		token := storeToken(t, repos, user.ID, now, now.Add(time.Hour))

		err = repos.Token.Create(ctx, &domain.RefreshToken{
			UserID:    user.ID,
			TokenHash: token.TokenHash,
			ExpiresAt: now.Add(time.Hour),
		})
		assert.ErrorIs(t, err, repository.ErrDuplicateToken)
	})

	t.Run("ListActiveByUser skips revoked and expired, newest first", func(t *testing.T) {
		repos := newRepos(t)
		user, _, err := repos.User.GetOrCreate(ctx, assertion())
		require.NoError(t, err)
		other, _, err := repos.User.GetOrCreate(ctx, assertion())
		require.NoError(t, err)

		now := time.Now().UTC()
		older := storeToken(t, repos, user.ID, now.Add(-2*time.Hour), now.Add(time.Hour))
		newer := storeToken(t, repos, user.ID, now.Add(-time.Hour), now.Add(time.Hour))
		storeToken(t, repos, user.ID, now.Add(-3*time.Hour), now.Add(-time.Minute))
		revoked := storeToken(t, repos, user.ID, now, now.Add(time.Hour))
		storeToken(t, repos, other.ID, now, now.Add(time.Hour))

		_, err = repos.Token.Revoke(ctx, revoked.ID, now)
		require.NoError(t, err)

		sessions, err := repos.Token.ListActiveByUser(ctx, user.ID, now)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, newer.ID, sessions[0].ID)
		assert.Equal(t, older.ID, sessions[1].ID)
	})

	t.Run("RevokeAllForUser and Deactivate", func(t *testing.T) {
		repos := newRepos(t)
		user, _, err := repos.User.GetOrCreate(ctx, assertion())
		require.NoError(t, err)
		other, _, err := repos.User.GetOrCreate(ctx, assertion())
		require.NoError(t, err)

		now := time.Now().UTC()
		for i := 0; i < 3; i++ {
			storeToken(t, repos, user.ID, now, now.Add(time.Hour))
		}
		kept := storeToken(t, repos, other.ID, now, now.Add(time.Hour))

		n, err := repos.Token.RevokeAllForUser(ctx, user.ID, now)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = repos.Token.RevokeAllForUser(ctx, user.ID, now)
		require.NoError(t, err)
		assert.Zero(t, n)

		storeToken(t, repos, user.ID, now, now.Add(time.Hour))
		n, err = repos.User.Deactivate(ctx, user.ID, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		found, err := repos.User.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, found.IsActive)

		_, err = repos.Token.FindActive(ctx, kept.TokenHash)
		assert.NoError(t, err)

		_, err = repos.User.Deactivate(ctx, uuid.New().String(), now)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
