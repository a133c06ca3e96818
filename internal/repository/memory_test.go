package repository_test

import (
	"testing"
	"time"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositories(t *testing.T) {
	runContract(t, func(*testing.T) *repository.Repositories {
		return repository.NewMemoryRepositories()
	})
}

func TestMemoryHelpers(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	user, _, err := repos.User.GetOrCreate(t.Context(), domain.IdentityAssertion{
		Provider:  domain.ProviderApple,
		SubjectID: "001234.abcdef",
	})
	require.NoError(t, err)

	hash := repository.HashToken("raw")
	require.NoError(t, repos.Token.Create(t.Context(), &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	past := time.Now().Add(-time.Second)
	require.NoError(t, repository.SetTokenExpiry(repos.Token, hash, past))
	stored, err := repos.Token.FindByHash(t.Context(), hash)
	require.NoError(t, err)
	assert.True(t, stored.IsExpired(time.Now()))

	repository.DeleteAllTokens(repos.Token)
	_, err = repos.Token.FindByHash(t.Context(), hash)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHashToken(t *testing.T) {
	assert.Len(t, repository.HashToken("abc"), 64)
	assert.Equal(t, repository.HashToken("abc"), repository.HashToken("abc"))
	assert.NotEqual(t, repository.HashToken("abc"), repository.HashToken("abd"))
}
