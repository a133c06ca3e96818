package utils

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	assert.True(t, ValidatePassword("Sup3rSecretPass"))
	assert.False(t, ValidatePassword("Short1A"))
	assert.False(t, ValidatePassword("alllowercase123"))
	assert.False(t, ValidatePassword("ALLUPPERCASE123"))
	assert.False(t, ValidatePassword("NoDigitsAtAllHere"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "player@example.com", NormalizeEmail("  Player@Example.COM "))
	assert.True(t, ValidateEmail("player@example.com"))
	assert.False(t, ValidateEmail("player@"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "héł", Truncate("héłło", 3))
	assert.Equal(t, "", Truncate("abc", 0))

	broken := Truncate("Mozilla/5.0 \xff\xfe bro\x00ken", 255)
	assert.True(t, utf8.ValidString(broken))
	assert.NotContains(t, broken, "\x00")
	assert.Equal(t, "Mozilla/5.0 \uFFFD broken", broken)
}

func TestPasswordHasher(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := h.Hash("Sup3rSecretPass")
	require.NoError(t, err)

	assert.True(t, h.Compare("Sup3rSecretPass", hash))
	assert.False(t, h.Compare("wrong", hash))
	assert.False(t, h.Compare("Sup3rSecretPass", ""))

	_, err = NewPasswordHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)
}
