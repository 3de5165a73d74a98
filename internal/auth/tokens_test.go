package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaymazone/marketplace/internal/domain"
)

const testSecret = "test-secret-0123456789"

func TestTokens_IssueAndParse(t *testing.T) {
	tokens, err := NewTokens(testSecret, time.Hour)
	require.NoError(t, err)

	raw, err := tokens.Issue(&domain.User{ID: "user-1", Role: domain.RoleSeller})
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "seller", claims.Role)
}

func TestTokens_RejectsTampering(t *testing.T) {
	tokens, err := NewTokens(testSecret, time.Hour)
	require.NoError(t, err)
	other, err := NewTokens("another-secret-abcdefgh", time.Hour)
	require.NoError(t, err)

	raw, err := other.Issue(&domain.User{ID: "user-1", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = tokens.Parse(raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = tokens.Parse("mock-jwt-token")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	good, err := tokens.Issue(&domain.User{ID: "user-1", Role: domain.RoleBuyer})
	require.NoError(t, err)
	parts := strings.Split(good, ".")
	require.Len(t, parts, 3)
	_, err = tokens.Parse(parts[0] + "." + parts[1] + ".c2lnbmF0dXJl")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokens_RejectsExpired(t *testing.T) {
	tokens, err := NewTokens(testSecret, time.Minute)
	require.NoError(t, err)

	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }
	raw, err := tokens.Issue(&domain.User{ID: "user-1", Role: domain.RoleBuyer})
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tokens.Parse(raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestNewTokens_Validation(t *testing.T) {
	_, err := NewTokens("short", time.Hour)
	assert.Error(t, err)
	_, err = NewTokens(testSecret, 0)
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)

	ok, err := CheckPassword(hash, "password123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "password123")
	assert.Error(t, err)
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", domain.MaxPasswordBytes+1))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)

	_, err = HashPassword(strings.Repeat("x", domain.MaxPasswordBytes))
	assert.NoError(t, err)
}
