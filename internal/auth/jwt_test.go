package auth

import (
	"testing"
	"time"

	"bakery-pos/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() *TokenService {
	return NewTokenService("test-secret-key-for-testing-purposes", 15*time.Minute)
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	service := newTestTokenService()

	token, expiresAt, err := service.Issue("sess-1", "maria", models.RoleEmployee)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))

	claims, err := service.Validate(token)

	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "maria", claims.Username)
	assert.Equal(t, models.RoleEmployee, claims.Role)
	assert.Equal(t, "maria", claims.Subject)
}

func TestTokenService_Expired(t *testing.T) {
	service := NewTokenService("test-secret", time.Millisecond)

	token, _, err := service.Issue("sess-1", "admin", models.RoleAdmin)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	claims, err := service.Validate(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
	require.NotNil(t, claims)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestTokenService_Invalid(t *testing.T) {
	service := newTestTokenService()

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"malformed JWT", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestTokenService_WrongSignature(t *testing.T) {
	service1 := NewTokenService("secret-key-1", 15*time.Minute)
	service2 := NewTokenService("secret-key-2", 15*time.Minute)

	token, _, err := service1.Issue("sess-1", "maria", models.RoleEmployee)
	require.NoError(t, err)

	claims, err := service2.Validate(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestTokenService_RejectsNoneAlgorithm(t *testing.T) {
	service := newTestTokenService()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		SessionID: "sess-1",
		Username:  "admin",
		Role:      models.RoleAdmin,
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	claims, err := service.Validate(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestTokenService_RequiresSessionID(t *testing.T) {
	service := newTestTokenService()

	token, _, err := service.Issue("", "maria", models.RoleEmployee)
	require.NoError(t, err)

	_, err = service.Validate(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_ExpiredWithForeignSignature(t *testing.T) {
	foreign := NewTokenService("other-secret", time.Millisecond)
	token, _, err := foreign.Issue("sess-1", "admin", models.RoleAdmin)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	claims, err := NewTokenService("test-secret", time.Minute).Validate(token)

	assert.Error(t, err)
	assert.Nil(t, claims)
}
