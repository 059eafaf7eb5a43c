package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	s := NewService("secret")
	s.RegisterAPICredentials(TestAPIKey, TestAPISecret)
	s.RegisterAPICredentials(TestBrokerKey, TestBrokerSecret, PermissionTrade, PermissionInternal)

	tok, err := s.GenerateToken(Credentials{APIKey: TestAPIKey, APISecret: TestAPISecret})
	require.NoError(t, err)

	claims, err := s.ValidateToken(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, TestAPIKey, claims.ClientID)
	assert.Equal(t, []string{PermissionTrade}, claims.Permissions)
	assert.Equal(t, TestAPIKey, GetClientID(claims))

	tok, err = s.GenerateToken(Credentials{APIKey: TestBrokerKey, APISecret: TestBrokerSecret})
	require.NoError(t, err)
	claims, err = s.ValidateToken(tok.Token)
	require.NoError(t, err)
	assert.Contains(t, claims.Permissions, PermissionInternal)
}

func TestInvalidCredentials(t *testing.T) {
	s := NewService("secret")
	s.RegisterAPICredentials(TestAPIKey, TestAPISecret)

	_, err := s.GenerateToken(Credentials{APIKey: TestAPIKey, APISecret: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.GenerateToken(Credentials{APIKey: "unknown", APISecret: TestAPISecret})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	issuer := NewService("one")
	issuer.RegisterAPICredentials(TestAPIKey, TestAPISecret)
	tok, err := issuer.GenerateToken(Credentials{APIKey: TestAPIKey, APISecret: TestAPISecret})
	require.NoError(t, err)

	_, err = NewService("two").ValidateToken(tok.Token)
	assert.Error(t, err)
}

func TestGetClientID(t *testing.T) {
	assert.Equal(t, "abc", GetClientID(jwt.MapClaims{"client_id": "abc"}))
	assert.Equal(t, "", GetClientID(jwt.MapClaims{}))
	assert.Equal(t, "", GetClientID("nope"))
}
