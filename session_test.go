package siwn

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionObjectAccessors(t *testing.T) {
	userID := uuid.New()
	issuedAt := time.Now()

	session := &SessionObject{
		UserID:   userID.String(),
		Issuer:   "siwn-test",
		IssuedAt: &issuedAt,
		Data: map[string]any{
			"near_account_id": "alice.near",
			"near_network":    "mainnet",
		},
	}

	assert.Equal(t, userID.String(), session.GetUserID())
	assert.Equal(t, "siwn-test", session.GetIssuer())
	assert.Equal(t, "alice.near", session.NearAccountID())
	assert.Equal(t, NetworkMainnet, session.NearNetwork())

	parsed, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestGetRouterSessionFromAuthClaims(t *testing.T) {
	ctx := router.NewMockContext()

	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "siwn-test",
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UID:           "user-123",
		NearAccountID: "alice.near",
		NearNetwork:   "mainnet",
	}
	ctx.LocalsMock["user"] = claims

	session, err := GetRouterSession(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, "user-123", session.UserID)
	assert.Equal(t, "siwn-test", session.Issuer)
	assert.Equal(t, "alice.near", session.NearAccountID())
	assert.Equal(t, NetworkMainnet, session.NearNetwork())
	require.NotNil(t, session.IssuedAt)
	assert.WithinDuration(t, now, *session.IssuedAt, time.Second)
}

func TestGetRouterSessionFromJWTToken(t *testing.T) {
	ctx := router.NewMockContext()

	ctx.LocalsMock["user"] = &jwt.Token{
		Claims: jwt.MapClaims{
			"sub":             "user-456",
			"uid":             "user-456",
			"iss":             "siwn-test",
			"near_account_id": "bob.testnet",
			"near_network":    "testnet",
		},
	}

	session, err := GetRouterSession(ctx, "user")
	require.NoError(t, err)

	assert.Equal(t, "user-456", session.UserID)
	assert.Equal(t, "bob.testnet", session.NearAccountID())
	assert.Equal(t, NetworkTestnet, session.NearNetwork())
}

func TestGetRouterSessionMissing(t *testing.T) {
	ctx := router.NewMockContext()

	_, err := GetRouterSession(ctx, "user")
	require.ErrorIs(t, err, ErrSessionRequired)
}

func TestGetRouterSessionRejectsUnknownValue(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.LocalsMock["user"] = "not-a-session"

	_, err := GetRouterSession(ctx, "user")
	require.ErrorIs(t, err, ErrSessionRequired)
}
