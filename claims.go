package siwn

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims represents structured session claims.
type AuthClaims interface {
	Subject() string
	UserID() string
	AccountID() string
	Network() Network
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID           string         `json:"uid,omitempty"`
	NearAccountID string         `json:"near_account_id,omitempty"`
	NearNetwork   string         `json:"near_network,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"` // extension payload
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// AccountID returns the NEAR account id the session was verified for.
func (c *JWTClaims) AccountID() string {
	return c.NearAccountID
}

// Network returns the network of the session's NEAR account.
func (c *JWTClaims) Network() Network {
	return Network(c.NearNetwork)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}
