package siwn

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

// SessionObject is the resolved session attached to router locals by the
// session middleware.
type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// NearAccountID returns the account id the session was verified for.
func (s *SessionObject) NearAccountID() string {
	if s.Data == nil {
		return ""
	}
	if v, ok := s.Data["near_account_id"].(string); ok {
		return v
	}
	return ""
}

// NearNetwork returns the network of the session's account.
func (s *SessionObject) NearNetwork() Network {
	if s.Data == nil {
		return ""
	}
	if v, ok := s.Data["near_network"].(string); ok {
		return Network(v)
	}
	return ""
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s iss=%s iat=%s data=%v",
		s.UserID,
		s.Issuer,
		issuedAt,
		s.Data,
	)
}

// sessionFromAuthClaims builds a SessionObject from validated claims.
func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrSessionRequired
	}

	data := make(map[string]any)
	if claims.AccountID() != "" {
		data["near_account_id"] = claims.AccountID()
		data["near_network"] = string(claims.Network())
	}

	issuer := claims.Subject()
	if jwtClaims, ok := claims.(*JWTClaims); ok {
		if jwtClaims.RegisteredClaims.Issuer != "" {
			issuer = jwtClaims.RegisteredClaims.Issuer
		}
		if len(jwtClaims.Metadata) > 0 {
			data["metadata"] = jwtClaims.Metadata
		}
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		UserID:         claims.UserID(),
		Issuer:         issuer,
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}

// GetRouterSession extracts the session from router locals. It accepts the
// values both the session middleware (AuthClaims) and generic JWT middleware
// (*jwt.Token) leave behind.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	if key == "" {
		key = "user"
	}

	raw := c.Locals(key)
	if raw == nil {
		return nil, ErrSessionRequired
	}

	switch v := raw.(type) {
	case *SessionObject:
		return v, nil
	case AuthClaims:
		return sessionFromAuthClaims(v)
	case *jwt.Token:
		if claims, ok := v.Claims.(*JWTClaims); ok {
			return sessionFromAuthClaims(claims)
		}
		if claims, ok := v.Claims.(jwt.MapClaims); ok {
			return sessionFromMapClaims(claims)
		}
		return nil, ErrSessionRequired
	}

	return nil, ErrSessionRequired
}

func sessionFromMapClaims(claims jwt.MapClaims) (*SessionObject, error) {
	session := &SessionObject{Data: map[string]any{}}

	if sub, err := claims.GetSubject(); err == nil {
		session.UserID = sub
	}
	if uid, ok := claims["uid"].(string); ok && uid != "" {
		session.UserID = uid
	}
	if iss, err := claims.GetIssuer(); err == nil {
		session.Issuer = iss
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		session.IssuedAt = &iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpirationDate = &exp.Time
	}
	if accountID, ok := claims["near_account_id"].(string); ok {
		session.Data["near_account_id"] = accountID
	}
	if network, ok := claims["near_network"].(string); ok {
		session.Data["near_network"] = network
	}

	if session.UserID == "" {
		return nil, ErrSessionRequired
	}

	return session, nil
}
