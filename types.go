package siwn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

// VerifiedToken is the outcome of a successful signature check: the account
// the signature recovered, the key that produced it, and the fields embedded
// in the signed payload.
type VerifiedToken struct {
	AccountID     string
	PublicKey     string
	FullAccessKey bool
	Message       string
	Recipient     string
	Nonce         string
	CallbackURL   string
}

// SignatureVerifier checks an opaque auth token produced by a NEAR wallet.
// Implementations fail when the signature, recipient, or embedded nonce is
// invalid; they do not consult the challenge store.
type SignatureVerifier interface {
	VerifyToken(ctx context.Context, authToken string) (*VerifiedToken, error)
}

// SignatureVerifierFunc adapts a function to the SignatureVerifier interface.
type SignatureVerifierFunc func(ctx context.Context, authToken string) (*VerifiedToken, error)

func (f SignatureVerifierFunc) VerifyToken(ctx context.Context, authToken string) (*VerifiedToken, error) {
	return f(ctx, authToken)
}

// ProfileResolver fetches a human readable profile for an account. Lookups
// are best effort; callers swallow errors and degrade to nil.
type ProfileResolver interface {
	Profile(ctx context.Context, accountID string, network Network) (map[string]any, error)
}

// ProfileResolverFunc adapts a function to the ProfileResolver interface.
type ProfileResolverFunc func(ctx context.Context, accountID string, network Network) (map[string]any, error)

func (f ProfileResolverFunc) Profile(ctx context.Context, accountID string, network Network) (map[string]any, error) {
	return f(ctx, accountID, network)
}

// NonceGenerator produces the raw bytes for a challenge.
type NonceGenerator func() ([]byte, error)

// TokenService mints and validates session tokens.
type TokenService interface {
	Generate(userID string, account NearAccountSummary) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SIWN "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SIWN "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SIWN "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
