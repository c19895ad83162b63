package siwn

import (
	"context"
	"time"
)

// NonceValidator checks the freshness of a consumed challenge.
type NonceValidator func(challenge *VerificationChallenge, now time.Time) error

// RecipientValidator checks the audience embedded in the signed message.
type RecipientValidator func(recipient string) error

// MessageValidator optionally inspects the full signed message.
type MessageValidator func(message string) error

// LimitedAccessKeyValidator approves a specific (accountId, publicKey,
// recipient) combination when the signing key is not a full-access key.
// Function-call keys are never implicitly trusted.
type LimitedAccessKeyValidator func(ctx context.Context, accountID, publicKey, recipient string) error

// VerifyPolicies is the policy set applied during verification. It is built
// once at startup with named defaults; zero-value fields for the optional
// validators mean "skip".
type VerifyPolicies struct {
	RequireFullAccessKey     bool
	ValidateNonce            NonceValidator
	ValidateRecipient        RecipientValidator
	ValidateMessage          MessageValidator
	ValidateLimitedAccessKey LimitedAccessKeyValidator
}

// DefaultPolicies returns the standard policy set: full-access key required,
// nonce age capped at the default TTL, recipient matched exactly.
func DefaultPolicies(recipient string) VerifyPolicies {
	return VerifyPolicies{
		RequireFullAccessKey: true,
		ValidateNonce:        MaxNonceAge(DefaultNonceTTL),
		ValidateRecipient:    ExactRecipient(recipient),
	}
}

// MaxNonceAge rejects challenges past their expiry or older than maxAge.
func MaxNonceAge(maxAge time.Duration) NonceValidator {
	return func(challenge *VerificationChallenge, now time.Time) error {
		if challenge == nil || challenge.Expired(now) {
			return ErrInvalidOrExpiredNonce
		}
		if challenge.CreatedAt != nil && now.Sub(*challenge.CreatedAt) > maxAge {
			return ErrInvalidOrExpiredNonce
		}
		return nil
	}
}

// ExactRecipient requires the signed recipient to equal the configured one.
func ExactRecipient(expected string) RecipientValidator {
	return func(recipient string) error {
		if recipient != expected {
			return ErrRecipientMismatch
		}
		return nil
	}
}
