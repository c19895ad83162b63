package siwn

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// VerificationService runs the server side of the challenge-response
// protocol: consume the nonce, check the signature through the pluggable
// SignatureVerifier, then apply the policy set.
type VerificationService struct {
	verifier SignatureVerifier
	nonces   *NonceService
	policies VerifyPolicies
	logger   Logger
	now      func() time.Time
}

// VerifierOption configures the verification service.
type VerifierOption func(*VerificationService)

// WithPolicies replaces the default policy set.
func WithPolicies(p VerifyPolicies) VerifierOption {
	return func(s *VerificationService) {
		s.policies = p
	}
}

// WithVerifierLogger sets the logger.
func WithVerifierLogger(l Logger) VerifierOption {
	return func(s *VerificationService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVerifierClock injects a custom clock (useful for tests).
func WithVerifierClock(clock func() time.Time) VerifierOption {
	return func(s *VerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewVerificationService builds the verification core around a signature
// verifier and a nonce service. recipient seeds the default policy set.
func NewVerificationService(verifier SignatureVerifier, nonces *NonceService, recipient string, opts ...VerifierOption) *VerificationService {
	s := &VerificationService{
		verifier: verifier,
		nonces:   nonces,
		policies: DefaultPolicies(recipient),
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Policies returns the active policy set.
func (s *VerificationService) Policies() VerifyPolicies {
	return s.policies
}

// VerifyTx runs the full verification protocol inside the caller's
// transaction, so nonce consumption commits or rolls back with the account
// mutations that follow it.
//
// Failures surface as typed auth errors; anything unexpected (including
// panics from the verifier) is normalized to the generic ErrSignatureInvalid
// with the original logged.
func (s *VerificationService) VerifyTx(ctx context.Context, tx bun.IDB, authToken, accountID string) (token *VerifiedToken, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("verification panicked for %s: %v", accountID, r)
			token, err = nil, ErrSignatureInvalid
		}
	}()

	if err := ValidateAccountID(accountID); err != nil {
		return nil, err
	}
	network := NetworkForAccount(accountID)

	challenge, err := s.nonces.ConsumeTx(ctx, tx, accountID, network)
	if err != nil {
		return nil, err
	}

	if s.policies.ValidateNonce != nil {
		if err := s.policies.ValidateNonce(challenge, s.now()); err != nil {
			return nil, s.reject(accountID, err)
		}
	}

	token, err = s.verifier.VerifyToken(ctx, authToken)
	if err != nil {
		return nil, s.reject(accountID, err)
	}
	if token == nil {
		return nil, ErrSignatureInvalid
	}

	// The signed nonce must be the one we issued; anything else is a replay
	// of an older challenge.
	if token.Nonce != challenge.Value {
		return nil, ErrInvalidOrExpiredNonce
	}

	if s.policies.ValidateRecipient != nil {
		if err := s.policies.ValidateRecipient(token.Recipient); err != nil {
			return nil, s.reject(accountID, err)
		}
	}

	if s.policies.ValidateMessage != nil {
		if err := s.policies.ValidateMessage(token.Message); err != nil {
			return nil, s.reject(accountID, err)
		}
	}

	if token.AccountID != accountID {
		return nil, ErrAccountMismatch
	}

	if !token.FullAccessKey {
		if s.policies.RequireFullAccessKey || s.policies.ValidateLimitedAccessKey == nil {
			return nil, ErrLimitedAccessKeyRejected
		}
		if err := s.policies.ValidateLimitedAccessKey(ctx, token.AccountID, token.PublicKey, token.Recipient); err != nil {
			s.logger.Info("limited access key rejected for %s: %v", accountID, err)
			return nil, ErrLimitedAccessKeyRejected
		}
	}

	return token, nil
}

// reject passes typed auth errors through untouched and collapses anything
// else into the generic verification failure, keeping the original as a
// logged side channel only.
func (s *VerificationService) reject(accountID string, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryAuth {
		return richErr
	}

	s.logger.Error("verification failed for %s: %v", accountID, err)
	return ErrSignatureInvalid
}
