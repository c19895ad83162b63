package siwn

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DefaultNonceTTL is how long an issued challenge stays valid.
const DefaultNonceTTL = 15 * time.Minute

const nonceLength = 32

// DefaultNonceGenerator returns 32 bytes from crypto/rand.
func DefaultNonceGenerator() ([]byte, error) {
	buf := make([]byte, nonceLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// NonceService issues and consumes single-use verification challenges.
// A challenge moves issued -> consumed | expired; a new Issue for the same
// account overwrites any outstanding challenge, so there is at most one
// live nonce per (accountId, network) at a time.
type NonceService struct {
	challenges Challenges
	ttl        time.Duration
	generate   NonceGenerator
	logger     Logger
	now        func() time.Time
}

// NonceOption configures the nonce service.
type NonceOption func(*NonceService)

// WithNonceTTL overrides the default 15 minute challenge lifetime.
func WithNonceTTL(ttl time.Duration) NonceOption {
	return func(s *NonceService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithNonceGenerator plugs in a custom nonce source.
func WithNonceGenerator(g NonceGenerator) NonceOption {
	return func(s *NonceService) {
		if g != nil {
			s.generate = g
		}
	}
}

// WithNonceLogger sets the logger.
func WithNonceLogger(l Logger) NonceOption {
	return func(s *NonceService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNonceClock injects a custom clock (useful for tests).
func WithNonceClock(clock func() time.Time) NonceOption {
	return func(s *NonceService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewNonceService creates a nonce service over the challenge repository.
func NewNonceService(challenges Challenges, opts ...NonceOption) *NonceService {
	s := &NonceService{
		challenges: challenges,
		ttl:        DefaultNonceTTL,
		generate:   DefaultNonceGenerator,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// TTL returns the configured challenge lifetime.
func (s *NonceService) TTL() time.Duration {
	return s.ttl
}

// Issue generates a fresh challenge for the account and persists it,
// replacing any prior unconsumed nonce for the same key.
func (s *NonceService) Issue(ctx context.Context, accountID string, network Network) (string, error) {
	raw, err := s.generate()
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate nonce")
	}

	value := base64.StdEncoding.EncodeToString(raw)
	record := &VerificationChallenge{
		Identifier: ChallengeIdentifier(accountID, network),
		Value:      value,
		ExpiresAt:  s.now().Add(s.ttl),
	}

	if _, err := s.challenges.Upsert(ctx, record); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to persist challenge")
	}

	s.logger.Debug("issued nonce for %s on %s", accountID, network)

	return value, nil
}

// ConsumeTx fetches and deletes the outstanding challenge for the account.
// Missing and expired challenges both fail with ErrInvalidOrExpiredNonce.
// Running fetch and delete inside the caller's transaction is what makes the
// nonce single use under concurrent requests.
func (s *NonceService) ConsumeTx(ctx context.Context, tx bun.IDB, accountID string, network Network) (*VerificationChallenge, error) {
	identifier := ChallengeIdentifier(accountID, network)

	record, err := s.challenges.GetTx(ctx, tx, identifier)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidOrExpiredNonce
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load challenge")
	}

	affected, err := s.challenges.DeleteTx(ctx, tx, identifier)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to consume challenge")
	}
	// A concurrent request can read the same challenge before either delete
	// lands. The delete count is the arbiter: whoever removed the row owns
	// the nonce, everyone else lost it.
	if affected == 0 {
		return nil, ErrInvalidOrExpiredNonce
	}

	if record.Expired(s.now()) {
		return nil, ErrInvalidOrExpiredNonce
	}

	return record, nil
}
