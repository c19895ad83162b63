package siwn

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// isNotFound treats both the generic repository not-found error and a raw
// sql.ErrNoRows from a bun query as a missing record.
func isNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}

// NearAccounts manages NearAccount persistence. The storage layer enforces
// the global uniqueness of (account_id, network); CreateTx surfaces a
// violation as a driver error detectable with IsUniqueViolation.
type NearAccounts interface {
	GetByAccountID(ctx context.Context, accountID string, network Network) (*NearAccount, error)
	GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID string, network Network) (*NearAccount, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*NearAccount, error)
	ListByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*NearAccount, error)
	Primary(ctx context.Context, userID uuid.UUID) (*NearAccount, error)
	PrimaryTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*NearAccount, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *NearAccount) (*NearAccount, error)
	SetPrimaryTx(ctx context.Context, tx bun.IDB, id uuid.UUID, primary bool) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

// Accounts manages the generic provider account rows shared with OAuth
// providers. The unlink safety check counts these rows.
type Accounts interface {
	CountByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
	GetByUserProviderTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, providerID, accountID string) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	DeleteByUserProviderTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, providerID, accountID string) error
}

// Challenges manages verification challenge persistence, keyed by the
// string identifier from ChallengeIdentifier. DeleteTx reports how many rows
// it removed; consumers treat zero as someone else having consumed the
// challenge first.
type Challenges interface {
	Upsert(ctx context.Context, record *VerificationChallenge) (*VerificationChallenge, error)
	GetTx(ctx context.Context, tx bun.IDB, identifier string) (*VerificationChallenge, error)
	DeleteTx(ctx context.Context, tx bun.IDB, identifier string) (int64, error)
}

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	NearAccounts() NearAccounts
	Accounts() Accounts
	Challenges() Challenges
}
