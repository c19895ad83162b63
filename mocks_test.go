package siwn

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// In-memory repositories backing linker and controller tests. Interfaces the
// production code only partially exercises are stubbed via embedding; calling
// an unimplemented method panics, which is what we want in a test.

type stubUsers struct {
	Users
	records map[uuid.UUID]*User
}

func newStubUsers() *stubUsers {
	return &stubUsers{records: map[uuid.UUID]*User{}}
}

func (s *stubUsers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	for _, user := range s.records {
		if user.Email == identifier || user.ID.String() == identifier {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUsers) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	for _, user := range s.records {
		if user.Email == record.Email {
			return nil, errors.New("UNIQUE constraint failed: users.email")
		}
	}
	s.records[record.ID] = record
	return record, nil
}

type stubNearAccounts struct {
	records []*NearAccount
}

func newStubNearAccounts() *stubNearAccounts {
	return &stubNearAccounts{}
}

func (s *stubNearAccounts) find(accountID string, network Network) *NearAccount {
	for _, record := range s.records {
		if record.AccountID == accountID && record.Network == network {
			return record
		}
	}
	return nil
}

func (s *stubNearAccounts) GetByAccountID(ctx context.Context, accountID string, network Network) (*NearAccount, error) {
	return s.GetByAccountIDTx(ctx, nil, accountID, network)
}

func (s *stubNearAccounts) GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID string, network Network) (*NearAccount, error) {
	if record := s.find(accountID, network); record != nil {
		return record, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubNearAccounts) ListByUser(ctx context.Context, userID uuid.UUID) ([]*NearAccount, error) {
	return s.ListByUserTx(ctx, nil, userID)
}

func (s *stubNearAccounts) ListByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*NearAccount, error) {
	var out []*NearAccount
	for _, record := range s.records {
		if record.UserID == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *stubNearAccounts) Primary(ctx context.Context, userID uuid.UUID) (*NearAccount, error) {
	return s.PrimaryTx(ctx, nil, userID)
}

func (s *stubNearAccounts) PrimaryTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*NearAccount, error) {
	for _, record := range s.records {
		if record.UserID == userID && record.IsPrimary {
			return record, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubNearAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *NearAccount) (*NearAccount, error) {
	if s.find(record.AccountID, record.Network) != nil {
		return nil, errors.New("UNIQUE constraint failed: near_accounts.account_id, near_accounts.network")
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	s.records = append(s.records, record)
	return record, nil
}

func (s *stubNearAccounts) SetPrimaryTx(ctx context.Context, tx bun.IDB, id uuid.UUID, primary bool) error {
	for _, record := range s.records {
		if record.ID == id {
			record.IsPrimary = primary
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *stubNearAccounts) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	for i, record := range s.records {
		if record.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

type stubAccounts struct {
	records []*Account
}

func newStubAccounts() *stubAccounts {
	return &stubAccounts{}
}

func (s *stubAccounts) CountByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	count := 0
	for _, record := range s.records {
		if record.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *stubAccounts) GetByUserProviderTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, providerID, accountID string) (*Account, error) {
	for _, record := range s.records {
		if record.UserID == userID && record.ProviderID == providerID && record.AccountID == accountID {
			return record, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	s.records = append(s.records, record)
	return record, nil
}

func (s *stubAccounts) DeleteByUserProviderTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, providerID, accountID string) error {
	for i, record := range s.records {
		if record.UserID == userID && record.ProviderID == providerID && record.AccountID == accountID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

type stubRepoManager struct {
	RepositoryManager
	users        *stubUsers
	nearAccounts *stubNearAccounts
	accounts     *stubAccounts
	challenges   *stubChallenges
}

func newStubRepoManager() *stubRepoManager {
	return &stubRepoManager{
		users:        newStubUsers(),
		nearAccounts: newStubNearAccounts(),
		accounts:     newStubAccounts(),
		challenges:   newStubChallenges(),
	}
}

func (s *stubRepoManager) Users() Users               { return s.users }
func (s *stubRepoManager) NearAccounts() NearAccounts { return s.nearAccounts }
func (s *stubRepoManager) Accounts() Accounts         { return s.accounts }
func (s *stubRepoManager) Challenges() Challenges     { return s.challenges }

func (s *stubRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

// splitAuthTokenVerifier treats the auth token as "accountId|nonce", standing
// in for a wallet signature over the canonical message for that pair.
func splitAuthTokenVerifier(recipient string) SignatureVerifier {
	return SignatureVerifierFunc(func(ctx context.Context, authToken string) (*VerifiedToken, error) {
		parts := strings.SplitN(authToken, "|", 2)
		if len(parts) != 2 {
			return nil, ErrSignatureInvalid
		}
		accountID, nonce := parts[0], parts[1]
		return &VerifiedToken{
			AccountID:     accountID,
			PublicKey:     "ed25519:dGVzdC1rZXk=",
			FullAccessKey: true,
			Message:       SignInMessage(recipient, accountID, nonce),
			Recipient:     recipient,
			Nonce:         nonce,
		}, nil
	})
}

// newStubLinker assembles an AccountLinker over the in-memory repositories.
func newStubLinker(config LinkerConfig, opts ...LinkerOption) (*AccountLinker, *stubRepoManager) {
	repo := newStubRepoManager()
	nonces := NewNonceService(repo.challenges)
	verifier := NewVerificationService(splitAuthTokenVerifier(testRecipient), nonces, testRecipient)
	tokens := NewTokenService(testSigningKey, 24, "siwn-test", jwt.ClaimStrings{"siwn-app"}, nil)

	return NewAccountLinker(repo, verifier, tokens, config, opts...), repo
}
