package siwn

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultEmailDomain is the placeholder domain for anonymous user emails.
const DefaultEmailDomain = "users.near"

// LinkerConfig controls linking behavior. The zero value allows anonymous
// sign-in and explicit linking, with emails minted under DefaultEmailDomain.
type LinkerConfig struct {
	// EmailDomain is the domain used to mint placeholder emails for users
	// who sign in without providing one.
	EmailDomain string
	// DisableAnonymous rejects sign-ins that carry no email.
	DisableAnonymous bool
	// DisableLinking rejects explicit link requests for signed-in users.
	DisableLinking bool
}

// SignInInput carries a verify request: the wallet-produced auth token plus
// the identity the caller claims.
type SignInInput struct {
	AuthToken string
	AccountID string
	NetworkID string
	Email     string
}

// SignInResult is a completed sign-in: the resolved user, the NEAR account
// the session was verified against, and a minted session token.
type SignInResult struct {
	User      *User        `json:"user"`
	Account   *NearAccount `json:"account"`
	Token     string       `json:"token"`
	IsNewUser bool         `json:"is_new_user"`
}

// AccountLinker owns the account linking state machine: sign-in with
// create-or-join semantics, explicit link and unlink for signed-in users,
// and primary account bookkeeping. All mutations run inside a single
// transaction with the nonce consumption that authorizes them.
type AccountLinker struct {
	repo     RepositoryManager
	verifier *VerificationService
	tokens   TokenService
	resolver ProfileResolver
	activity ActivitySink
	config   LinkerConfig
	logger   Logger
}

// LinkerOption configures the account linker.
type LinkerOption func(*AccountLinker)

// WithLinkerLogger sets the logger.
func WithLinkerLogger(l Logger) LinkerOption {
	return func(a *AccountLinker) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithActivitySink registers an audit sink for linking mutations.
func WithActivitySink(sink ActivitySink) LinkerOption {
	return func(a *AccountLinker) {
		if sink != nil {
			a.activity = sink
		}
	}
}

// WithProfileResolver registers a profile source for ResolveProfile.
func WithProfileResolver(resolver ProfileResolver) LinkerOption {
	return func(a *AccountLinker) {
		if resolver != nil {
			a.resolver = resolver
		}
	}
}

// NewAccountLinker wires the linking state machine over the repositories,
// the verification core, and the session token service.
func NewAccountLinker(repo RepositoryManager, verifier *VerificationService, tokens TokenService, config LinkerConfig, opts ...LinkerOption) *AccountLinker {
	if config.EmailDomain == "" {
		config.EmailDomain = DefaultEmailDomain
	}

	a := &AccountLinker{
		repo:     repo,
		verifier: verifier,
		tokens:   tokens,
		activity: noopActivitySink{},
		config:   config,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// SignIn verifies the auth token and resolves it to a user session. A
// blockchain account already linked to a user joins that user; an unknown
// account creates a fresh user with the account as primary. The nonce
// consumption, account rows, and token mint all commit or roll back
// together, so a failed sign-in leaves no partial state.
func (a *AccountLinker) SignIn(ctx context.Context, input SignInInput) (*SignInResult, error) {
	accountID := strings.TrimSpace(input.AccountID)
	if err := ValidateAccountID(accountID); err != nil {
		return nil, err
	}

	if _, err := EnsureNetwork(accountID, input.NetworkID); err != nil {
		return nil, err
	}

	var result *SignInResult
	err := a.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err := a.verifier.VerifyTx(ctx, tx, input.AuthToken, accountID)
		if err != nil {
			return err
		}

		res, err := a.resolveSignInTx(ctx, tx, token, input.Email)
		if err != nil {
			return err
		}

		res.Token, err = a.tokens.Generate(res.User.ID.String(), res.Account.Summary())
		if err != nil {
			a.logger.Error("failed to mint session token for %s: %v", res.User.ID, err)
			return ErrSessionCreateFailed
		}

		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.emit(ctx, ActivityEventSignIn, result.User.ID, result.Account, map[string]any{
		"is_new_user": result.IsNewUser,
	})

	return result, nil
}

// resolveSignInTx maps a verified token to a user, creating the user and
// its account rows on first sign-in.
func (a *AccountLinker) resolveSignInTx(ctx context.Context, tx bun.IDB, token *VerifiedToken, email string) (*SignInResult, error) {
	network := NetworkForAccount(token.AccountID)

	existing, err := a.repo.NearAccounts().GetByAccountIDTx(ctx, tx, token.AccountID, network)
	if err == nil {
		user, err := a.loadUserTx(ctx, tx, existing.UserID)
		if err != nil {
			return nil, err
		}
		return &SignInResult{User: user, Account: existing}, nil
	}
	if !isNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up near account")
	}

	callerEmail := email != ""
	if !callerEmail {
		if a.config.DisableAnonymous {
			return nil, ErrEmailRequired
		}
		email = fmt.Sprintf("%s@%s", token.AccountID, a.config.EmailDomain)
	}

	user, isNew, err := a.resolveUserTx(ctx, tx, token.AccountID, email, callerEmail)
	if err != nil {
		return nil, err
	}

	primary, err := a.shouldBePrimaryTx(ctx, tx, user.ID)
	if err != nil {
		return nil, err
	}

	account, err := a.createLinkTx(ctx, tx, user.ID, token, primary)
	if err != nil {
		// Two first sign-ins for the same account can race past the lookup
		// above. The storage unique index breaks the tie; the loser joins
		// the winner's user instead of failing.
		if IsUniqueViolation(err) {
			if won, gerr := a.repo.NearAccounts().GetByAccountIDTx(ctx, tx, token.AccountID, network); gerr == nil {
				user, uerr := a.loadUserTx(ctx, tx, won.UserID)
				if uerr != nil {
					return nil, uerr
				}
				return &SignInResult{User: user, Account: won}, nil
			}
			return nil, ErrAccountAlreadyLinked
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to link near account")
	}

	return &SignInResult{User: user, Account: account, IsNewUser: isNew}, nil
}

// resolveUserTx finds the user owning the email or creates one. New user
// ids are derived deterministically from the email so retries of the same
// first sign-in converge on the same row. Join-by-email is allowed only for
// the derived placeholder email, which is a pure function of the account id
// the signature already proved; a caller supplied email that collides with
// an existing user is a conflict, never an adoption.
func (a *AccountLinker) resolveUserTx(ctx context.Context, tx bun.IDB, accountID, email string, callerEmail bool) (*User, bool, error) {
	user, err := a.repo.Users().GetByIdentifierTx(ctx, tx, email)
	if err == nil {
		if callerEmail {
			return nil, false, ErrEmailTaken
		}
		return user, false, nil
	}
	if !isNotFound(err) {
		return nil, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	record := &User{
		Name:  accountID,
		Email: email,
	}
	if id, err := hashid.NewUUID(email); err == nil {
		record.ID = id
	}
	record.AddMetadata("auth_provider", ProviderSIWN)

	created, err := a.repo.Users().CreateTx(ctx, tx, record)
	if err != nil {
		if callerEmail && IsUniqueViolation(err) {
			return nil, false, ErrEmailTaken
		}
		return nil, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	return created, true, nil
}

// Link attaches an additional blockchain account to an existing user. The
// auth token proves the caller controls the account being linked, not the
// account behind the session.
func (a *AccountLinker) Link(ctx context.Context, userID uuid.UUID, authToken, accountID, networkID string) (*NearAccount, error) {
	if a.config.DisableLinking {
		return nil, ErrLinkingDisabled
	}

	accountID = strings.TrimSpace(accountID)
	if err := ValidateAccountID(accountID); err != nil {
		return nil, err
	}
	network, err := EnsureNetwork(accountID, networkID)
	if err != nil {
		return nil, err
	}

	var linked *NearAccount
	err = a.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err := a.verifier.VerifyTx(ctx, tx, authToken, accountID)
		if err != nil {
			return err
		}

		_, err = a.repo.NearAccounts().GetByAccountIDTx(ctx, tx, accountID, network)
		if err == nil {
			return ErrAccountAlreadyLinked
		}
		if !isNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up near account")
		}

		primary, err := a.shouldBePrimaryTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		linked, err = a.createLinkTx(ctx, tx, userID, token, primary)
		if err != nil {
			if IsUniqueViolation(err) {
				return ErrAccountAlreadyLinked
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to link near account")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	a.emit(ctx, ActivityEventAccountLinked, userID, linked, nil)

	return linked, nil
}

// Unlink detaches a blockchain account from the user. Refuses to remove the
// last authentication method, and promotes another linked account to primary
// in the same transaction when the primary is removed.
func (a *AccountLinker) Unlink(ctx context.Context, userID uuid.UUID, accountID, networkID string) error {
	accountID = strings.TrimSpace(accountID)
	if err := ValidateAccountID(accountID); err != nil {
		return err
	}
	network, err := EnsureNetwork(accountID, networkID)
	if err != nil {
		return err
	}

	var removed *NearAccount
	err = a.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := a.repo.NearAccounts().GetByAccountIDTx(ctx, tx, accountID, network)
		if err != nil {
			if isNotFound(err) {
				return ErrAccountNotLinked
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up near account")
		}
		if account.UserID != userID {
			return ErrAccountNotLinked
		}

		count, err := a.repo.Accounts().CountByUserTx(ctx, tx, userID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count auth methods")
		}
		if count <= 1 {
			return ErrLastAuthMethod
		}

		providerAccountID := ProviderAccountID(accountID, network)
		if _, err := a.repo.Accounts().GetByUserProviderTx(ctx, tx, userID, ProviderSIWN, providerAccountID); err != nil {
			if isNotFound(err) {
				a.logger.Error("near account %s has no paired provider account", providerAccountID)
				return ErrAccountIntegrity
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up provider account")
		}

		if account.IsPrimary {
			if err := a.promoteNextTx(ctx, tx, userID, account.ID); err != nil {
				return err
			}
		}

		if err := a.repo.NearAccounts().DeleteTx(ctx, tx, account.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete near account")
		}
		if err := a.repo.Accounts().DeleteByUserProviderTx(ctx, tx, userID, ProviderSIWN, providerAccountID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete provider account")
		}

		removed = account
		return nil
	})
	if err != nil {
		return err
	}

	a.emit(ctx, ActivityEventAccountUnlinked, userID, removed, map[string]any{
		"was_primary": removed.IsPrimary,
	})

	return nil
}

// ListAccounts returns every blockchain account linked to the user.
func (a *AccountLinker) ListAccounts(ctx context.Context, userID uuid.UUID) ([]*NearAccount, error) {
	accounts, err := a.repo.NearAccounts().ListByUser(ctx, userID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list near accounts")
	}
	return accounts, nil
}

// Primary returns the user's primary blockchain account.
func (a *AccountLinker) Primary(ctx context.Context, userID uuid.UUID) (*NearAccount, error) {
	account, err := a.repo.NearAccounts().Primary(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNoPrimaryAccount
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load primary account")
	}
	return account, nil
}

// ResolveProfile fetches a display profile for an account. With an empty
// accountID it targets the user's primary account. Resolver failures
// degrade to a nil profile rather than failing the request.
func (a *AccountLinker) ResolveProfile(ctx context.Context, userID uuid.UUID, accountID, networkID string) (map[string]any, error) {
	var network Network

	if accountID == "" {
		primary, err := a.Primary(ctx, userID)
		if err != nil {
			return nil, err
		}
		accountID, network = primary.AccountID, primary.Network
	} else {
		if err := ValidateAccountID(accountID); err != nil {
			return nil, err
		}
		derived, err := EnsureNetwork(accountID, networkID)
		if err != nil {
			return nil, err
		}
		network = derived
	}

	if a.resolver == nil {
		return nil, nil
	}

	profile, err := a.resolver.Profile(ctx, accountID, network)
	if err != nil {
		a.logger.Info("profile lookup failed for %s: %v", accountID, err)
		return nil, nil
	}

	return profile, nil
}

func (a *AccountLinker) loadUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*User, error) {
	user, err := a.repo.Users().GetByIdentifierTx(ctx, tx, userID.String())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}
	return user, nil
}

// shouldBePrimaryTx reports whether the next linked account becomes the
// user's primary, which is the case only when none exists yet.
func (a *AccountLinker) shouldBePrimaryTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (bool, error) {
	_, err := a.repo.NearAccounts().PrimaryTx(ctx, tx, userID)
	if err == nil {
		return false, nil
	}
	if isNotFound(err) {
		return true, nil
	}
	return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check primary account")
}

// createLinkTx inserts the NearAccount and its paired provider Account row.
// The two rows always travel together.
func (a *AccountLinker) createLinkTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, token *VerifiedToken, primary bool) (*NearAccount, error) {
	network := NetworkForAccount(token.AccountID)

	account, err := a.repo.NearAccounts().CreateTx(ctx, tx, &NearAccount{
		UserID:    userID,
		AccountID: token.AccountID,
		Network:   network,
		PublicKey: token.PublicKey,
		IsPrimary: primary,
	})
	if err != nil {
		return nil, err
	}

	if _, err := a.repo.Accounts().CreateTx(ctx, tx, &Account{
		UserID:     userID,
		ProviderID: ProviderSIWN,
		AccountID:  ProviderAccountID(token.AccountID, network),
	}); err != nil {
		return nil, err
	}

	return account, nil
}

// promoteNextTx marks an arbitrary remaining account as primary before the
// current primary is removed.
func (a *AccountLinker) promoteNextTx(ctx context.Context, tx bun.IDB, userID, removingID uuid.UUID) error {
	accounts, err := a.repo.NearAccounts().ListByUserTx(ctx, tx, userID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list near accounts")
	}

	for _, candidate := range accounts {
		if candidate.ID == removingID {
			continue
		}
		if err := a.repo.NearAccounts().SetPrimaryTx(ctx, tx, candidate.ID, true); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to promote primary account")
		}
		return nil
	}

	return nil
}

func (a *AccountLinker) emit(ctx context.Context, eventType string, userID uuid.UUID, account *NearAccount, metadata map[string]any) {
	event := ActivityEvent{
		Type:       eventType,
		OccurredAt: time.Now(),
		Metadata:   metadata,
	}
	event.Actor = ActorRef{UserID: userID}
	if account != nil {
		event.Actor.AccountID = account.AccountID
		event.Actor.Network = account.Network
	}

	if err := a.activity.RecordActivity(ctx, event); err != nil {
		a.logger.Error("failed to record %s activity: %v", eventType, err)
	}
}

// IssueNonce validates the account and hands out a fresh challenge from the
// underlying nonce service.
func (a *AccountLinker) IssueNonce(ctx context.Context, accountID, networkID string) (string, Network, error) {
	accountID = strings.TrimSpace(accountID)
	if err := ValidateAccountID(accountID); err != nil {
		return "", "", err
	}
	network, err := EnsureNetwork(accountID, networkID)
	if err != nil {
		return "", "", err
	}

	nonce, err := a.verifier.nonces.Issue(ctx, accountID, network)
	if err != nil {
		return "", "", err
	}

	return nonce, network, nil
}
