package siwn

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeNetworkMismatch       = "NETWORK_MISMATCH"
	TextCodeInvalidAccountID      = "INVALID_ACCOUNT_ID"
	TextCodeInvalidOrExpiredNonce = "UNAUTHORIZED_INVALID_OR_EXPIRED_NONCE"
	TextCodeSignatureInvalid      = "UNAUTHORIZED_SIGNATURE"
	TextCodeRecipientMismatch     = "UNAUTHORIZED_RECIPIENT"
	TextCodeAccountMismatch       = "ACCOUNT_MISMATCH"
	TextCodeLimitedKeyRejected    = "LIMITED_ACCESS_KEY_REJECTED"
	TextCodeEmailRequired         = "EMAIL_REQUIRED"
	TextCodeEmailTaken            = "EMAIL_ALREADY_IN_USE"
	TextCodeAccountAlreadyLinked  = "ACCOUNT_ALREADY_LINKED"
	TextCodeAccountNotLinked      = "ACCOUNT_NOT_LINKED"
	TextCodeLastAuthMethod        = "LAST_AUTH_METHOD"
	TextCodeNoPrimaryAccount      = "NO_PRIMARY_ACCOUNT"
	TextCodeLinkingDisabled       = "LINKING_DISABLED"
	TextCodeSessionCreateFailed   = "SESSION_CREATE_FAILED"
	TextCodeSessionRequired       = "SESSION_REQUIRED"
	TextCodeIntegrityViolation    = "ACCOUNT_INTEGRITY_VIOLATION"
)

// ErrNetworkMismatch is returned when a caller supplied networkId does not
// match the network derived from the account id suffix.
var ErrNetworkMismatch = errors.New("networkId does not match account network", errors.CategoryBadInput).
	WithTextCode(TextCodeNetworkMismatch).
	WithCode(errors.CodeBadRequest)

// ErrInvalidAccountID is returned for malformed NEAR account ids.
var ErrInvalidAccountID = errors.New("invalid NEAR account id", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidAccountID).
	WithCode(errors.CodeBadRequest)

// ErrInvalidOrExpiredNonce is returned when no challenge exists for the
// account, or the challenge is past its expiry. Consumed nonces surface the
// same way, which is what makes them single use.
var ErrInvalidOrExpiredNonce = errors.New("invalid or expired nonce", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidOrExpiredNonce).
	WithCode(errors.CodeUnauthorized)

// ErrSignatureInvalid is the generic verification failure. Unexpected
// internal errors during verification are normalized to this value so no
// detail leaks to the caller.
var ErrSignatureInvalid = errors.New("signature verification failed", errors.CategoryAuth).
	WithTextCode(TextCodeSignatureInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrRecipientMismatch is returned when the signed message targets a
// different audience than the configured recipient.
var ErrRecipientMismatch = errors.New("signature recipient mismatch", errors.CategoryAuth).
	WithTextCode(TextCodeRecipientMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrAccountMismatch is returned when a valid signature recovers a different
// account than the one the caller asked to authenticate as.
var ErrAccountMismatch = errors.New("signature does not match requested account", errors.CategoryAuth).
	WithTextCode(TextCodeAccountMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrLimitedAccessKeyRejected is returned when the signing key is not a
// full-access key and policy does not approve it.
var ErrLimitedAccessKeyRejected = errors.New("limited access key rejected", errors.CategoryAuth).
	WithTextCode(TextCodeLimitedKeyRejected).
	WithCode(errors.CodeUnauthorized)

// ErrEmailRequired is returned when anonymous sign-in is disabled and the
// caller did not provide an email.
var ErrEmailRequired = errors.New("email is required", errors.CategoryBadInput).
	WithTextCode(TextCodeEmailRequired).
	WithCode(errors.CodeBadRequest)

// ErrEmailTaken is returned when a caller supplied email already belongs to
// another user. The email is unverified client input, so a collision never
// joins the existing user.
var ErrEmailTaken = errors.New("email already in use", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrAccountAlreadyLinked is returned when the (accountId, network) pair is
// claimed by any user.
var ErrAccountAlreadyLinked = errors.New("account already linked", errors.CategoryValidation).
	WithTextCode(TextCodeAccountAlreadyLinked).
	WithCode(errors.CodeBadRequest)

// ErrAccountNotLinked is returned when the unlink target is not linked to
// the calling user.
var ErrAccountNotLinked = errors.New("account not linked", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotLinked).
	WithCode(errors.CodeNotFound)

// ErrLastAuthMethod is returned when unlinking would remove the last
// authentication method and lock the user out.
var ErrLastAuthMethod = errors.New("cannot unlink last authentication method", errors.CategoryValidation).
	WithTextCode(TextCodeLastAuthMethod).
	WithCode(errors.CodeBadRequest)

// ErrNoPrimaryAccount is returned when a profile lookup needs the caller's
// primary account and none exists.
var ErrNoPrimaryAccount = errors.New("no primary NEAR account", errors.CategoryNotFound).
	WithTextCode(TextCodeNoPrimaryAccount).
	WithCode(errors.CodeNotFound)

// ErrLinkingDisabled is returned when explicit linking is turned off.
var ErrLinkingDisabled = errors.New("account linking disabled", errors.CategoryAuth).
	WithTextCode(TextCodeLinkingDisabled).
	WithCode(errors.CodeForbidden)

// ErrSessionCreateFailed is returned when the session token cannot be
// minted or stored. There is no partial-session state.
var ErrSessionCreateFailed = errors.New("failed to create session", errors.CategoryInternal).
	WithTextCode(TextCodeSessionCreateFailed).
	WithCode(errors.CodeInternal)

// ErrSessionRequired is returned by session-guarded routes with no valid
// session cookie.
var ErrSessionRequired = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeSessionRequired).
	WithCode(errors.CodeUnauthorized)

// ErrAccountIntegrity flags a NearAccount row with no paired provider
// Account row. The two are created and deleted together; drift between them
// is a data problem, not a state we serve from.
var ErrAccountIntegrity = errors.New("near account missing paired provider account", errors.CategoryInternal).
	WithTextCode(TextCodeIntegrityViolation).
	WithCode(errors.CodeInternal)

// IsUniqueViolation reports whether err is a unique constraint failure from
// the database driver. Covers sqlite and postgres message formats.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
