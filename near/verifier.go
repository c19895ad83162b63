package near

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"strings"

	"github.com/goliatone/go-errors"
	siwn "github.com/near-everything/go-siwn"
)

const ed25519Prefix = "ed25519:"

// AccessKeyLookup resolves a public key against the account's registered
// access keys. RPCClient satisfies it.
type AccessKeyLookup interface {
	ViewAccessKey(ctx context.Context, network siwn.Network, accountID, publicKey string) (*AccessKey, error)
}

// Verifier is the default signature verifier. It checks the ed25519
// signature against the canonical sign-in message rebuilt from the token
// fields, then confirms on chain that the signing key belongs to the
// account.
type Verifier struct {
	keys   AccessKeyLookup
	logger siwn.Logger
}

// VerifierOption configures the verifier.
type VerifierOption func(*Verifier)

// WithVerifierLogger sets the logger.
func WithVerifierLogger(l siwn.Logger) VerifierOption {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewVerifier creates the default verifier over an access key lookup.
func NewVerifier(keys AccessKeyLookup, opts ...VerifierOption) *Verifier {
	v := &Verifier{keys: keys}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	return v
}

var _ siwn.SignatureVerifier = (*Verifier)(nil)

// VerifyToken implements siwn.SignatureVerifier.
func (v *Verifier) VerifyToken(ctx context.Context, authToken string) (*siwn.VerifiedToken, error) {
	token, err := DecodeAuthToken(authToken)
	if err != nil {
		return nil, err
	}

	// The signed message must be exactly the canonical one rebuilt from the
	// token's own fields. Anything else is not a sign-in signature.
	expected := siwn.SignInMessage(token.Recipient, token.AccountID, token.Nonce)
	if token.Message != expected {
		return nil, errors.New("signed message does not match canonical format", errors.CategoryBadInput)
	}

	publicKey, err := ParsePublicKey(token.PublicKey)
	if err != nil {
		return nil, err
	}

	signature, err := base64.StdEncoding.DecodeString(token.Signature)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "signature is not valid base64")
	}
	if len(signature) != ed25519.SignatureSize {
		return nil, errors.New("signature has wrong length", errors.CategoryBadInput)
	}

	if !ed25519.Verify(publicKey, []byte(token.Message), signature) {
		return nil, siwn.ErrSignatureInvalid
	}

	fullAccess := false
	if v.keys != nil {
		key, err := v.keys.ViewAccessKey(ctx, siwn.NetworkForAccount(token.AccountID), token.AccountID, token.PublicKey)
		if err != nil {
			// A signature from a key the account does not hold proves
			// nothing about the account.
			return nil, errors.Wrap(err, errors.CategoryAuth, "signing key not registered on account").
				WithTextCode(siwn.TextCodeSignatureInvalid).
				WithCode(errors.CodeUnauthorized)
		}
		fullAccess = key.FullAccess
	}

	return &siwn.VerifiedToken{
		AccountID:     token.AccountID,
		PublicKey:     token.PublicKey,
		FullAccessKey: fullAccess,
		Message:       token.Message,
		Recipient:     token.Recipient,
		Nonce:         token.Nonce,
		CallbackURL:   token.CallbackURL,
	}, nil
}

// ParsePublicKey decodes an "ed25519:" prefixed base64 public key.
func ParsePublicKey(encoded string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(encoded, ed25519Prefix) {
		return nil, errors.New("unsupported public key type", errors.CategoryBadInput)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, ed25519Prefix))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "public key is not valid base64")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("public key has wrong length", errors.CategoryBadInput)
	}

	return ed25519.PublicKey(raw), nil
}

// FormatPublicKey renders a raw ed25519 public key in wire format.
func FormatPublicKey(key ed25519.PublicKey) string {
	return ed25519Prefix + base64.StdEncoding.EncodeToString(key)
}
