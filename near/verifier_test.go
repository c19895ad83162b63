package near

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	siwn "github.com/near-everything/go-siwn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const verifierTestRecipient = "shop.example.near"

type stubAccessKeys struct {
	key *AccessKey
	err error

	lastNetwork   siwn.Network
	lastAccountID string
	lastPublicKey string
}

func (s *stubAccessKeys) ViewAccessKey(ctx context.Context, network siwn.Network, accountID, publicKey string) (*AccessKey, error) {
	s.lastNetwork = network
	s.lastAccountID = accountID
	s.lastPublicKey = publicKey
	return s.key, s.err
}

// signedAuthToken builds a wire token signed with a fresh key, applying
// mutate after signing so tests can tamper with individual fields.
func signedAuthToken(t *testing.T, accountID, nonce string, mutate func(*AuthToken)) (string, string) {
	t.Helper()

	public, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	message := siwn.SignInMessage(verifierTestRecipient, accountID, nonce)
	signature := ed25519.Sign(private, []byte(message))

	token := &AuthToken{
		AccountID: accountID,
		PublicKey: FormatPublicKey(public),
		Signature: base64.StdEncoding.EncodeToString(signature),
		Message:   message,
		Recipient: verifierTestRecipient,
		Nonce:     nonce,
	}
	if mutate != nil {
		mutate(token)
	}

	encoded, err := EncodeAuthToken(token)
	require.NoError(t, err)

	return encoded, token.PublicKey
}

func TestVerifyTokenHappyPath(t *testing.T) {
	keys := &stubAccessKeys{key: &AccessKey{FullAccess: true}}
	verifier := NewVerifier(keys)

	encoded, publicKey := signedAuthToken(t, "alice.near", "nonce-1", nil)

	token, err := verifier.VerifyToken(context.Background(), encoded)
	require.NoError(t, err)

	assert.Equal(t, "alice.near", token.AccountID)
	assert.Equal(t, publicKey, token.PublicKey)
	assert.Equal(t, "nonce-1", token.Nonce)
	assert.Equal(t, verifierTestRecipient, token.Recipient)
	assert.True(t, token.FullAccessKey)

	assert.Equal(t, siwn.NetworkMainnet, keys.lastNetwork)
	assert.Equal(t, "alice.near", keys.lastAccountID)
	assert.Equal(t, publicKey, keys.lastPublicKey)
}

func TestVerifyTokenLimitedAccessKey(t *testing.T) {
	keys := &stubAccessKeys{key: &AccessKey{FullAccess: false}}
	verifier := NewVerifier(keys)

	encoded, _ := signedAuthToken(t, "bob.testnet", "nonce-2", nil)

	token, err := verifier.VerifyToken(context.Background(), encoded)
	require.NoError(t, err)
	assert.False(t, token.FullAccessKey)
	assert.Equal(t, siwn.NetworkTestnet, keys.lastNetwork)
}

func TestVerifyTokenWithoutKeyLookup(t *testing.T) {
	verifier := NewVerifier(nil)

	encoded, _ := signedAuthToken(t, "alice.near", "nonce-3", nil)

	token, err := verifier.VerifyToken(context.Background(), encoded)
	require.NoError(t, err)
	// Without an on-chain lookup the key cannot be proven full access.
	assert.False(t, token.FullAccessKey)
}

func TestVerifyTokenRejectsTamperedSignature(t *testing.T) {
	verifier := NewVerifier(nil)

	encoded, _ := signedAuthToken(t, "alice.near", "nonce-4", func(token *AuthToken) {
		raw, err := base64.StdEncoding.DecodeString(token.Signature)
		require.NoError(t, err)
		raw[0] ^= 0xff
		token.Signature = base64.StdEncoding.EncodeToString(raw)
	})

	_, err := verifier.VerifyToken(context.Background(), encoded)
	require.ErrorIs(t, err, siwn.ErrSignatureInvalid)
}

func TestVerifyTokenRejectsForeignKeySignature(t *testing.T) {
	verifier := NewVerifier(nil)

	// Signed correctly, but the token claims a different public key.
	otherPublic, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	encoded, _ := signedAuthToken(t, "alice.near", "nonce-5", func(token *AuthToken) {
		token.PublicKey = FormatPublicKey(otherPublic)
	})

	_, err = verifier.VerifyToken(context.Background(), encoded)
	require.ErrorIs(t, err, siwn.ErrSignatureInvalid)
}

func TestVerifyTokenRejectsNonCanonicalMessage(t *testing.T) {
	verifier := NewVerifier(nil)

	encoded, _ := signedAuthToken(t, "alice.near", "nonce-6", func(token *AuthToken) {
		token.Message = "Please transfer all your tokens"
	})

	_, err := verifier.VerifyToken(context.Background(), encoded)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, goerrors.CategoryBadInput, richErr.Category)
}

func TestVerifyTokenRejectsUnregisteredKey(t *testing.T) {
	keys := &stubAccessKeys{err: goerrors.New("access key not found", goerrors.CategoryNotFound)}
	verifier := NewVerifier(keys)

	encoded, _ := signedAuthToken(t, "alice.near", "nonce-7", nil)

	_, err := verifier.VerifyToken(context.Background(), encoded)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, siwn.TextCodeSignatureInvalid, richErr.TextCode)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	verifier := NewVerifier(nil)

	_, err := verifier.VerifyToken(context.Background(), "not-base64!!!")
	require.Error(t, err)

	_, err = verifier.VerifyToken(context.Background(), base64.StdEncoding.EncodeToString([]byte("not json")))
	require.Error(t, err)
}

func TestParsePublicKey(t *testing.T) {
	public, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	parsed, err := ParsePublicKey(FormatPublicKey(public))
	require.NoError(t, err)
	assert.Equal(t, public, parsed)

	_, err = ParsePublicKey("secp256k1:" + base64.StdEncoding.EncodeToString(public))
	require.Error(t, err)

	_, err = ParsePublicKey("ed25519:dG9vLXNob3J0")
	require.Error(t, err)
}

func TestAuthTokenRoundTrip(t *testing.T) {
	token := &AuthToken{
		AccountID:   "alice.near",
		PublicKey:   "ed25519:dGVzdA==",
		Signature:   "c2lnbmF0dXJl",
		Message:     "Sign in to app\n\nAccount ID: alice.near\nNonce: abc",
		Recipient:   "app",
		Nonce:       "abc",
		CallbackURL: "https://app.example/callback",
	}

	encoded, err := EncodeAuthToken(token)
	require.NoError(t, err)

	decoded, err := DecodeAuthToken(encoded)
	require.NoError(t, err)
	assert.Equal(t, token, decoded)
}
