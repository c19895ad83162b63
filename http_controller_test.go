package siwn

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHTTPController(linker *AccountLinker) *HTTPController {
	return NewHTTPController(
		WithHTTPLinker(linker),
		WithHTTPTokens(newTestTokenService()),
	)
}

// signInStubUser runs a full sign-in against the in-memory linker and returns
// the session user id.
func signInStubUser(t *testing.T, linker *AccountLinker, accountID string) uuid.UUID {
	t.Helper()

	nonce, _, err := linker.IssueNonce(context.Background(), accountID, "")
	require.NoError(t, err)

	result, err := linker.SignIn(context.Background(), SignInInput{
		AuthToken: accountID + "|" + nonce,
		AccountID: accountID,
	})
	require.NoError(t, err)

	return result.User.ID
}

func sessionLocals(ctx *router.MockContext, userID uuid.UUID) {
	ctx.LocalsMock[DefaultSessionContextKey] = &JWTClaims{UID: userID.String()}
}

func TestHTTPNonceCreate(t *testing.T) {
	linker, _ := newStubLinker(LinkerConfig{})
	ctrl := newTestHTTPController(linker)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*NonceRequest)
		payload.AccountID = "alice.near"
		payload.PublicKey = "ed25519:dGVzdC1rZXk="
	})

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err := ctrl.NonceCreate(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, payload["nonce"])
	require.Equal(t, NetworkMainnet, payload["network"])
	ctx.AssertExpectations(t)
}

func TestHTTPNonceCreateValidationFailure(t *testing.T) {
	linker, _ := newStubLinker(LinkerConfig{})
	ctrl := newTestHTTPController(linker)

	ctx := router.NewMockContext()
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*NonceRequest)
		payload.NetworkID = "betanet"
	})

	var status int
	var payload map[string]any
	ctx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		status = args.Int(0)
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err := ctrl.NonceCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, false, payload["success"])

	apiErr, ok := payload["error"].(APIError)
	require.True(t, ok)
	require.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	require.Contains(t, apiErr.Fields, "accountId")
	require.Contains(t, apiErr.Fields, "networkId")
}

func TestHTTPVerifySetsCookieAndReturnsSession(t *testing.T) {
	linker, _ := newStubLinker(LinkerConfig{})
	ctrl := newTestHTTPController(linker)

	nonce, _, err := linker.IssueNonce(context.Background(), "alice.near", "")
	require.NoError(t, err)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*VerifyRequest)
		payload.AuthToken = "alice.near|" + nonce
		payload.AccountID = "alice.near"
	})

	var sessionCookie *router.Cookie
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		sessionCookie = args.Get(0).(*router.Cookie)
	}).Return()

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err = ctrl.Verify(ctx)
	require.NoError(t, err)

	require.Equal(t, true, payload["success"])
	require.Equal(t, true, payload["is_new_user"])
	require.NotEmpty(t, payload["token"])

	user, ok := payload["user"].(map[string]any)
	require.True(t, ok)
	require.NotEmpty(t, user["id"])
	require.Equal(t, "alice.near", user["accountId"])
	require.Equal(t, NetworkMainnet, user["network"])

	require.NotNil(t, sessionCookie)
	require.Equal(t, DefaultSessionCookieName, sessionCookie.Name)
	require.Equal(t, payload["token"], sessionCookie.Value)
	require.True(t, sessionCookie.HTTPOnly)
	require.True(t, sessionCookie.Secure)
	require.Equal(t, "Lax", sessionCookie.SameSite)
}

func TestHTTPVerifyRejectsMissingNonce(t *testing.T) {
	linker, _ := newStubLinker(LinkerConfig{})
	ctrl := newTestHTTPController(linker)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*VerifyRequest)
		payload.AuthToken = "alice.near|stale"
		payload.AccountID = "alice.near"
	})

	var status int
	var payload map[string]any
	ctx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		status = args.Int(0)
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err := ctrl.Verify(ctx)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, status)

	apiErr := payload["error"].(APIError)
	require.Equal(t, TextCodeInvalidOrExpiredNonce, apiErr.Code)
}

func TestHTTPLinkAccountRequiresSession(t *testing.T) {
	linker, _ := newStubLinker(LinkerConfig{})
	ctrl := newTestHTTPController(linker)

	ctx := router.NewMockContext()

	var status int
	ctx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		status = args.Int(0)
	}).Return(nil)

	err := ctrl.LinkAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestHTTPLinkAccount(t *testing.T) {
	linker, _ := newStubLinker(LinkerConfig{})
	ctrl := newTestHTTPController(linker)

	userID := signInStubUser(t, linker, "alice.near")

	nonce, _, err := linker.IssueNonce(context.Background(), "alice.testnet", "")
	require.NoError(t, err)

	ctx := router.NewMockContext()
	sessionLocals(ctx, userID)
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*LinkAccountRequest)
		payload.AuthToken = "alice.testnet|" + nonce
		payload.AccountID = "alice.testnet"
	})

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err = ctrl.LinkAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, true, payload["success"])
	require.Equal(t, "alice.testnet", payload["accountId"])
	require.Equal(t, NetworkTestnet, payload["network"])
	require.NotEmpty(t, payload["message"])

	account, ok := payload["account"].(*NearAccount)
	require.True(t, ok)
	require.Equal(t, "alice.testnet", account.AccountID)
	require.False(t, account.IsPrimary)
}

func TestHTTPUnlinkAccount(t *testing.T) {
	linker, _ := newStubLinker(LinkerConfig{})
	ctrl := newTestHTTPController(linker)

	userID := signInStubUser(t, linker, "alice.near")

	nonce, _, err := linker.IssueNonce(context.Background(), "alice.testnet", "")
	require.NoError(t, err)
	_, err = linker.Link(context.Background(), userID, "alice.testnet|"+nonce, "alice.testnet", "")
	require.NoError(t, err)

	ctx := router.NewMockContext()
	sessionLocals(ctx, userID)
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*UnlinkAccountRequest)
		payload.AccountID = "alice.testnet"
	})

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err = ctrl.UnlinkAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, true, payload["success"])
	require.Equal(t, "alice.testnet", payload["accountId"])
	require.Equal(t, NetworkTestnet, payload["network"])
	require.NotEmpty(t, payload["message"])
}

func TestHTTPUnlinkAccountRejectsLast(t *testing.T) {
	linker, _ := newStubLinker(LinkerConfig{})
	ctrl := newTestHTTPController(linker)

	userID := signInStubUser(t, linker, "alice.near")

	ctx := router.NewMockContext()
	sessionLocals(ctx, userID)
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*UnlinkAccountRequest)
		payload.AccountID = "alice.near"
	})

	var status int
	var payload map[string]any
	ctx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		status = args.Int(0)
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err := ctrl.UnlinkAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, status)

	apiErr := payload["error"].(APIError)
	require.Equal(t, TextCodeLastAuthMethod, apiErr.Code)
}

func TestHTTPListAccounts(t *testing.T) {
	linker, _ := newStubLinker(LinkerConfig{})
	ctrl := newTestHTTPController(linker)

	userID := signInStubUser(t, linker, "alice.near")

	ctx := router.NewMockContext()
	sessionLocals(ctx, userID)
	ctx.On("Context").Return(context.Background())

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err := ctrl.ListAccounts(ctx)
	require.NoError(t, err)

	accounts, ok := payload["accounts"].([]*NearAccount)
	require.True(t, ok)
	require.Len(t, accounts, 1)
	require.Equal(t, "alice.near", accounts[0].AccountID)
}

func TestHTTPProfile(t *testing.T) {
	resolver := ProfileResolverFunc(func(ctx context.Context, accountID string, network Network) (map[string]any, error) {
		return map[string]any{"name": "Alice"}, nil
	})

	linker, _ := newStubLinker(LinkerConfig{}, WithProfileResolver(resolver))
	ctrl := newTestHTTPController(linker)

	userID := signInStubUser(t, linker, "alice.near")

	ctx := router.NewMockContext()
	sessionLocals(ctx, userID)
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Return(nil)

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err := ctrl.Profile(ctx)
	require.NoError(t, err)

	profile, ok := payload["profile"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Alice", profile["name"])
}
