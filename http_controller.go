package siwn

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// HTTPControllerRoutes holds the route paths the controller mounts.
type HTTPControllerRoutes struct {
	Nonce         string
	Verify        string
	LinkAccount   string
	UnlinkAccount string
	ListAccounts  string
	Profile       string
}

// HTTPController exposes the sign-in and linking flows as a JSON API.
type HTTPController struct {
	Debug             bool
	Logger            Logger
	Linker            *AccountLinker
	Tokens            TokenService
	Routes            *HTTPControllerRoutes
	CookieName        string
	CookieDuration    time.Duration
	SessionContextKey string
	ErrorHandler      func(router.Context, error) error
}

type HTTPControllerOption func(*HTTPController) *HTTPController

// WithHTTPLinker sets the account linker.
func WithHTTPLinker(linker *AccountLinker) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Linker = linker
		return c
	}
}

// WithHTTPTokens sets the session token service.
func WithHTTPTokens(tokens TokenService) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Tokens = tokens
		return c
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l Logger) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

// WithHTTPDebug toggles request payload debug printing.
func WithHTTPDebug(debug bool) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Debug = debug
		return c
	}
}

// WithHTTPCookie overrides the session cookie name and lifetime.
func WithHTTPCookie(name string, duration time.Duration) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if name != "" {
			c.CookieName = name
		}
		if duration > 0 {
			c.CookieDuration = duration
		}
		return c
	}
}

func NewHTTPController(opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Logger:            defLogger{},
		CookieName:        DefaultSessionCookieName,
		CookieDuration:    24 * time.Hour,
		SessionContextKey: DefaultSessionContextKey,
		Routes: &HTTPControllerRoutes{
			Nonce:         "/near/nonce",
			Verify:        "/near/verify",
			LinkAccount:   "/near/link-account",
			UnlinkAccount: "/near/unlink-account",
			ListAccounts:  "/near/list-accounts",
			Profile:       "/near/profile",
		},
	}

	c.ErrorHandler = c.handleError

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Linker == nil {
		panic("Missing AccountLinker in siwn controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in siwn controller...")
	}

	return c
}

// RegisterSIWNRoutes mounts the controller's routes. The linking, listing,
// and profile routes sit behind the session middleware; nonce and verify are
// public by design.
func RegisterSIWNRoutes[T any](app router.Router[T], opts ...HTTPControllerOption) *HTTPController {
	controller := NewHTTPController(opts...)

	protected := RequireSession(controller.Tokens, SessionMiddlewareConfig{
		ContextKey: controller.SessionContextKey,
		CookieName: controller.CookieName,
	})

	app.Post(controller.Routes.Nonce, controller.NonceCreate).
		SetName("siwn.nonce.post")

	app.Post(controller.Routes.Verify, controller.Verify).
		SetName("siwn.verify.post")

	app.Post(controller.Routes.LinkAccount, protected(controller.LinkAccount)).
		SetName("siwn.link.post")

	app.Post(controller.Routes.UnlinkAccount, protected(controller.UnlinkAccount)).
		SetName("siwn.unlink.post")

	app.Get(controller.Routes.ListAccounts, protected(controller.ListAccounts)).
		SetName("siwn.accounts.get")

	app.Post(controller.Routes.Profile, protected(controller.Profile)).
		SetName("siwn.profile.post")

	return controller
}

// NonceRequest asks for a fresh sign-in challenge. The public key is
// advisory; the binding key is the one recovered from the signature later.
type NonceRequest struct {
	AccountID string `json:"accountId" form:"accountId"`
	PublicKey string `json:"publicKey" form:"publicKey"`
	NetworkID string `json:"networkId" form:"networkId"`
}

// Validate will run validation rules
func (r NonceRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.AccountID,
			validation.Required,
			validation.Length(minAccountIDLen, maxAccountIDLen),
		),
		validation.Field(
			&r.NetworkID,
			validation.In(string(NetworkMainnet), string(NetworkTestnet)),
		),
	)
}

func (a *HTTPController) NonceCreate(ctx router.Context) error {
	payload := new(NonceRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, validationError(err))
	}

	a.debugPayload("NONCE", payload)

	nonce, network, err := a.Linker.IssueNonce(ctx.Context(), payload.AccountID, payload.NetworkID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"nonce":   nonce,
		"network": network,
	})
}

// VerifyRequest carries the wallet-signed auth token for a sign-in.
type VerifyRequest struct {
	AuthToken string `json:"authToken" form:"authToken"`
	AccountID string `json:"accountId" form:"accountId"`
	NetworkID string `json:"networkId" form:"networkId"`
	Email     string `json:"email" form:"email"`
}

// Validate will run validation rules
func (r VerifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.AuthToken,
			validation.Required,
		),
		validation.Field(
			&r.AccountID,
			validation.Required,
			validation.Length(minAccountIDLen, maxAccountIDLen),
		),
		validation.Field(
			&r.NetworkID,
			validation.In(string(NetworkMainnet), string(NetworkTestnet)),
		),
	)
}

func (a *HTTPController) Verify(ctx router.Context) error {
	payload := new(VerifyRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, validationError(err))
	}

	result, err := a.Linker.SignIn(ctx.Context(), SignInInput{
		AuthToken: payload.AuthToken,
		AccountID: payload.AccountID,
		NetworkID: payload.NetworkID,
		Email:     payload.Email,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.debugPayload("VERIFY", result)

	a.setSessionCookie(ctx, result.Token)

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"token":   result.Token,
		"user": map[string]any{
			"id":        result.User.ID,
			"email":     result.User.Email,
			"name":      result.User.Name,
			"accountId": result.Account.AccountID,
			"network":   result.Account.Network,
		},
		"is_new_user": result.IsNewUser,
	})
}

// LinkAccountRequest attaches another account to the signed-in user.
type LinkAccountRequest struct {
	AuthToken string `json:"authToken" form:"authToken"`
	AccountID string `json:"accountId" form:"accountId"`
	NetworkID string `json:"networkId" form:"networkId"`
}

// Validate will run validation rules
func (r LinkAccountRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.AuthToken,
			validation.Required,
		),
		validation.Field(
			&r.AccountID,
			validation.Required,
			validation.Length(minAccountIDLen, maxAccountIDLen),
		),
		validation.Field(
			&r.NetworkID,
			validation.In(string(NetworkMainnet), string(NetworkTestnet)),
		),
	)
}

func (a *HTTPController) LinkAccount(ctx router.Context) error {
	userID, err := a.sessionUserID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(LinkAccountRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, validationError(err))
	}

	account, err := a.Linker.Link(ctx.Context(), userID, payload.AuthToken, payload.AccountID, payload.NetworkID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success":   true,
		"accountId": account.AccountID,
		"network":   account.Network,
		"message":   "NEAR account linked",
		"account":   account,
	})
}

// UnlinkAccountRequest detaches an account from the signed-in user.
type UnlinkAccountRequest struct {
	AccountID string `json:"accountId" form:"accountId"`
	NetworkID string `json:"networkId" form:"networkId"`
}

// Validate will run validation rules
func (r UnlinkAccountRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.AccountID,
			validation.Required,
			validation.Length(minAccountIDLen, maxAccountIDLen),
		),
		validation.Field(
			&r.NetworkID,
			validation.In(string(NetworkMainnet), string(NetworkTestnet)),
		),
	)
}

func (a *HTTPController) UnlinkAccount(ctx router.Context) error {
	userID, err := a.sessionUserID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(UnlinkAccountRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, validationError(err))
	}

	if err := a.Linker.Unlink(ctx.Context(), userID, payload.AccountID, payload.NetworkID); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success":   true,
		"accountId": payload.AccountID,
		"network":   NetworkForAccount(payload.AccountID),
		"message":   "NEAR account unlinked",
	})
}

func (a *HTTPController) ListAccounts(ctx router.Context) error {
	userID, err := a.sessionUserID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	accounts, err := a.Linker.ListAccounts(ctx.Context(), userID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"accounts": accounts,
	})
}

// ProfileRequest targets a profile lookup. Empty accountId means the
// session user's primary account.
type ProfileRequest struct {
	AccountID string `json:"accountId" form:"accountId"`
	NetworkID string `json:"networkId" form:"networkId"`
}

// Validate will run validation rules
func (r ProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.AccountID,
			validation.Length(minAccountIDLen, maxAccountIDLen),
		),
		validation.Field(
			&r.NetworkID,
			validation.In(string(NetworkMainnet), string(NetworkTestnet)),
		),
	)
}

func (a *HTTPController) Profile(ctx router.Context) error {
	userID, err := a.sessionUserID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ProfileRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, validationError(err))
	}

	profile, err := a.Linker.ResolveProfile(ctx.Context(), userID, payload.AccountID, payload.NetworkID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"profile": profile,
	})
}

// sessionUserID pulls the authenticated user id out of the middleware claims.
func (a *HTTPController) sessionUserID(ctx router.Context) (uuid.UUID, error) {
	claims, ok := GetRouterClaims(ctx, a.SessionContextKey)
	if !ok {
		return uuid.Nil, ErrSessionRequired
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return uuid.Nil, ErrSessionRequired
	}

	return userID, nil
}

func (a *HTTPController) setSessionCookie(ctx router.Context, token string) {
	ctx.Cookie(&router.Cookie{
		Name:     a.CookieName,
		Value:    token,
		Expires:  time.Now().Add(a.CookieDuration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *HTTPController) debugPayload(label string, payload any) {
	if !a.Debug {
		return
	}
	fmt.Printf("======= SIWN %s ======\n", label)
	fmt.Println(print.MaybePrettyJSON(payload))
	fmt.Println("=========================")
}

func (a *HTTPController) handleError(ctx router.Context, err error) error {
	richErr := asRichError(err)

	a.Logger.Error("request error: %s (%s)", richErr.Message, richErr.TextCode)

	return writeRichError(ctx, richErr)
}

// APIError is the JSON error body.
type APIError struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteJSONError renders err as the standard JSON error envelope with the
// matching HTTP status.
func WriteJSONError(ctx router.Context, err error) error {
	return writeRichError(ctx, asRichError(err))
}

func writeRichError(ctx router.Context, richErr *goerrors.Error) error {
	status := richErr.Code
	if status == 0 {
		status = fiber.StatusInternalServerError
	}

	body := APIError{
		Message: richErr.Message,
		Code:    richErr.TextCode,
	}
	if fields, ok := richErr.Metadata["fields"].(map[string]string); ok {
		body.Fields = fields
	}

	return ctx.JSON(status, map[string]any{
		"success": false,
		"error":   body,
	})
}

func asRichError(err error) *goerrors.Error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}
	return richErr
}

func bindError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
		WithTextCode("BAD_REQUEST_BODY").
		WithCode(goerrors.CodeBadRequest)
}

func validationError(err error) error {
	richErr := goerrors.Wrap(err, goerrors.CategoryValidation, "validation failed").
		WithTextCode("VALIDATION_ERROR").
		WithCode(goerrors.CodeBadRequest)

	if fields := formatValidationErrors(err); len(fields) > 0 {
		richErr = richErr.WithMetadata(map[string]any{"fields": fields})
	}

	return richErr
}

// formatValidationErrors flattens ozzo validation errors to field messages.
func formatValidationErrors(err error) map[string]string {
	verrs, ok := err.(validation.Errors)
	if !ok {
		return nil
	}

	out := make(map[string]string, len(verrs))
	for field, ferr := range verrs {
		if ferr != nil {
			out[field] = ferr.Error()
		}
	}
	return out
}
