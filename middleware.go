package siwn

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	// DefaultSessionCookieName is the cookie carrying the session token.
	DefaultSessionCookieName = "siwn_session"
	// DefaultSessionContextKey is the Locals key claims are stored under.
	DefaultSessionContextKey = "user"

	bearerScheme        = "Bearer"
	authorizationHeader = "Authorization"
)

// SessionMiddlewareConfig configures RequireSession.
type SessionMiddlewareConfig struct {
	ContextKey   string
	CookieName   string
	ErrorHandler func(router.Context, error) error
}

// RequireSession guards routes behind a valid session token, read from the
// session cookie or a bearer Authorization header. Validated claims land in
// Locals under ContextKey and in the request context.
func RequireSession(tokens TokenService, config ...SessionMiddlewareConfig) router.MiddlewareFunc {
	cfg := SessionMiddlewareConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultSessionContextKey
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookieName
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultSessionErrorHandler
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			raw := extractSessionToken(ctx, cfg.CookieName)
			if raw == "" {
				return cfg.ErrorHandler(ctx, ErrSessionRequired)
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryAuth, "invalid session token").
					WithTextCode(TextCodeSessionRequired).
					WithCode(errors.CodeUnauthorized))
			}

			ctx.Locals(cfg.ContextKey, claims)
			ctx.SetContext(WithClaimsContext(ctx.Context(), claims))

			return hf(ctx)
		}
	}
}

func extractSessionToken(ctx router.Context, cookieName string) string {
	if token := ctx.Cookies(cookieName); token != "" {
		return token
	}

	header := ctx.GetString(authorizationHeader, "")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], bearerScheme) {
		return strings.TrimSpace(parts[1])
	}

	return ""
}

func defaultSessionErrorHandler(ctx router.Context, err error) error {
	return WriteJSONError(ctx, err)
}
