package accounts

import (
	"net/http"
	"time"

	"github.com/goliatone/go-accounts/middleware/jwtware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// TokenServicer is implemented by authenticators that expose their token
// service, so HTTP middleware can validate bearer tokens directly.
type TokenServicer interface {
	TokenService() TokenService
}

// RouteAuthenticator glues the Authenticator to HTTP routes: bearer token
// extraction, session validation, and error translation.
type RouteAuthenticator struct {
	auth            Authenticator
	cfg             Config
	tokens          TokenService
	sessionDuration time.Duration
	Logger          Logger
	ErrorHandler    func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	sessionDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		sessionDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	var tokens TokenService
	if ts, ok := auther.(TokenServicer); ok {
		tokens = ts.TokenService()
	} else {
		tokens = NewTokenService(
			[]byte(cfg.GetSigningKey()),
			cfg.GetTokenExpiration(),
			cfg.GetIssuer(),
			cfg.GetAudience(),
			defLogger{},
		)
	}

	a := &RouteAuthenticator{
		cfg:             cfg,
		auth:            auther,
		tokens:          tokens,
		sessionDuration: sessionDuration,
		Logger:          defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

func (a RouteAuthenticator) GetSessionDuration() time.Duration {
	return a.sessionDuration
}

// ProtectedRoute guards a route with bearer token validation. Validated
// claims end up in the router locals under the configured context key.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler:   errorHandler,
		TokenValidator: claimsValidator{tokens: a.tokens},
		AuthScheme:     cfg.GetAuthScheme(),
		ContextKey:     cfg.GetContextKey(),
	})
}

// Login verifies credentials and returns the minted session token.
func (a *RouteAuthenticator) Login(ctx router.Context, username, password string) (string, error) {
	token, err := a.auth.Login(ctx.Context(), username, password)
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return "", err
	}
	return token, nil
}

// MakeClientRouteAuthErrorHandler builds the middleware error handler. With
// optional set, a failed validation lets the request through anonymously.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	return RespondWithError(c, err)
}

// claimsValidator bridges the TokenService into the middleware's validator
// contract. ProfileClaims satisfies the middleware claims interface, no
// conversion needed.
type claimsValidator struct {
	tokens TokenService
}

func (v claimsValidator) Validate(tokenString string) (jwtware.SessionClaims, error) {
	claims, err := v.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// GetRouterProfile retrieves the validated session claims that the JWT
// middleware stored in the router locals.
func GetRouterProfile(c router.Context, key string) (ProfileClaims, error) {
	val := c.Locals(key)
	if val == nil {
		return nil, ErrUnauthenticated
	}

	claims, ok := val.(ProfileClaims)
	if !ok {
		return nil, ErrUnauthenticated
	}

	return claims, nil
}

// StatusForError maps domain errors to HTTP statuses: conflicts on register
// are 400, unknown accounts 404, credential and token failures 401, anything
// untyped 500.
func StatusForError(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var rich *errors.Error
	if !errors.As(err, &rich) {
		return http.StatusInternalServerError
	}

	switch rich.TextCode {
	case TextCodeUsernameTaken, TextCodeEmailTaken, TextCodeDuplicateRecord:
		return http.StatusBadRequest
	case TextCodeAccountNotFound:
		return http.StatusNotFound
	case TextCodeInvalidCreds, TextCodeInvalidToken,
		TextCodeTokenExpired, TextCodeUnauthenticated:
		return http.StatusUnauthorized
	}

	switch rich.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	}

	return http.StatusInternalServerError
}

// RespondWithError writes the JSON error envelope. Untyped errors never leak
// their message to the client.
func RespondWithError(c router.Context, err error) error {
	status := StatusForError(err)

	message := "Internal Server Error"
	var rich *errors.Error
	if errors.As(err, &rich) && status < http.StatusInternalServerError {
		message = rich.Message
	}

	body := map[string]any{
		"success": false,
		"message": message,
	}

	if rich != nil && rich.TextCode != "" && status < http.StatusInternalServerError {
		body["code"] = rich.TextCode
	}

	return c.JSON(status, body)
}
