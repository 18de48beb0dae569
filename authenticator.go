package accounts

import (
	"context"
	"reflect"

	"github.com/goliatone/go-errors"
)

// Auther implements Authenticator on top of an IdentityProvider and a
// TokenService. The signing key is process wide configuration, loaded once
// and passed in explicitly; nothing here reads ambient state.
type Auther struct {
	provider        IdentityProvider
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        []string
	logger          Logger
	tokenService    TokenService
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:        provider,
		signingKey:      []byte(opts.GetSigningKey()),
		tokenExpiration: opts.GetTokenExpiration(),
		audience:        opts.GetAudience(),
		issuer:          opts.GetIssuer(),
		logger:          defLogger{},
		tokenService:    tokenService,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenExpiration,
		s.issuer,
		s.audience,
		logger,
	)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials and mints a session token. The error is
// ErrAccountNotFound or ErrIncorrectPassword for domain failures; anything
// else is infrastructure.
func (s *Auther) Login(ctx context.Context, username, password string) (string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, username, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return "", ErrAccountNotFound
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Login failed to generate session token", "error", err)
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate session token")
	}

	return token, nil
}

// ProfileFromToken verifies the raw session token and returns its claims.
// Every verification failure collapses into ErrUnauthenticated; the caller
// learns nothing about why a token was rejected.
func (s *Auther) ProfileFromToken(raw string) (ProfileClaims, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		s.logger.Error("ProfileFromToken validation failed", "error", err)
		return nil, ErrUnauthenticated
	}

	return claims, nil
}

// SessionDuration exposes the configured token lifetime.
func (s *Auther) SessionDuration() int {
	return s.tokenExpiration
}

var _ Authenticator = (*Auther)(nil)
