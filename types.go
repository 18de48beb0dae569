package accounts

import (
	"context"
	"fmt"
	"time"
)

// Logger is the minimal logging surface the package needs. Callers can plug
// in any structured logger that satisfies it.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated account identity.
type Identity interface {
	ID() string
	Username() string
	Email() string
	DisplayName() string
}

// Authenticator holds methods to deal with credential authentication and
// session token verification.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	ProfileFromToken(token string) (ProfileClaims, error)
}

// IdentityProvider ensures we have a store to retrieve and verify identities.
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, username, password string) (Identity, error)
	FindIdentityByUsername(ctx context.Context, username string) (Identity, error)
}

// TokenService mints and validates signed session tokens.
type TokenService interface {
	Generate(identity Identity) (string, error)
	SignClaims(claims *SessionClaims) (string, error)
	Validate(tokenString string) (ProfileClaims, error)
}

// PasswordAuthenticator is the credential transform contract: one-way salted
// hash at write time, hash-and-compare at read time.
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Mailer delivers fully rendered email content. Implementations own the
// transport; the core never fails an operation on a send error.
type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, to, subject, text, html string) error

func (f MailerFunc) Send(ctx context.Context, to, subject, text, html string) error {
	return f(ctx, to, subject, text, html)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetAuthScheme() string
}

// ResetTokenTTL is the lifetime of a password reset token, measured from
// issuance.
const ResetTokenTTL = 10 * time.Hour

// DefaultTokenExpiration is the session token lifetime in hours.
const DefaultTokenExpiration = 24

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
