package accounts

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Text codes surfaced to HTTP clients alongside the mapped status code.
const (
	TextCodeUsernameTaken    = "USERNAME_TAKEN"
	TextCodeEmailTaken       = "EMAIL_TAKEN"
	TextCodeAccountNotFound  = "ACCOUNT_NOT_FOUND"
	TextCodeInvalidCreds     = "INVALID_CREDENTIALS"
	TextCodeInvalidToken     = "INVALID_TOKEN"
	TextCodeTokenExpired     = "TOKEN_EXPIRED"
	TextCodeUnauthenticated  = "UNAUTHENTICATED"
	TextCodeDuplicateRecord  = "DUPLICATE_RECORD"
	TextCodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// ErrUsernameTaken is returned by Register when the username is in use.
var ErrUsernameTaken = errors.New("username already exists", errors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken)

// ErrEmailTaken is returned by Register when the email is in use.
var ErrEmailTaken = errors.New("email is already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken)

// ErrDuplicateRecord covers unique constraint violations on a column the
// package does not recognize.
var ErrDuplicateRecord = errors.New("record already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateRecord)

// ErrAccountNotFound is returned when no account matches the identifier.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound)

// ErrIncorrectPassword is returned when credential comparison fails.
var ErrIncorrectPassword = errors.New("incorrect password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrInvalidVerificationToken covers unknown and already redeemed
// verification tokens; a consumed token is indistinguishable from one that
// never existed.
var ErrInvalidVerificationToken = errors.New("invalid verification token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken)

// ErrInvalidOrExpiredResetToken covers unknown, redeemed, superseded and
// expired password reset tokens.
var ErrInvalidOrExpiredResetToken = errors.New("password reset token is invalid or has expired", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken)

// ErrUnauthenticated is returned when a session token fails verification.
var ErrUnauthenticated = errors.New("unauthenticated", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated)

// ErrTokenExpired is the session token expiry error.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is the session token decode error.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken)

// ErrStoreUnavailable marks infrastructure faults so transport can choose
// 5xx over 4xx.
var ErrStoreUnavailable = errors.New("account store unavailable", errors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable)

// ErrMismatchedHashAndPassword is the low level bcrypt comparison failure.
var ErrMismatchedHashAndPassword = errors.New("hash and password mismatch", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrNoEmptyString rejects empty input where a value is required.
var ErrNoEmptyString = errors.New("value must not be an empty string", errors.CategoryBadInput)

// mapUniqueViolation translates driver level unique constraint failures into
// the domain conflict error for the column involved. We sniff the message
// because sqlite ("UNIQUE constraint failed: accounts.username") and postgres
// ("duplicate key value violates unique constraint ...") phrase it
// differently and neither surfaces a portable code through database/sql.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique constraint") && !strings.Contains(msg, "duplicate key") {
		return nil
	}

	if strings.Contains(msg, "username") {
		return ErrUsernameTaken
	}

	if strings.Contains(msg, "email") {
		return ErrEmailTaken
	}

	return ErrDuplicateRecord
}

// IsDomainError reports whether err carries one of the package's text codes,
// meaning it is safe to surface to a client as a 4xx.
func IsDomainError(err error) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}

	switch rich.TextCode {
	case TextCodeUsernameTaken, TextCodeEmailTaken, TextCodeAccountNotFound,
		TextCodeInvalidCreds, TextCodeInvalidToken, TextCodeTokenExpired,
		TextCodeUnauthenticated, TextCodeDuplicateRecord:
		return true
	}

	return false
}

// IsTokenExpiredError will check for expired session tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
