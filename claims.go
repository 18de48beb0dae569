package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ProfileClaims is the decoded identity a session token carries. Profile
// reads are served from the token itself, no store lookup involved.
type ProfileClaims interface {
	Subject() string
	AccountID() string
	Username() string
	Email() string
	DisplayName() string
	Expires() time.Time
	IssuedAt() time.Time
}

// SessionClaims is the concrete JWT claim set for account sessions.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID   string `json:"uid,omitempty"`
	Uname string `json:"username,omitempty"`
	Mail  string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Verify interface compliance
var _ ProfileClaims = (*SessionClaims)(nil)

// Subject returns the subject claim
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountID returns the account ID, falling back to the subject claim.
func (c *SessionClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Username returns the username claim
func (c *SessionClaims) Username() string {
	return c.Uname
}

// Email returns the email claim
func (c *SessionClaims) Email() string {
	return c.Mail
}

// DisplayName returns the display name claim
func (c *SessionClaims) DisplayName() string {
	return c.Name
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
