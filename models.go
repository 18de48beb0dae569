package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountState is the verification state of an account
type AccountState = string

const (
	// AccountStateUnverified is the state between registration and email verification
	AccountStateUnverified AccountState = "unverified"
	// AccountStateVerified is the terminal verification state
	AccountStateVerified AccountState = "verified"
)

// Account is the identity record. Username and email carry unique
// constraints so concurrent registrations race at the store, not in
// application code.
type Account struct {
	bun.BaseModel       `bun:"table:accounts,alias:acc"`
	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username            string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email               string     `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName         string     `bun:"display_name,notnull" json:"display_name,omitempty"`
	PasswordHash        string     `bun:"password_hash,notnull" json:"-"`
	Verified            bool       `bun:"is_verified" json:"is_verified"`
	VerificationToken   *string    `bun:"verification_token,nullzero" json:"-"`
	ResetToken          *string    `bun:"reset_token,nullzero" json:"-"`
	ResetTokenExpiresAt *time.Time `bun:"reset_token_expires_at,nullzero" json:"-"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// State derives the lifecycle state from the verified flag. The transition
// is one way: Verify clears the token and flips the flag in a single
// conditional update.
func (a *Account) State() AccountState {
	if a.Verified {
		return AccountStateVerified
	}
	return AccountStateUnverified
}

// HasOpenReset reports whether a reset window is open at the given instant.
// Token and expiry travel together: both set during a window, both cleared
// when the reset completes or is superseded.
func (a *Account) HasOpenReset(now time.Time) bool {
	if a.ResetToken == nil || a.ResetTokenExpiresAt == nil {
		return false
	}
	return a.ResetTokenExpiresAt.After(now)
}

// CanTransition validates a verification state change. Only unverified to
// verified is legal; accounts never regress.
func CanTransition(from, to AccountState) bool {
	return from == AccountStateUnverified && to == AccountStateVerified
}
