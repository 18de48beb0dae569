package accounts

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// AccountLookup is the narrow store surface the provider needs.
type AccountLookup interface {
	GetByUsername(ctx context.Context, username string) (*Account, error)
}

// AccountProvider resolves identities against the credential store.
type AccountProvider struct {
	store  AccountLookup
	logger Logger
}

// NewAccountProvider will create a new AccountProvider
func NewAccountProvider(store AccountLookup) *AccountProvider {
	return &AccountProvider{
		store:  store,
		logger: defLogger{},
	}
}

func (p *AccountProvider) WithLogger(l Logger) *AccountProvider {
	if l != nil {
		p.logger = l
	}
	return p
}

// VerifyIdentity will find the account, compare the password, and return
// the identity. Login is intentionally not gated on the verified flag; an
// unverified account can authenticate. Product may want to revisit that.
func (p *AccountProvider) VerifyIdentity(ctx context.Context, username, password string) (Identity, error) {
	account, err := p.store.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, ErrIncorrectPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to compare password hash")
	}

	return identityFromAccount(account), nil
}

// FindIdentityByUsername resolves an identity without checking credentials.
func (p *AccountProvider) FindIdentityByUsername(ctx context.Context, username string) (Identity, error) {
	account, err := p.store.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account")
	}

	return identityFromAccount(account), nil
}

type accountIdentity struct {
	id          string
	username    string
	email       string
	displayName string
}

func identityFromAccount(a *Account) Identity {
	return accountIdentity{
		id:          a.ID.String(),
		username:    a.Username,
		email:       a.Email,
		displayName: a.DisplayName,
	}
}

func (i accountIdentity) ID() string          { return i.id }
func (i accountIdentity) Username() string    { return i.username }
func (i accountIdentity) Email() string       { return i.email }
func (i accountIdentity) DisplayName() string { return i.displayName }
