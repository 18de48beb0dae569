package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Token consumption is a single conditional UPDATE: the WHERE clause is the
// redemption check, so concurrent redeems of the same token succeed at most
// once regardless of interleaving.
var ConsumeVerificationTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"is_verified" = TRUE,
	"verification_token" = NULL,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"acc"."verification_token" = ?
RETURNING *;`

var ConsumeResetTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"reset_token" = NULL,
	"reset_token_expires_at" = NULL,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"acc"."reset_token" = ?
AND
	"acc"."reset_token_expires_at" > ?
RETURNING *;`

var SetResetTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"reset_token" = ?,
	"reset_token_expires_at" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"acc"."id" = ?
RETURNING *;`

// Accounts is the credential store contract. All lookups are exact match on
// indexed columns; writes ride the store's own uniqueness and conditional
// update guarantees rather than application side check-then-write.
type Accounts interface {
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*Account, error)
	GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*Account, error)
	GetByResetToken(ctx context.Context, token string, now time.Time) (*Account, error)
	GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*Account, error)

	Register(ctx context.Context, record *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)

	SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error
	ConsumeVerificationToken(ctx context.Context, token string) (*Account, error)
	ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*Account, error)
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*Account, error)
	ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, token, passwordHash string, now time.Time) (*Account, error)
}

type accountsRepo struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ Accounts = (*accountsRepo)(nil)

// NewAccountsRepository builds the bun backed store.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &accountsRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *accountsRepo) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *accountsRepo) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error) {
	return a.getByColumnTx(ctx, tx, "username", strings.TrimSpace(username))
}

func (a *accountsRepo) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accountsRepo) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.getByColumnTx(ctx, tx, "email", strings.TrimSpace(email))
}

func (a *accountsRepo) GetByVerificationToken(ctx context.Context, token string) (*Account, error) {
	return a.GetByVerificationTokenTx(ctx, a.db, token)
}

func (a *accountsRepo) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*Account, error) {
	return a.getByColumnTx(ctx, tx, "verification_token", token)
}

func (a *accountsRepo) GetByResetToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	return a.GetByResetTokenTx(ctx, a.db, token, now)
}

// GetByResetTokenTx matches a reset token only while its window is open;
// expired tokens behave as if they never existed.
func (a *accountsRepo) GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*Account, error) {
	record := &Account{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.reset_token = ?", token).
		Where("?TableAlias.reset_token_expires_at > ?", now).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"lookup": "reset_token"})
		}
		return nil, err
	}

	return record, nil
}

func (a *accountsRepo) Register(ctx context.Context, record *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, record)
}

// RegisterTx inserts the account, relying on the unique constraints on
// username and email to arbitrate concurrent registrations.
func (a *accountsRepo) RegisterTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	prepareAccountDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		if conflict := mapUniqueViolation(err); conflict != nil {
			return nil, conflict
		}
		return nil, err
	}

	return created, nil
}

func (a *accountsRepo) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	return a.SetResetTokenTx(ctx, a.db, id, token, expiresAt)
}

// SetResetTokenTx overwrites any previous reset token, superseding an open
// window: the stale token stops matching the moment this commits.
func (a *accountsRepo) SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error {
	res, err := a.Repository.RawTx(ctx, tx, SetResetTokenSQL, token, expiresAt, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *accountsRepo) ConsumeVerificationToken(ctx context.Context, token string) (*Account, error) {
	return a.ConsumeVerificationTokenTx(ctx, a.db, token)
}

func (a *accountsRepo) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*Account, error) {
	if token == "" {
		return nil, ErrInvalidVerificationToken
	}

	res, err := a.Repository.RawTx(ctx, tx, ConsumeVerificationTokenSQL, token)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to consume verification token")
	}

	if len(res) == 0 {
		return nil, ErrInvalidVerificationToken
	}

	return res[0], nil
}

func (a *accountsRepo) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*Account, error) {
	return a.ConsumeResetTokenTx(ctx, a.db, token, passwordHash, now)
}

func (a *accountsRepo) ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, token, passwordHash string, now time.Time) (*Account, error) {
	if token == "" {
		return nil, ErrInvalidOrExpiredResetToken
	}

	res, err := a.Repository.RawTx(ctx, tx, ConsumeResetTokenSQL, passwordHash, token, now)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to consume reset token")
	}

	if len(res) == 0 {
		return nil, ErrInvalidOrExpiredResetToken
	}

	return res[0], nil
}

func (a *accountsRepo) getByColumnTx(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	record := &Account{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"lookup": column})
		}
		return nil, err
	}

	return record, nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
