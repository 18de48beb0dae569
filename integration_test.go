package accounts_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var testDBSeq atomic.Int64

// newTestDB opens a private in memory database per test. A single pooled
// connection keeps the shared cache alive for the duration of the test.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:accounts_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	_, err = db.NewCreateTable().
		Model((*accounts.Account)(nil)).
		Exec(context.Background())
	require.NoError(t, err)

	return db
}

func seedAccount(t *testing.T, store accounts.Accounts, username, email, password string) *accounts.Account {
	t.Helper()

	hash, err := accounts.HashPassword(password)
	require.NoError(t, err)

	created, err := store.Register(context.Background(), &accounts.Account{
		Username:     username,
		Email:        email,
		DisplayName:  username,
		PasswordHash: hash,
	})
	require.NoError(t, err)

	return created
}

func TestStoreRegisterEnforcesUniqueness(t *testing.T) {
	store := accounts.NewAccountsRepository(newTestDB(t))
	ctx := context.Background()

	seedAccount(t, store, "ada", "ada@example.com", "secret123")

	hash, err := accounts.HashPassword("secret123")
	require.NoError(t, err)

	_, err = store.Register(ctx, &accounts.Account{
		Username:     "ada",
		Email:        "other@example.com",
		DisplayName:  "ada",
		PasswordHash: hash,
	})
	require.ErrorIs(t, err, accounts.ErrUsernameTaken)

	_, err = store.Register(ctx, &accounts.Account{
		Username:     "grace",
		Email:        "ada@example.com",
		DisplayName:  "grace",
		PasswordHash: hash,
	})
	require.ErrorIs(t, err, accounts.ErrEmailTaken)
}

func TestStoreRegisterConcurrentSameUsername(t *testing.T) {
	store := accounts.NewAccountsRepository(newTestDB(t))
	ctx := context.Background()

	hash, err := accounts.HashPassword("secret123")
	require.NoError(t, err)

	const racers = 4
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Register(ctx, &accounts.Account{
				Username:     "ada",
				Email:        fmt.Sprintf("ada+%d@example.com", i),
				DisplayName:  "ada",
				PasswordHash: hash,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, accounts.ErrUsernameTaken)
	}
	assert.Equal(t, 1, winners, "exactly one registration should claim the username")
}

func TestStoreVerificationTokenSingleUse(t *testing.T) {
	store := accounts.NewAccountsRepository(newTestDB(t))
	ctx := context.Background()

	hash, err := accounts.HashPassword("secret123")
	require.NoError(t, err)

	token, err := accounts.MintOpaqueToken()
	require.NoError(t, err)

	_, err = store.Register(ctx, &accounts.Account{
		Username:          "ada",
		Email:             "ada@example.com",
		DisplayName:       "ada",
		PasswordHash:      hash,
		VerificationToken: &token,
	})
	require.NoError(t, err)

	verified, err := store.ConsumeVerificationToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Nil(t, verified.VerificationToken)

	persisted, err := store.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.True(t, persisted.Verified)
	assert.Nil(t, persisted.VerificationToken)

	_, err = store.ConsumeVerificationToken(ctx, token)
	require.ErrorIs(t, err, accounts.ErrInvalidVerificationToken)
}

func TestStoreResetTokenExpiredWindow(t *testing.T) {
	store := accounts.NewAccountsRepository(newTestDB(t))
	ctx := context.Background()

	record := seedAccount(t, store, "ada", "ada@example.com", "secret123")

	now := time.Now().UTC()
	require.NoError(t, store.SetResetToken(ctx, record.ID, "stale-token", now.Add(-time.Minute)))

	_, err := store.ConsumeResetToken(ctx, "stale-token", "newhash", now)
	require.ErrorIs(t, err, accounts.ErrInvalidOrExpiredResetToken)

	_, err = store.GetByResetToken(ctx, "stale-token", now)
	require.True(t, repository.IsRecordNotFound(err))

	persisted, err := store.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, record.PasswordHash, persisted.PasswordHash, "expired redeem must not touch the password")
}

func TestStoreResetTokenSuperseded(t *testing.T) {
	store := accounts.NewAccountsRepository(newTestDB(t))
	ctx := context.Background()

	record := seedAccount(t, store, "ada", "ada@example.com", "secret123")

	now := time.Now().UTC()
	require.NoError(t, store.SetResetToken(ctx, record.ID, "first-token", now.Add(time.Hour)))
	require.NoError(t, store.SetResetToken(ctx, record.ID, "second-token", now.Add(time.Hour)))

	_, err := store.ConsumeResetToken(ctx, "first-token", "newhash", now)
	require.ErrorIs(t, err, accounts.ErrInvalidOrExpiredResetToken, "superseded token must stop matching")

	redeemed, err := store.ConsumeResetToken(ctx, "second-token", "newhash", now)
	require.NoError(t, err)
	assert.Equal(t, "newhash", redeemed.PasswordHash)
	assert.Nil(t, redeemed.ResetToken)
	assert.Nil(t, redeemed.ResetTokenExpiresAt)

	_, err = store.ConsumeResetToken(ctx, "second-token", "anotherhash", now)
	require.ErrorIs(t, err, accounts.ErrInvalidOrExpiredResetToken, "a reset token is single use")
}

func TestStoreSetResetTokenUnknownAccount(t *testing.T) {
	store := accounts.NewAccountsRepository(newTestDB(t))

	err := store.SetResetToken(context.Background(), uuid.New(), "token", time.Now().UTC().Add(time.Hour))
	require.True(t, repository.IsRecordNotFound(err))
}

// The full lifecycle against a real store: register, verify, authenticate,
// reset, and authenticate again with the new password.
func TestAccountLifecycleAgainstStore(t *testing.T) {
	repo := accounts.NewRepositoryManager(newTestDB(t))
	require.NoError(t, repo.Validate())

	ctx := context.Background()
	mailer := newCaptureMailer()

	var registered *accounts.RegisterAccountResponse
	register := accounts.NewRegisterAccountHandler(repo).
		WithMailer(mailer).
		WithLogger(testLogger{}).
		WithBaseURL("https://accounts.example.com")

	err := register.Execute(ctx, accounts.RegisterAccountMessage{
		Username:    "ada",
		Email:       "ada@example.com",
		DisplayName: "Ada Lovelace",
		Password:    "original password",
		OnResponse: func(resp *accounts.RegisterAccountResponse) {
			registered = resp
		},
	})
	require.NoError(t, err)
	require.NotNil(t, registered)
	require.NotEmpty(t, registered.VerificationToken)
	assert.False(t, registered.Account.Verified)

	mail, ok := mailer.waitForMail(time.Second)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", mail.To)

	var verifyResp *accounts.VerifyAccountResponse
	verify := accounts.NewVerifyAccountHandler(repo).WithLogger(testLogger{})
	err = verify.Execute(ctx, accounts.VerifyAccountMessage{
		Token: registered.VerificationToken,
		OnResponse: func(resp *accounts.VerifyAccountResponse) {
			verifyResp = resp
		},
	})
	require.NoError(t, err)
	require.NotNil(t, verifyResp)
	assert.True(t, verifyResp.Account.Verified)

	err = verify.Execute(ctx, accounts.VerifyAccountMessage{Token: registered.VerificationToken})
	require.ErrorIs(t, err, accounts.ErrInvalidVerificationToken, "verification links are single use")

	provider := accounts.NewAccountProvider(repo.Accounts()).WithLogger(testLogger{})
	identity, err := provider.VerifyIdentity(ctx, "ada", "original password")
	require.NoError(t, err)
	assert.Equal(t, "ada", identity.Username())

	var reset *accounts.InitializePasswordResetResponse
	initReset := accounts.NewInitializePasswordResetHandler(repo).
		WithMailer(mailer).
		WithLogger(testLogger{}).
		WithBaseURL("https://accounts.example.com")

	err = initReset.Execute(ctx, accounts.InitializePasswordResetMessage{
		Email: "ada@example.com",
		OnResponse: func(resp *accounts.InitializePasswordResetResponse) {
			reset = resp
		},
	})
	require.NoError(t, err)
	require.NotNil(t, reset)
	require.NotEmpty(t, reset.ResetToken)

	finalize := accounts.NewFinalizePasswordResetHandler(repo).
		WithMailer(mailer).
		WithLogger(testLogger{})

	err = finalize.Execute(ctx, accounts.FinalizePasswordResetMessage{
		Token:    reset.ResetToken,
		Password: "replacement password",
	})
	require.NoError(t, err)

	_, err = provider.VerifyIdentity(ctx, "ada", "original password")
	require.ErrorIs(t, err, accounts.ErrIncorrectPassword)

	identity, err = provider.VerifyIdentity(ctx, "ada", "replacement password")
	require.NoError(t, err)
	assert.Equal(t, "ada", identity.Username())

	err = finalize.Execute(ctx, accounts.FinalizePasswordResetMessage{
		Token:    reset.ResetToken,
		Password: "yet another password",
	})
	require.ErrorIs(t, err, accounts.ErrInvalidOrExpiredResetToken, "a redeemed reset token never works twice")
}
