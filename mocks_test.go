package accounts_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// testConfig implements accounts.Config
type testConfig struct {
	signingKey      string
	tokenExpiration int
	issuer          string
	audience        []string
	contextKey      string
	authScheme      string
}

func newTestConfig() testConfig {
	return testConfig{
		signingKey:      "test-signing-key",
		tokenExpiration: 24,
		issuer:          "accounts-test",
		contextKey:      "user",
		authScheme:      "Bearer",
	}
}

func (c testConfig) GetSigningKey() string   { return c.signingKey }
func (c testConfig) GetTokenExpiration() int { return c.tokenExpiration }
func (c testConfig) GetIssuer() string       { return c.issuer }
func (c testConfig) GetAudience() []string   { return c.audience }
func (c testConfig) GetContextKey() string   { return c.contextKey }
func (c testConfig) GetAuthScheme() string   { return c.authScheme }

// MockRepositoryManager implements accounts.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

// RunInTx runs the callback with a zero value transaction and propagates its
// error, mirroring what the real manager does on commit failure. A non-nil
// mocked return short circuits without running the callback.
func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(context.Context, bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if err := args.Error(0); err != nil {
		return err
	}
	var tx bun.Tx
	return f(ctx, tx)
}

func (m *MockRepositoryManager) Accounts() accounts.Accounts {
	args := m.Called()
	return args.Get(0).(accounts.Accounts)
}

// MockAccounts implements accounts.Accounts
type MockAccounts struct {
	mock.Mock
}

func accountResult(args mock.Arguments) (*accounts.Account, error) {
	var record *accounts.Account
	if v := args.Get(0); v != nil {
		record = v.(*accounts.Account)
	}
	return record, args.Error(1)
}

func (m *MockAccounts) GetByUsername(ctx context.Context, username string) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, username))
}

func (m *MockAccounts) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, tx, username))
}

func (m *MockAccounts) GetByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, email))
}

func (m *MockAccounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, tx, email))
}

func (m *MockAccounts) GetByVerificationToken(ctx context.Context, token string) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, token))
}

func (m *MockAccounts) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, tx, token))
}

func (m *MockAccounts) GetByResetToken(ctx context.Context, token string, now time.Time) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, token, now))
}

func (m *MockAccounts) GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, tx, token, now))
}

func (m *MockAccounts) Register(ctx context.Context, record *accounts.Account) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, record))
}

func (m *MockAccounts) RegisterTx(ctx context.Context, tx bun.IDB, record *accounts.Account) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, tx, record))
}

func (m *MockAccounts) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	args := m.Called(ctx, id, token, expiresAt)
	return args.Error(0)
}

func (m *MockAccounts) SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error {
	args := m.Called(ctx, tx, id, token, expiresAt)
	return args.Error(0)
}

func (m *MockAccounts) ConsumeVerificationToken(ctx context.Context, token string) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, token))
}

func (m *MockAccounts) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, tx, token))
}

func (m *MockAccounts) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, token, passwordHash, now))
}

func (m *MockAccounts) ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, token, passwordHash string, now time.Time) (*accounts.Account, error) {
	return accountResult(m.Called(ctx, tx, token, passwordHash, now))
}

// MockIdentityProvider implements accounts.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func identityResult(args mock.Arguments) (accounts.Identity, error) {
	var identity accounts.Identity
	if v := args.Get(0); v != nil {
		identity = v.(accounts.Identity)
	}
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, username, password string) (accounts.Identity, error) {
	return identityResult(m.Called(ctx, username, password))
}

func (m *MockIdentityProvider) FindIdentityByUsername(ctx context.Context, username string) (accounts.Identity, error) {
	return identityResult(m.Called(ctx, username))
}

// stubIdentity implements accounts.Identity
type stubIdentity struct {
	id          string
	username    string
	email       string
	displayName string
}

func (s stubIdentity) ID() string          { return s.id }
func (s stubIdentity) Username() string    { return s.username }
func (s stubIdentity) Email() string       { return s.email }
func (s stubIdentity) DisplayName() string { return s.displayName }

// capturedMail is one delivery observed by the capture mailer.
type capturedMail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// captureMailer pushes every send on a channel so tests can wait for the
// asynchronous delivery goroutine without sleeping.
type captureMailer struct {
	sent chan capturedMail
	err  error
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{sent: make(chan capturedMail, 8)}
}

func (m *captureMailer) Send(ctx context.Context, to, subject, text, html string) error {
	m.sent <- capturedMail{To: to, Subject: subject, Text: text, HTML: html}
	return m.err
}

func (m *captureMailer) waitForMail(timeout time.Duration) (capturedMail, bool) {
	select {
	case mail := <-m.sent:
		return mail, true
	case <-time.After(timeout):
		return capturedMail{}, false
	}
}

// expectRunInTx arms the transactional passthrough on the mocked manager.
func expectRunInTx(repo *MockRepositoryManager) *mock.Call {
	return repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).
		Return(nil)
}
