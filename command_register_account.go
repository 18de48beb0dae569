package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	UseHashid   bool
	OnResponse  func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountResponse struct {
	Account           *Account
	VerificationToken string
	Success           bool
}

// RegisterAccountHandler creates the account in the unverified state, mints
// its verification token, and queues the verification email. Registration
// never logs the user in.
type RegisterAccountHandler struct {
	repo    RepositoryManager
	mailer  Mailer
	logger  Logger
	baseURL string
}

// NewRegisterAccountHandler creates a handler with sane defaults.
func NewRegisterAccountHandler(repo RepositoryManager) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:   repo,
		mailer: NoopMailer{},
		logger: defLogger{},
	}
}

// WithMailer sets the transport used for the verification email.
func (h *RegisterAccountHandler) WithMailer(m Mailer) *RegisterAccountHandler {
	h.mailer = normalizeMailer(m)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithBaseURL sets the public URL used to build the verification link.
func (h *RegisterAccountHandler) WithBaseURL(baseURL string) *RegisterAccountHandler {
	h.baseURL = baseURL
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	account := &Account{}
	resp := &RegisterAccountResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		token, err := MintOpaqueToken()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint verification token")
		}

		account.PasswordHash = hash
		account.Email = event.Email
		account.DisplayName = event.DisplayName
		account.Username = resolveUsername(event.Username, event.Email)
		account.Verified = false
		account.VerificationToken = &token
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				account.ID = id
			}
		}

		if account, err = h.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		resp.Account = account
		resp.VerificationToken = token
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	subject, text, html := buildVerificationEmail(h.baseURL, resp.Account, resp.VerificationToken)
	go deliverEmail(context.WithoutCancel(ctx), h.mailer, h.logger, resp.Account.Email, subject, text, html)

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func resolveUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
