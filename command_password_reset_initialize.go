package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "account.password_reset" }

type InitializePasswordResetResponse struct {
	Account    *Account
	ResetToken string
	ExpiresAt  time.Time
	Success    bool
}

// InitializePasswordResetHandler opens a reset window: it mints a reset
// token with a 10 hour expiry and stores both on the account, superseding
// any token from an earlier request. The response reveals whether the email
// was registered.
type InitializePasswordResetHandler struct {
	repo    RepositoryManager
	mailer  Mailer
	logger  Logger
	baseURL string
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:   repo,
		mailer: NoopMailer{},
		logger: defLogger{},
	}
}

// WithMailer sets the transport used for the reset email.
func (h *InitializePasswordResetHandler) WithMailer(m Mailer) *InitializePasswordResetHandler {
	h.mailer = normalizeMailer(m)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithBaseURL sets the public URL used to build the reset link.
func (h *InitializePasswordResetHandler) WithBaseURL(baseURL string) *InitializePasswordResetHandler {
	h.baseURL = baseURL
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		token, expiresAt, err := MintResetToken(time.Now())
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint reset token")
		}

		if err := h.repo.Accounts().SetResetTokenTx(ctx, tx, account.ID, token, expiresAt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset token")
		}

		resp.Account = account
		resp.ResetToken = token
		resp.ExpiresAt = expiresAt
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	subject, text, html := buildResetEmail(h.baseURL, resp.Account, resp.ResetToken)
	go deliverEmail(context.WithoutCancel(ctx), h.mailer, h.logger, resp.Account.Email, subject, text, html)

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
