package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "account.password_reset_finalize" }

// FinalizePasswordResetHandler redeems a reset token and replaces the
// account password. The redeem is one conditional update matching token and
// open expiry window, so a token can be spent at most once and a superseded
// or expired token fails identically to an unknown one.
type FinalizePasswordResetHandler struct {
	repo   RepositoryManager
	mailer Mailer
	logger Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:   repo,
		mailer: NoopMailer{},
		logger: defLogger{},
	}
}

// WithMailer sets the transport used for the confirmation email.
func (h *FinalizePasswordResetHandler) WithMailer(m Mailer) *FinalizePasswordResetHandler {
	h.mailer = normalizeMailer(m)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	var account *Account

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		account, err = h.repo.Accounts().ConsumeResetTokenTx(ctx, tx, event.Token, passwordHash, time.Now())
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem reset token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	subject, text, html := buildResetConfirmationEmail(account)
	go deliverEmail(context.WithoutCancel(ctx), h.mailer, h.logger, account.Email, subject, text, html)

	return nil
}
