package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type VerifyAccountMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *VerifyAccountResponse)
}

func (e VerifyAccountMessage) Type() string { return "account.verify" }

type VerifyAccountResponse struct {
	Account *Account
	Success bool
}

// VerifyAccountHandler redeems a verification token. The redeem is a single
// conditional update that flips the verified flag and clears the token, so
// the token is single use by construction: once cleared, the same token
// fails like one that never existed.
type VerifyAccountHandler struct {
	repo   RepositoryManager
	logger Logger
}

// NewVerifyAccountHandler creates a handler with sane defaults.
func NewVerifyAccountHandler(repo RepositoryManager) *VerifyAccountHandler {
	return &VerifyAccountHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyAccountHandler) WithLogger(logger Logger) *VerifyAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyAccountHandler) Execute(ctx context.Context, event VerifyAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyAccountHandler) execute(ctx context.Context, event VerifyAccountMessage) error {
	resp := &VerifyAccountResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().ConsumeVerificationTokenTx(ctx, tx, event.Token)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem verification token")
		}

		resp.Account = account
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify account")
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
