package accounts

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// mailRetryAttempts is how many times a failed send is retried before the
// failure is logged and dropped.
const mailRetryAttempts = 3

// mailRetryBase is the initial backoff between delivery attempts.
const mailRetryBase = 500 * time.Millisecond

// NoopMailer drops every message. Useful in tests and as a default so the
// handlers never have to nil-check their mailer.
type NoopMailer struct{}

func (NoopMailer) Send(ctx context.Context, to, subject, text, html string) error {
	return nil
}

// LogMailer writes the envelope to the logger instead of delivering it.
// Stands in for a real transport during development.
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) Send(ctx context.Context, to, subject, text, html string) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("sending email", "to", to, "subject", subject, "text", text)
	return nil
}

// deliverEmail pushes a message through the mailer with exponential backoff.
// Delivery is fire and forget relative to the lifecycle operation: failures
// are logged and swallowed, never propagated. Callers run it in a goroutine.
func deliverEmail(ctx context.Context, mailer Mailer, logger Logger, to, subject, text, html string) {
	if mailer == nil {
		return
	}
	if logger == nil {
		logger = defLogger{}
	}

	backoff := retry.WithMaxRetries(mailRetryAttempts, retry.NewExponential(mailRetryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := mailer.Send(ctx, to, subject, text, html); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})

	if err != nil {
		logger.Error("email delivery failed", "to", to, "subject", subject, "error", err)
	}
}

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return NoopMailer{}
	}
	return m
}
