package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Mailer is the dispatch port used for reminders and reschedule notices.
// Implementations report per-call success or failure; retry policy belongs
// to the caller.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer is used when SMTP is disabled: every message is written to the
// log instead of the wire, and the send always succeeds.
type LogMailer struct {
	Logger zerolog.Logger
}

func (m LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.Logger.Info().
		Str("to", to).
		Str("subject", subject).
		Msg("mail dispatch disabled, message dropped")
	return nil
}
