package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogEmailSender drops email, logging the recipient and subject. It stands in
// when no SMTP relay is configured.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s LogEmailSender) SendEmail(_ context.Context, to, subject, _ string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Msg("email delivery disabled, message dropped")
	return nil
}
