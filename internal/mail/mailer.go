// AngelaMos | 2026
// mailer.go

package mail

import (
	"context"
	"log/slog"
)

type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes outgoing mail to the structured log instead of a relay.
// Bodies are only logged at debug level since they carry one-time tokens.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email sent",
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
	)
	s.logger.DebugContext(ctx, "email body",
		"to", msg.To,
		"body", msg.Body,
	)
	return nil
}
