package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes messages to the log instead of sending them. Used in
// development so confirmation and reset links can be copied from output.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", htmlBody),
	)
	return nil
}
