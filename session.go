package mailboxes

import "log/slog"

// Session receives progress notifications from long-running operations.
// Notifications are informational only.
type Session interface {
	Mark(msg string)
}

// LogSession reports progress through a slog.Logger.
type LogSession struct {
	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// Mark implements Session.
func (s LogSession) Mark(msg string) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(msg)
}
