package logging

import (
	"log/slog"
	"os"
)

// New returns the JSON logger every binary in this repo writes through.
// Settlement logs are the audit trail for money movement, so handlers and
// services attach ids (payment_id, session_id, owner_id) on every line.
func New() *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(h)
}
