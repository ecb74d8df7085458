package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that discards all output. Use it to
// keep test output quiet; assertions on log content should install their
// own handler instead.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
