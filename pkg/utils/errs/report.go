package errs

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Report logs err at warn level with its goerr values and forwards it to Sentry when a client is configured
func Report(ctx context.Context, msg string, err error, attrs ...any) {
	if err == nil {
		return
	}

	logger := ctxlog.From(ctx)
	args := append([]any{slog.Any("error", err)}, attrs...)
	if gErr := goerr.Unwrap(err); gErr != nil {
		for k, v := range gErr.Values() {
			args = append(args, slog.Any(k, v))
		}
	}
	logger.Warn(msg, args...)

	hub := sentry.CurrentHub()
	if hub == nil || hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("report", msg)
		if gErr := goerr.Unwrap(err); gErr != nil {
			scope.SetContext("goerr", sentry.Context(gErr.Values()))
		}
		evID := hub.CaptureException(err)
		if evID != nil {
			logger.Debug("Sent error to Sentry", "event_id", *evID)
		}
	})
}
