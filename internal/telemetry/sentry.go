// Package telemetry reports background failures to Sentry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/oggyb/matchbot/internal/config"
	"github.com/oggyb/matchbot/internal/logger"
)

// Init configures the Sentry client. Without a DSN the SDK stays disabled
// and every capture becomes a no-op. The returned func flushes buffered
// events and should be deferred by main.
func Init(cfg *config.Config) (func(), error) {
	if cfg.Sentry.DSN == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.App.ENV,
	})
	if err != nil {
		return func() {}, fmt.Errorf("sentry init: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// shouldIgnore filters errors caused by shutdown rather than by a fault.
func shouldIgnore(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// CaptureError logs an error locally and reports it to Sentry.
// Use this for failures outside a request (scheduler cycles, startup).
func CaptureError(err error, message string, args ...any) {
	if err == nil {
		return
	}
	logger.Error(message, append(args, "err", err)...)
	if shouldIgnore(err) {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetExtra("message", message)
		for i := 0; i+1 < len(args); i += 2 {
			if k, ok := args[i].(string); ok {
				scope.SetExtra(k, args[i+1])
			}
		}
		sentry.CaptureException(err)
	})
}
