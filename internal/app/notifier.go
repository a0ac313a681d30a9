package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/cimillas/storefront-core/internal/domain"
)

// Notifier delivers lifecycle events to users out of band.
type Notifier interface {
	Notify(ctx context.Context, ev domain.Event) error
}

const defaultNotifyTimeout = 3 * time.Second

// dispatch sends ev with a bounded deadline. Failures are logged, never returned:
// the primary operation has already succeeded by the time we get here.
func dispatch(ctx context.Context, n Notifier, logger *slog.Logger, timeout time.Duration, ev domain.Event) {
	if n == nil {
		return
	}
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := n.Notify(ctx, ev); err != nil {
		logger.WarnContext(ctx, "notification dispatch failed",
			slog.String("kind", string(ev.Kind)),
			slog.String("order_id", ev.OrderID),
			slog.Any("err", err),
		)
	}
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
