// Package notify delivers domain events to whatever sends SMS and e-mail.
// Delivery is best effort; callers bound it with a deadline and log failures.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cimillas/storefront-core/internal/domain"
)

// Sink is anything that accepts an event.
type Sink interface {
	Notify(ctx context.Context, ev domain.Event) error
}

// Fanout sends each event to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes events to a slog logger. OTP codes are masked unless reveal is set,
// which is only meant for local development.
type Log struct {
	logger *slog.Logger
	reveal bool
}

func NewLog(logger *slog.Logger, reveal bool) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, reveal: reveal}
}

func (l *Log) Notify(ctx context.Context, ev domain.Event) error {
	attrs := []slog.Attr{
		slog.String("kind", string(ev.Kind)),
		slog.Time("occurred_at", ev.OccurredAt),
	}
	if ev.SubjectID != "" {
		attrs = append(attrs, slog.String("subject_id", ev.SubjectID))
	}
	if ev.OrderID != "" {
		attrs = append(attrs, slog.String("order_id", ev.OrderID))
	}
	for k, v := range ev.Payload {
		if k == "code" && !l.reveal {
			v = "******"
		}
		attrs = append(attrs, slog.String(k, v))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "notification", attrs...)
	return nil
}
