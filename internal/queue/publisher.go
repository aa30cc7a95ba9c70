package queue

import (
	"context"
	"errors"
	"log/slog"
)

// Publisher sends booking events somewhere.  Publishing is best effort:
// callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, BookingEvent) error { return nil }
func (Nop) Close() error                               { return nil }

// Fanout delivers each event to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev BookingEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// Logged wraps a publisher so failures are logged instead of returned.
func Logged(p Publisher, logger *slog.Logger) Publisher {
	return logged{next: p, logger: logger}
}

type logged struct {
	next   Publisher
	logger *slog.Logger
}

func (l logged) Publish(ctx context.Context, ev BookingEvent) error {
	if err := l.next.Publish(ctx, ev); err != nil {
		l.logger.Warn("publish booking event failed",
			slog.String("type", ev.Type),
			slog.String("reservation_id", ev.ReservationID),
			slog.Any("error", err))
	}
	return nil
}

func (l logged) Close() error { return l.next.Close() }
