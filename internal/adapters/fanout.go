package adapters

import (
	"context"
	"errors"
	"log/slog"

	"fintrack/internal/core"
)

// Fanout delivers each event to every notifier in order. A failing notifier is
// logged and does not stop the others.
type Fanout struct {
	notifiers []core.Notifier
	logger    *slog.Logger
}

var _ core.Notifier = (*Fanout)(nil)

// NewFanout skips nil notifiers so optional transports can be passed unconditionally.
func NewFanout(logger *slog.Logger, notifiers ...core.Notifier) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fanout{logger: logger}
	for _, n := range notifiers {
		if n != nil {
			f.notifiers = append(f.notifiers, n)
		}
	}
	return f
}

func (f *Fanout) Notify(ctx context.Context, ev core.ChangeEvent) error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			f.logger.Warn("Change notification failed",
				"error", err,
				"owner_id", ev.OwnerID,
				"record_kind", ev.Kind,
				"record_id", ev.RecordID,
				"op", ev.Op)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Len() int { return len(f.notifiers) }

// NotifierFunc adapts a plain function to core.Notifier.
type NotifierFunc func(ctx context.Context, ev core.ChangeEvent) error

func (fn NotifierFunc) Notify(ctx context.Context, ev core.ChangeEvent) error { return fn(ctx, ev) }
