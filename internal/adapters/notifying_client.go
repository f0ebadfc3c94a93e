// Package adapters decorates the record store so that every successful write
// is announced to the rest of the system (cache, browsers, other instances,
// the sheets mirror) without the handlers knowing about any of them.
package adapters

import (
	"context"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// NotifyingClient wraps a store.Client and emits a core.ChangeEvent after each
// successful write. Notification failures never fail the write.
type NotifyingClient struct {
	store.Client
	notifier core.Notifier
	origin   string
	now      func() time.Time
}

var _ store.Client = (*NotifyingClient)(nil)

func NewNotifyingClient(client store.Client, notifier core.Notifier, origin string) *NotifyingClient {
	return &NotifyingClient{Client: client, notifier: notifier, origin: origin, now: time.Now}
}

func (c *NotifyingClient) Insert(ctx context.Context, kind core.RecordKind, r core.Record) (string, error) {
	id, err := c.Client.Insert(ctx, kind, r)
	if err != nil {
		return "", err
	}
	r.ID, r.OwnerID = id, ownerOf(ctx)
	if kind == core.KindBudget && r.Ceiling != nil {
		marker := core.NewBudgetMarker(r.Category, *r.Ceiling, r.OccurredAt)
		marker.ID, marker.OwnerID = r.ID, r.OwnerID
		r = marker
	}
	c.emit(ctx, kind, core.OpInsert, id, &r)
	return id, nil
}

func (c *NotifyingClient) Update(ctx context.Context, kind core.RecordKind, id string, p store.Patch) error {
	if err := c.Client.Update(ctx, kind, id, p); err != nil {
		return err
	}
	c.emit(ctx, kind, core.OpUpdate, id, nil)
	return nil
}

func (c *NotifyingClient) Delete(ctx context.Context, kind core.RecordKind, id string) error {
	if err := c.Client.Delete(ctx, kind, id); err != nil {
		return err
	}
	c.emit(ctx, kind, core.OpDelete, id, nil)
	return nil
}

func (c *NotifyingClient) emit(ctx context.Context, kind core.RecordKind, op core.ChangeOp, id string, r *core.Record) {
	if c.notifier == nil {
		return
	}
	ev := core.ChangeEvent{
		OwnerID:  ownerOf(ctx),
		Kind:     kind,
		Op:       op,
		RecordID: id,
		Origin:   c.origin,
		At:       c.now().UTC(),
		Record:   r,
	}
	// errors are logged by the fan-out; the write already succeeded
	_ = c.notifier.Notify(context.WithoutCancel(ctx), ev)
}

func ownerOf(ctx context.Context) string {
	owner, _ := core.OwnerFromContext(ctx)
	return owner
}
