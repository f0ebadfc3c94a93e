// Package worker copies record changes from the event stream into the sheets mirror.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
	"fintrack/internal/store"
)

// SyncWorker applies change events to a sheets.Mirror. Inserts carry their row;
// updates are re-read from the source store, when one is configured, and
// replace the mirrored row.
type SyncWorker struct {
	mirror sheets.Mirror
	source store.Client
	logger *slog.Logger

	appended atomic.Int64
	deleted  atomic.Int64
	skipped  atomic.Int64
}

// Stats counts what the worker did since it started.
type Stats struct {
	Appended int64
	Deleted  int64
	Skipped  int64
}

// NewSyncWorker builds a worker. source may be nil, in which case updates are skipped.
func NewSyncWorker(mirror sheets.Mirror, source store.Client, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{mirror: mirror, source: source, logger: logger}
}

// HandleChange processes one change event. A returned error requeues the event.
func (w *SyncWorker) HandleChange(ctx context.Context, ev core.ChangeEvent) error {
	// budget markers live in the store only
	if ev.Kind == core.KindBudget {
		w.skipped.Add(1)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing change event",
		"owner_id", ev.OwnerID,
		"record_kind", ev.Kind,
		"record_id", ev.RecordID,
		"op", ev.Op)

	switch ev.Op {
	case core.OpInsert:
		r := ev.Record
		if r == nil {
			fetched, err := w.fetch(ctx, ev)
			if err != nil {
				return err
			}
			r = fetched
		}
		if r == nil || r.IsSentinel() {
			w.skipped.Add(1)
			return nil
		}
		return w.append(ctx, *r)

	case core.OpDelete:
		if err := w.mirror.DeleteRecord(ctx, ev.RecordID); err != nil {
			return fmt.Errorf("delete %s from mirror: %w", ev.RecordID, err)
		}
		w.deleted.Add(1)
		w.logger.InfoContext(ctx, "Removed record from mirror", "record_id", ev.RecordID)
		return nil

	case core.OpUpdate:
		if w.source == nil {
			w.logger.WarnContext(ctx, "No source store configured, skipping mirrored update", "record_id", ev.RecordID)
			w.skipped.Add(1)
			return nil
		}
		r, err := w.fetch(ctx, ev)
		if err != nil {
			return err
		}
		if err := w.mirror.DeleteRecord(ctx, ev.RecordID); err != nil {
			return fmt.Errorf("replace %s in mirror: %w", ev.RecordID, err)
		}
		if r == nil {
			// deleted after the update; the delete event will arrive too
			w.skipped.Add(1)
			return nil
		}
		return w.append(ctx, *r)

	default:
		w.logger.WarnContext(ctx, "Ignoring unknown change op", "op", ev.Op)
		w.skipped.Add(1)
		return nil
	}
}

func (w *SyncWorker) append(ctx context.Context, r core.Record) error {
	ref, err := w.mirror.AppendRecord(ctx, r)
	if err != nil {
		return fmt.Errorf("append %s to mirror: %w", r.ID, err)
	}
	w.appended.Add(1)
	w.logger.InfoContext(ctx, "Mirrored record",
		"record_id", r.ID,
		"record_kind", r.Kind,
		"sheets_ref", ref,
		"amount_cents", r.Amount.Cents)
	return nil
}

// fetch reads the current version of the event's record as its owner. A record
// that no longer exists yields nil.
func (w *SyncWorker) fetch(ctx context.Context, ev core.ChangeEvent) (*core.Record, error) {
	if w.source == nil {
		return nil, nil
	}
	ownerCtx := core.WithOwner(ctx, ev.OwnerID)
	records, err := w.source.Query(ownerCtx, ev.Kind, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("read %s from store: %w", ev.RecordID, err)
	}
	for i := range records {
		if records[i].ID == ev.RecordID {
			return &records[i], nil
		}
	}
	return nil, nil
}

func (w *SyncWorker) Stats() Stats {
	return Stats{
		Appended: w.appended.Load(),
		Deleted:  w.deleted.Load(),
		Skipped:  w.skipped.Load(),
	}
}
