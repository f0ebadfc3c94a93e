package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// RecurringProcessor turns due recurring templates of every owner into expense records.
type RecurringProcessor struct {
	templates store.RecurringStore
	records   store.Client
	logger    *slog.Logger
}

func NewRecurringProcessor(templates store.RecurringStore, records store.Client, logger *slog.Logger) *RecurringProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecurringProcessor{templates: templates, records: records, logger: logger}
}

// ProcessDue creates one expense per due template and returns how many were created.
// A failing template is logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	all, err := p.templates.AllRecurring(ctx)
	if err != nil {
		return 0, fmt.Errorf("load recurring payments: %w", err)
	}

	created := 0
	for _, rp := range all {
		due, err := IsDue(rp, now)
		if err != nil {
			p.logger.ErrorContext(ctx, "Skipping recurring payment", "record_id", rp.ID, "error", err)
			continue
		}
		if !due {
			continue
		}

		octx := core.WithOwner(ctx, rp.OwnerID)
		id, err := p.records.Insert(octx, core.KindExpense, core.Record{
			Amount:      rp.Amount,
			Category:    rp.Category,
			Description: rp.Description,
			OccurredAt:  now,
		})
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to create expense from recurring payment",
				"record_id", rp.ID,
				"owner_id", rp.OwnerID,
				"error", err)
			continue
		}

		if err := p.templates.MarkExecuted(ctx, rp.ID, now); err != nil {
			// the expense exists; the next run may duplicate it
			p.logger.ErrorContext(ctx, "Failed to record execution", "record_id", rp.ID, "error", err)
		}

		created++
		p.logger.InfoContext(ctx, "Created expense from recurring payment",
			"record_id", id,
			"owner_id", rp.OwnerID,
			"category", rp.Category,
			"amount_cents", rp.Amount.Cents,
			"every", rp.Every)
	}

	p.logger.InfoContext(ctx, "Recurring payment run complete", "created", created, "checked", len(all))
	return created, nil
}
