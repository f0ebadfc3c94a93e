package services

import (
	"context"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// RecurringService manages the owner's recurring payment templates.
type RecurringService struct {
	store   store.RecurringStore
	records *RecordService
	logger  *slog.Logger
}

func NewRecurringService(rs store.RecurringStore, records *RecordService, logger *slog.Logger) *RecurringService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecurringService{store: rs, records: records, logger: logger}
}

// List returns the owner's templates; anonymous callers get none.
func (s *RecurringService) List(ctx context.Context) ([]core.RecurringPayment, error) {
	if _, ok := core.OwnerFromContext(ctx); !ok {
		return []core.RecurringPayment{}, nil
	}
	return s.store.ListRecurring(ctx)
}

func (s *RecurringService) Create(ctx context.Context, rp core.RecurringPayment) (string, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return "", err
	}
	if err := rp.Validate(); err != nil {
		return "", err
	}
	cat, err := s.records.canonicalExpenseCategory(rp.Category)
	if err != nil {
		return "", err
	}
	rp.Category = cat
	rp.OwnerID = owner
	id, err := s.store.CreateRecurring(ctx, rp)
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "Recurring payment created",
		"owner_id", owner,
		"record_id", id,
		"category", rp.Category,
		"amount_cents", rp.Amount.Cents,
		"every", rp.Every)
	return id, nil
}

func (s *RecurringService) Delete(ctx context.Context, id string) error {
	if _, err := requireOwner(ctx); err != nil {
		return err
	}
	return s.store.DeleteRecurring(ctx, id)
}
