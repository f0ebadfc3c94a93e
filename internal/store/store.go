// Package store defines the record store ports and the shared filter, patch
// and error types used by every backend.
package store

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// StoreError is the single failure type returned by store operations. Message
// is safe to show to the user; Err keeps the underlying cause for logs.
type StoreError struct {
	Op      string
	Kind    core.RecordKind
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	msg := e.UserMessage()
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

// UserMessage returns the notification text for this failure.
func (e *StoreError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	subject := "records"
	if e.Kind != "" {
		subject = string(e.Kind) + " records"
	}
	return "could not " + e.Op + " " + subject
}

// Wrap turns err into a *StoreError unless it already is one.
func Wrap(op string, kind core.RecordKind, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Kind: kind, Err: err}
}

type (
	// Filter narrows a query. From is inclusive, To exclusive; zero values are unbounded.
	Filter struct {
		Category string
		From     time.Time
		To       time.Time
		Newest   bool
		Limit    int
	}

	// Patch carries the fields to change; nil means unchanged.
	Patch struct {
		Amount      *core.Money
		Category    *string
		Description *string
		Source      *string
		OccurredAt  *time.Time
		Ceiling     *core.Money
	}

	// Client is the record store. Every call is scoped to the owner carried in ctx.
	Client interface {
		Query(ctx context.Context, kind core.RecordKind, f Filter) ([]core.Record, error)
		Insert(ctx context.Context, kind core.RecordKind, r core.Record) (string, error)
		Update(ctx context.Context, kind core.RecordKind, id string, p Patch) error
		Delete(ctx context.Context, kind core.RecordKind, id string) error
	}

	User struct {
		ID           string
		Username     string
		PasswordHash string
		Settings     core.Settings
		CreatedAt    time.Time
	}

	RefreshToken struct {
		Hash      string
		UserID    string
		ExpiresAt time.Time
	}

	UserStore interface {
		CreateUser(ctx context.Context, u User) (string, error)
		UserByUsername(ctx context.Context, username string) (User, error)
		UserByID(ctx context.Context, id string) (User, error)
		UpdatePassword(ctx context.Context, id, hash string) error
		UpdateSettings(ctx context.Context, id string, s core.Settings) error
	}

	TokenStore interface {
		SaveRefreshToken(ctx context.Context, t RefreshToken) error
		// ConsumeRefreshToken removes the token and returns it, so each token is usable once.
		ConsumeRefreshToken(ctx context.Context, hash string) (RefreshToken, error)
		RevokeUserTokens(ctx context.Context, userID string) error
	}

	RecurringStore interface {
		ListRecurring(ctx context.Context) ([]core.RecurringPayment, error)
		CreateRecurring(ctx context.Context, rp core.RecurringPayment) (string, error)
		DeleteRecurring(ctx context.Context, id string) error
		// AllRecurring spans every owner and is only used by the recurring worker.
		AllRecurring(ctx context.Context) ([]core.RecurringPayment, error)
		MarkExecuted(ctx context.Context, id string, at time.Time) error
	}

	// Backend bundles everything a data backend provides.
	Backend interface {
		Client
		UserStore
		TokenStore
		RecurringStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// Owner returns the owner in ctx or a StoreError wrapping core.ErrUnauthenticated.
func Owner(ctx context.Context, op string, kind core.RecordKind) (string, error) {
	id, ok := core.OwnerFromContext(ctx)
	if !ok {
		return "", &StoreError{Op: op, Kind: kind, Message: "please sign in again", Err: core.ErrUnauthenticated}
	}
	return id, nil
}
