// Package storage is the SQL record store. SQLite serves single-node installs;
// Postgres serves shared deployments. Both use the same schema and queries.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type Repository struct {
	db      *sql.DB
	dialect Dialect
	queries *Queries
	now     func() time.Time
}

var _ store.Backend = (*Repository)(nil)

// NewSQLiteRepository opens (creating if needed) the database file and migrates it.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent requests
	repo, err := open(SQLite, dbPath, 1)
	if err != nil {
		return nil, err
	}
	if _, err := repo.db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		repo.db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	return repo, nil
}

// NewPostgresRepository connects through the pgx stdlib driver and migrates the schema.
func NewPostgresRepository(dsn string) (*Repository, error) {
	return open(Postgres, dsn, 10)
}

func open(dialect Dialect, dsn string, maxOpen int) (*Repository, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	db.SetMaxOpenConns(maxOpen)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		dialect: dialect,
		queries: New(db, dialect),
		now:     time.Now,
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Dialect() Dialect { return r.dialect }

// Query implements store.Client.
func (r *Repository) Query(ctx context.Context, kind core.RecordKind, f store.Filter) ([]core.Record, error) {
	owner, err := store.Owner(ctx, "load", kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.queries.ListRecords(ctx, kind, owner, f)
	if err != nil {
		return nil, store.Wrap("load", kind, err)
	}
	if rows == nil {
		rows = []core.Record{}
	}
	return rows, nil
}

// Insert implements store.Client.
func (r *Repository) Insert(ctx context.Context, kind core.RecordKind, rec core.Record) (string, error) {
	owner, err := store.Owner(ctx, "save", kind)
	if err != nil {
		return "", err
	}
	now := r.now()
	row, err := store.PrepareInsert(kind, rec, now)
	if err != nil {
		return "", store.Wrap("save", kind, err)
	}
	row.ID = uuid.NewString()
	row.OwnerID = owner
	if err := r.queries.InsertRecord(ctx, row, now); err != nil {
		return "", store.Wrap("save", kind, err)
	}

	slog.InfoContext(ctx, "Record saved",
		"id", row.ID,
		"owner_id", owner,
		"record_kind", kind,
		"category", row.Category,
		"amount_cents", row.Amount.Cents)

	return row.ID, nil
}

// Update implements store.Client.
func (r *Repository) Update(ctx context.Context, kind core.RecordKind, id string, p store.Patch) error {
	owner, err := store.Owner(ctx, "update", kind)
	if err != nil {
		return err
	}
	n, err := r.queries.UpdateRecord(ctx, kind, owner, id, p)
	if err != nil {
		return store.Wrap("update", kind, err)
	}
	if n == 0 {
		return store.Wrap("update", kind, store.ErrNotFound)
	}
	return nil
}

// Delete implements store.Client.
func (r *Repository) Delete(ctx context.Context, kind core.RecordKind, id string) error {
	owner, err := store.Owner(ctx, "delete", kind)
	if err != nil {
		return err
	}
	n, err := r.queries.DeleteRecord(ctx, kind, owner, id)
	if err != nil {
		return store.Wrap("delete", kind, err)
	}
	if n == 0 {
		return store.Wrap("delete", kind, store.ErrNotFound)
	}
	slog.InfoContext(ctx, "Record deleted", "id", id, "owner_id", owner, "record_kind", kind)
	return nil
}

func notFound(op string, kind core.RecordKind, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.Wrap(op, kind, store.ErrNotFound)
	}
	return store.Wrap(op, kind, err)
}

func affected(op string, kind core.RecordKind, n int64, err error) error {
	if err != nil {
		return store.Wrap(op, kind, err)
	}
	if n == 0 {
		return store.Wrap(op, kind, store.ErrNotFound)
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, u store.User) (string, error) {
	if _, err := r.queries.GetUserByUsername(ctx, u.Username); err == nil {
		return "", store.Wrap("create", "user", store.ErrConflict)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", store.Wrap("create", "user", err)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now()
	}
	if u.Settings.Currency == "" {
		u.Settings.Currency = core.DefaultCurrency
	}
	if err := r.queries.InsertUser(ctx, u); err != nil {
		return "", store.Wrap("create", "user", err)
	}
	slog.InfoContext(ctx, "User created", "id", u.ID, "username", u.Username)
	return u.ID, nil
}

func (r *Repository) UserByUsername(ctx context.Context, username string) (store.User, error) {
	u, err := r.queries.GetUserByUsername(ctx, username)
	if err != nil {
		return store.User{}, notFound("load", "user", err)
	}
	return u, nil
}

func (r *Repository) UserByID(ctx context.Context, id string) (store.User, error) {
	u, err := r.queries.GetUserByID(ctx, id)
	if err != nil {
		return store.User{}, notFound("load", "user", err)
	}
	return u, nil
}

func (r *Repository) UpdatePassword(ctx context.Context, id, hash string) error {
	n, err := r.queries.UpdateUserPassword(ctx, id, hash)
	return affected("update", "user", n, err)
}

func (r *Repository) UpdateSettings(ctx context.Context, id string, s core.Settings) error {
	n, err := r.queries.UpdateUserSettings(ctx, id, s)
	return affected("update", "user", n, err)
}

func (r *Repository) SaveRefreshToken(ctx context.Context, t store.RefreshToken) error {
	if err := r.queries.InsertRefreshToken(ctx, t, r.now()); err != nil {
		return store.Wrap("save", "session", err)
	}
	return nil
}

func (r *Repository) ConsumeRefreshToken(ctx context.Context, hash string) (store.RefreshToken, error) {
	t, err := r.queries.DeleteRefreshToken(ctx, hash)
	if err != nil {
		return store.RefreshToken{}, notFound("load", "session", err)
	}
	return t, nil
}

func (r *Repository) RevokeUserTokens(ctx context.Context, userID string) error {
	if err := r.queries.DeleteUserRefreshTokens(ctx, userID); err != nil {
		return store.Wrap("delete", "session", err)
	}
	return nil
}

func (r *Repository) ListRecurring(ctx context.Context) ([]core.RecurringPayment, error) {
	owner, err := store.Owner(ctx, "load", "recurring")
	if err != nil {
		return nil, err
	}
	list, err := r.queries.ListRecurring(ctx, owner)
	if err != nil {
		return nil, store.Wrap("load", "recurring", err)
	}
	return list, nil
}

func (r *Repository) CreateRecurring(ctx context.Context, rp core.RecurringPayment) (string, error) {
	owner, err := store.Owner(ctx, "save", "recurring")
	if err != nil {
		return "", err
	}
	rp.ID = uuid.NewString()
	rp.OwnerID = owner
	if err := r.queries.InsertRecurring(ctx, rp, r.now()); err != nil {
		return "", store.Wrap("save", "recurring", err)
	}
	return rp.ID, nil
}

func (r *Repository) DeleteRecurring(ctx context.Context, id string) error {
	owner, err := store.Owner(ctx, "delete", "recurring")
	if err != nil {
		return err
	}
	n, err := r.queries.DeleteRecurring(ctx, owner, id)
	return affected("delete", "recurring", n, err)
}

func (r *Repository) AllRecurring(ctx context.Context) ([]core.RecurringPayment, error) {
	list, err := r.queries.ListRecurring(ctx, "")
	if err != nil {
		return nil, store.Wrap("load", "recurring", err)
	}
	return list, nil
}

func (r *Repository) MarkExecuted(ctx context.Context, id string, at time.Time) error {
	n, err := r.queries.SetRecurringExecuted(ctx, id, at)
	return affected("update", "recurring", n, err)
}
