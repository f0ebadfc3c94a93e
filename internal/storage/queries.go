package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

const (
	timeLayout = "2006-01-02T15:04:05.000000000Z"
	dateLayout = "2006-01-02"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL shared by both dialects, written with ? placeholders.
type Queries struct {
	db      DBTX
	dialect Dialect
}

func New(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.Rebind(query), args...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Format(dateLayout), Valid: true}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

const (
	expenseColumns = "id, owner_id, amount_cents, category, description, occurred_at, budget_cents"
	incomeColumns  = "id, owner_id, amount_cents, source, category, description, occurred_at"
)

// ListRecords selects owner rows of the kind's table matching f.
func (q *Queries) ListRecords(ctx context.Context, kind core.RecordKind, owner string, f store.Filter) ([]core.Record, error) {
	table, err := store.Table(kind)
	if err != nil {
		return nil, err
	}
	cols := expenseColumns
	if kind == core.KindIncome {
		cols = incomeColumns
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE owner_id = ?", cols, table)
	args := []any{owner}
	if kind == core.KindBudget {
		sb.WriteString(" AND budget_cents IS NOT NULL")
	}
	if f.Category != "" {
		sb.WriteString(" AND category = ?")
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		sb.WriteString(" AND occurred_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		sb.WriteString(" AND occurred_at < ?")
		args = append(args, formatTime(f.To))
	}
	if f.Newest {
		sb.WriteString(" ORDER BY occurred_at DESC, id ASC")
	} else {
		sb.WriteString(" ORDER BY occurred_at ASC, id ASC")
	}
	if f.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	rows, err := q.query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var (
			r          core.Record
			occurredAt string
		)
		if kind == core.KindIncome {
			r.Kind = core.KindIncome
			err = rows.Scan(&r.ID, &r.OwnerID, &r.Amount.Cents, &r.Source, &r.Category, &r.Description, &occurredAt)
		} else {
			var budget sql.NullInt64
			r.Kind = kind
			err = rows.Scan(&r.ID, &r.OwnerID, &r.Amount.Cents, &r.Category, &r.Description, &occurredAt, &budget)
			if budget.Valid {
				r.Ceiling = &core.Money{Cents: budget.Int64}
			}
		}
		if err != nil {
			return nil, err
		}
		if r.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, fmt.Errorf("parse occurred_at of %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) InsertRecord(ctx context.Context, r core.Record, createdAt time.Time) error {
	if r.Kind == core.KindIncome {
		_, err := q.exec(ctx,
			"INSERT INTO incomes (id, owner_id, amount_cents, source, category, description, occurred_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			r.ID, r.OwnerID, r.Amount.Cents, r.Source, r.Category, r.Description, formatTime(r.OccurredAt), formatTime(createdAt))
		return err
	}
	var budget sql.NullInt64
	if r.Ceiling != nil {
		budget = sql.NullInt64{Int64: r.Ceiling.Cents, Valid: true}
	}
	_, err := q.exec(ctx,
		"INSERT INTO expenses (id, owner_id, amount_cents, category, description, occurred_at, budget_cents, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.OwnerID, r.Amount.Cents, r.Category, r.Description, formatTime(r.OccurredAt), budget, formatTime(createdAt))
	return err
}

// scopeClause keeps expense writes off budget markers and budget writes on them.
func scopeClause(kind core.RecordKind) string {
	switch kind {
	case core.KindBudget:
		return " WHERE id = ? AND owner_id = ? AND budget_cents IS NOT NULL"
	case core.KindExpense:
		return " WHERE id = ? AND owner_id = ? AND budget_cents IS NULL"
	}
	return " WHERE id = ? AND owner_id = ?"
}

// UpdateRecord applies p and reports how many rows matched.
func (q *Queries) UpdateRecord(ctx context.Context, kind core.RecordKind, owner, id string, p store.Patch) (int64, error) {
	table, err := store.Table(kind)
	if err != nil {
		return 0, err
	}
	var (
		sets []string
		args []any
	)
	if p.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, p.Amount.Cents)
	}
	if p.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, strings.TrimSpace(*p.Category))
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.OccurredAt != nil {
		sets = append(sets, "occurred_at = ?")
		args = append(args, formatTime(*p.OccurredAt))
	}
	if p.Source != nil && kind == core.KindIncome {
		sets = append(sets, "source = ?")
		args = append(args, *p.Source)
	}
	if p.Ceiling != nil && kind != core.KindIncome {
		sets = append(sets, "budget_cents = ?")
		args = append(args, p.Ceiling.Cents)
	}
	if len(sets) == 0 {
		var n int64
		err := q.queryRow(ctx, "SELECT COUNT(*) FROM "+table+scopeClause(kind), id, owner).Scan(&n)
		return n, err
	}
	args = append(args, id, owner)
	res, err := q.exec(ctx, "UPDATE "+table+" SET "+strings.Join(sets, ", ")+scopeClause(kind), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteRecord(ctx context.Context, kind core.RecordKind, owner, id string) (int64, error) {
	table, err := store.Table(kind)
	if err != nil {
		return 0, err
	}
	res, err := q.exec(ctx, "DELETE FROM "+table+scopeClause(kind), id, owner)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const userColumns = "id, username, password_hash, display_name, dark_mode, compact_mode, currency, created_at"

func scanUser(row interface{ Scan(...any) error }) (store.User, error) {
	var (
		u             store.User
		dark, compact int64
		createdAt     string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Settings.DisplayName, &dark, &compact, &u.Settings.Currency, &createdAt); err != nil {
		return store.User{}, err
	}
	u.Settings.DarkMode = dark != 0
	u.Settings.CompactMode = compact != 0
	t, err := parseTime(createdAt)
	if err != nil {
		return store.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}

func (q *Queries) InsertUser(ctx context.Context, u store.User) error {
	_, err := q.exec(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		u.ID, u.Username, u.PasswordHash, u.Settings.DisplayName, boolInt(u.Settings.DarkMode),
		boolInt(u.Settings.CompactMode), u.Settings.Currency, formatTime(u.CreatedAt))
	return err
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	return scanUser(q.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE lower(username) = lower(?)", username))
}

func (q *Queries) GetUserByID(ctx context.Context, id string) (store.User, error) {
	return scanUser(q.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (q *Queries) UpdateUserPassword(ctx context.Context, id, hash string) (int64, error) {
	res, err := q.exec(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) UpdateUserSettings(ctx context.Context, id string, s core.Settings) (int64, error) {
	res, err := q.exec(ctx,
		"UPDATE users SET display_name = ?, dark_mode = ?, compact_mode = ?, currency = ? WHERE id = ?",
		s.DisplayName, boolInt(s.DarkMode), boolInt(s.CompactMode), s.Currency, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) InsertRefreshToken(ctx context.Context, t store.RefreshToken, createdAt time.Time) error {
	_, err := q.exec(ctx,
		"INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		t.Hash, t.UserID, formatTime(t.ExpiresAt), formatTime(createdAt))
	return err
}

func (q *Queries) DeleteRefreshToken(ctx context.Context, hash string) (store.RefreshToken, error) {
	var (
		t         = store.RefreshToken{Hash: hash}
		expiresAt string
	)
	err := q.queryRow(ctx, "DELETE FROM refresh_tokens WHERE token_hash = ? RETURNING user_id, expires_at", hash).
		Scan(&t.UserID, &expiresAt)
	if err != nil {
		return store.RefreshToken{}, err
	}
	t.ExpiresAt, err = parseTime(expiresAt)
	return t, err
}

func (q *Queries) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := q.exec(ctx, "DELETE FROM refresh_tokens WHERE user_id = ?", userID)
	return err
}

const recurringColumns = "id, owner_id, description, amount_cents, category, repeat_every, start_date, end_date, last_execution"

func (q *Queries) ListRecurring(ctx context.Context, owner string) ([]core.RecurringPayment, error) {
	query := "SELECT " + recurringColumns + " FROM recurring_payments"
	var args []any
	if owner != "" {
		query += " WHERE owner_id = ?"
		args = append(args, owner)
	}
	query += " ORDER BY start_date ASC, id ASC"

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.RecurringPayment
	for rows.Next() {
		var (
			rp            core.RecurringPayment
			every, start  string
			end, lastExec sql.NullString
		)
		if err := rows.Scan(&rp.ID, &rp.OwnerID, &rp.Description, &rp.Amount.Cents, &rp.Category, &every, &start, &end, &lastExec); err != nil {
			return nil, err
		}
		rp.Every = core.RepetitionTypes(every)
		sd, err := time.Parse(dateLayout, start)
		if err != nil {
			return nil, fmt.Errorf("parse start_date of %s: %w", rp.ID, err)
		}
		rp.StartDate = core.Date{Time: sd}
		if end.Valid {
			ed, err := time.Parse(dateLayout, end.String)
			if err != nil {
				return nil, fmt.Errorf("parse end_date of %s: %w", rp.ID, err)
			}
			rp.EndDate = core.Date{Time: ed}
		}
		if lastExec.Valid {
			if rp.LastExecution, err = parseTime(lastExec.String); err != nil {
				return nil, fmt.Errorf("parse last_execution of %s: %w", rp.ID, err)
			}
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

func (q *Queries) InsertRecurring(ctx context.Context, rp core.RecurringPayment, createdAt time.Time) error {
	_, err := q.exec(ctx,
		"INSERT INTO recurring_payments ("+recurringColumns+", created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rp.ID, rp.OwnerID, rp.Description, rp.Amount.Cents, rp.Category, string(rp.Every),
		rp.StartDate.Format(dateLayout), nullDate(rp.EndDate), nullTime(rp.LastExecution), formatTime(createdAt))
	return err
}

func (q *Queries) DeleteRecurring(ctx context.Context, owner, id string) (int64, error) {
	res, err := q.exec(ctx, "DELETE FROM recurring_payments WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) SetRecurringExecuted(ctx context.Context, id string, at time.Time) (int64, error) {
	res, err := q.exec(ctx, "UPDATE recurring_payments SET last_execution = ? WHERE id = ?", formatTime(at), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
