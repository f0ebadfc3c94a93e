// Package storetest holds behaviour checks shared by every store.Backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// Run exercises b through the store.Backend contract.
func Run(t *testing.T, newBackend func(t *testing.T) store.Backend) {
	t.Run("OwnerScoping", func(t *testing.T) { testOwnerScoping(t, newBackend(t)) })
	t.Run("FilterAndOrder", func(t *testing.T) { testFilterAndOrder(t, newBackend(t)) })
	t.Run("BudgetMarkers", func(t *testing.T) { testBudgetMarkers(t, newBackend(t)) })
	t.Run("UpdateDelete", func(t *testing.T) { testUpdateDelete(t, newBackend(t)) })
	t.Run("Unauthenticated", func(t *testing.T) { testUnauthenticated(t, newBackend(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newBackend(t)) })
	t.Run("RefreshTokens", func(t *testing.T) { testRefreshTokens(t, newBackend(t)) })
	t.Run("Recurring", func(t *testing.T) { testRecurring(t, newBackend(t)) })
}

func at(day int) time.Time {
	return time.Date(2025, 5, day, 12, 0, 0, 0, time.UTC)
}

func expense(cat string, cents int64, when time.Time) core.Record {
	return core.Record{Category: cat, Amount: core.Money{Cents: cents}, Description: cat + " spend", OccurredAt: when}
}

func testOwnerScoping(t *testing.T, b store.Backend) {
	alice := core.WithOwner(context.Background(), "alice")
	bob := core.WithOwner(context.Background(), "bob")

	id, err := b.Insert(alice, core.KindExpense, expense("Groceries", 500, at(1)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}
	rs, err := b.Query(bob, core.KindExpense, store.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rs) != 0 {
		t.Fatalf("bob must not see alice's records, got %d", len(rs))
	}
	if err := b.Delete(bob, core.KindExpense, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-owner delete should be not found, got %v", err)
	}
	rs, _ = b.Query(alice, core.KindExpense, store.Filter{})
	if len(rs) != 1 || rs[0].OwnerID != "alice" || rs[0].Amount.Cents != 500 {
		t.Fatalf("unexpected rows %+v", rs)
	}
}

func testFilterAndOrder(t *testing.T, b store.Backend) {
	ctx := core.WithOwner(context.Background(), "u1")
	for _, r := range []core.Record{
		expense("Dining", 100, at(3)),
		expense("Groceries", 200, at(1)),
		expense("Groceries", 300, at(10)),
	} {
		if _, err := b.Insert(ctx, core.KindExpense, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := b.Insert(ctx, core.KindIncome, core.Record{Source: "Salary", Amount: core.Money{Cents: 9999}, OccurredAt: at(2)}); err != nil {
		t.Fatalf("insert income: %v", err)
	}

	rs, err := b.Query(ctx, core.KindExpense, store.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rs) != 3 || rs[0].Amount.Cents != 200 || rs[2].Amount.Cents != 300 {
		t.Fatalf("expected oldest first, got %+v", rs)
	}

	rs, _ = b.Query(ctx, core.KindExpense, store.Filter{Newest: true, Limit: 2})
	if len(rs) != 2 || rs[0].Amount.Cents != 300 || rs[1].Amount.Cents != 100 {
		t.Fatalf("expected newest first with limit, got %+v", rs)
	}

	rs, _ = b.Query(ctx, core.KindExpense, store.Filter{Category: "Groceries", From: at(2), To: at(11)})
	if len(rs) != 1 || rs[0].Amount.Cents != 300 {
		t.Fatalf("category and range filter failed, got %+v", rs)
	}

	rs, _ = b.Query(ctx, core.KindExpense, store.Filter{To: at(3)})
	if len(rs) != 1 || rs[0].Amount.Cents != 200 {
		t.Fatalf("upper bound must be exclusive, got %+v", rs)
	}

	rs, _ = b.Query(ctx, core.KindIncome, store.Filter{})
	if len(rs) != 1 || rs[0].Source != "Salary" || rs[0].Kind != core.KindIncome {
		t.Fatalf("unexpected income rows %+v", rs)
	}
}

func testBudgetMarkers(t *testing.T, b store.Backend) {
	ctx := core.WithOwner(context.Background(), "u1")
	ceiling := core.Money{Cents: 100000}
	id, err := b.Insert(ctx, core.KindBudget, core.Record{Category: "Groceries", Ceiling: &ceiling, OccurredAt: at(1)})
	if err != nil {
		t.Fatalf("insert budget: %v", err)
	}
	if _, err := b.Insert(ctx, core.KindExpense, expense("Groceries", 400, at(2))); err != nil {
		t.Fatalf("insert expense: %v", err)
	}

	markers, err := b.Query(ctx, core.KindBudget, store.Filter{})
	if err != nil {
		t.Fatalf("query budgets: %v", err)
	}
	if len(markers) != 1 || markers[0].ID != id || !markers[0].IsSentinel() || markers[0].Ceiling.Cents != 100000 {
		t.Fatalf("unexpected markers %+v", markers)
	}

	// markers are rows of the expense table
	all, _ := b.Query(ctx, core.KindExpense, store.Filter{})
	if len(all) != 2 || len(core.RealExpenses(all)) != 1 {
		t.Fatalf("expected 1 sentinel and 1 real expense, got %+v", all)
	}

	if _, err := b.Insert(ctx, core.KindBudget, core.Record{Category: "Rent"}); err == nil {
		t.Fatalf("budget without ceiling must be rejected")
	}

	// expense writes never reach a marker
	amount := core.Money{Cents: 500000}
	desc := "lunch"
	if err := b.Update(ctx, core.KindExpense, id, store.Patch{Amount: &amount, Description: &desc}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expense update of a marker should be not found, got %v", err)
	}
	if err := b.Delete(ctx, core.KindExpense, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expense delete of a marker should be not found, got %v", err)
	}
	markers, _ = b.Query(ctx, core.KindBudget, store.Filter{})
	if len(markers) != 1 || markers[0].Amount.Cents != 0 || markers[0].Ceiling.Cents != 100000 {
		t.Fatalf("marker changed by expense writes: %+v", markers)
	}

	if err := b.Delete(ctx, core.KindBudget, id); err != nil {
		t.Fatalf("delete budget: %v", err)
	}
	markers, _ = b.Query(ctx, core.KindBudget, store.Filter{})
	if len(markers) != 0 {
		t.Fatalf("expected no markers after delete, got %d", len(markers))
	}
}

func testUpdateDelete(t *testing.T, b store.Backend) {
	ctx := core.WithOwner(context.Background(), "u1")
	id, err := b.Insert(ctx, core.KindExpense, expense("Dining", 1200, at(5)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	amount := core.Money{Cents: 1500}
	cat := "Travel"
	if err := b.Update(ctx, core.KindExpense, id, store.Patch{Amount: &amount, Category: &cat}); err != nil {
		t.Fatalf("update: %v", err)
	}
	rs, _ := b.Query(ctx, core.KindExpense, store.Filter{})
	if len(rs) != 1 || rs[0].Amount.Cents != 1500 || rs[0].Category != "Travel" || rs[0].Description != "Dining spend" {
		t.Fatalf("unexpected row after update %+v", rs)
	}
	if err := b.Update(ctx, core.KindIncome, id, store.Patch{Amount: &amount}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update through wrong kind should be not found, got %v", err)
	}
	if err := b.Delete(ctx, core.KindExpense, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var se *store.StoreError
	if err := b.Delete(ctx, core.KindExpense, id); !errors.As(err, &se) {
		t.Fatalf("second delete should return StoreError, got %v", err)
	}
}

func testUnauthenticated(t *testing.T, b store.Backend) {
	ctx := context.Background()
	_, err := b.Query(ctx, core.KindExpense, store.Filter{})
	if !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := b.Insert(ctx, core.KindExpense, expense("x", 1, at(1))); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated on insert, got %v", err)
	}
}

func testUsers(t *testing.T, b store.Backend) {
	ctx := context.Background()
	id, err := b.CreateUser(ctx, store.User{Username: "Ada", PasswordHash: "h1", Settings: core.DefaultSettings()})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := b.CreateUser(ctx, store.User{Username: "ada", PasswordHash: "h2"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate username should conflict, got %v", err)
	}
	u, err := b.UserByUsername(ctx, "ada")
	if err != nil || u.ID != id {
		t.Fatalf("lookup by username: %+v %v", u, err)
	}
	st := core.Settings{DisplayName: "Ada L.", DarkMode: true, CompactMode: true, Currency: "€"}
	if err := b.UpdateSettings(ctx, id, st); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if err := b.UpdatePassword(ctx, id, "h3"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	u, err = b.UserByID(ctx, id)
	if err != nil {
		t.Fatalf("lookup by id: %v", err)
	}
	if u.Settings != st || u.PasswordHash != "h3" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := b.UserByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testRefreshTokens(t *testing.T, b store.Backend) {
	ctx := context.Background()
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := b.SaveRefreshToken(ctx, store.RefreshToken{Hash: "a", UserID: "u1", ExpiresAt: exp}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := b.SaveRefreshToken(ctx, store.RefreshToken{Hash: "b", UserID: "u1", ExpiresAt: exp}); err != nil {
		t.Fatalf("save: %v", err)
	}
	tok, err := b.ConsumeRefreshToken(ctx, "a")
	if err != nil || tok.UserID != "u1" || !tok.ExpiresAt.Equal(exp) {
		t.Fatalf("consume: %+v %v", tok, err)
	}
	if _, err := b.ConsumeRefreshToken(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("token must be single use, got %v", err)
	}
	if err := b.RevokeUserTokens(ctx, "u1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := b.ConsumeRefreshToken(ctx, "b"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("revoked token must be gone, got %v", err)
	}
}

func testRecurring(t *testing.T, b store.Backend) {
	ctx := core.WithOwner(context.Background(), "u1")
	other := core.WithOwner(context.Background(), "u2")
	rp := core.RecurringPayment{
		StartDate:   core.NewDate(2025, 1, 31),
		Every:       core.Monthly,
		Description: "Rent",
		Amount:      core.Money{Cents: 80000},
		Category:    "Rent",
	}
	id, err := b.CreateRecurring(ctx, rp)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := b.CreateRecurring(other, rp); err != nil {
		t.Fatalf("create other: %v", err)
	}
	list, err := b.ListRecurring(ctx)
	if err != nil || len(list) != 1 || list[0].ID != id || list[0].Every != core.Monthly {
		t.Fatalf("list: %+v %v", list, err)
	}
	if !list[0].EndDate.IsZero() || !list[0].LastExecution.IsZero() {
		t.Fatalf("optional dates should stay zero, got %+v", list[0])
	}
	all, _ := b.AllRecurring(context.Background())
	if len(all) != 2 {
		t.Fatalf("expected 2 templates across owners, got %d", len(all))
	}
	ran := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	if err := b.MarkExecuted(context.Background(), id, ran); err != nil {
		t.Fatalf("mark executed: %v", err)
	}
	list, _ = b.ListRecurring(ctx)
	if !list[0].LastExecution.Equal(ran) {
		t.Fatalf("expected last execution %v, got %v", ran, list[0].LastExecution)
	}
	if err := b.DeleteRecurring(other, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-owner delete should fail, got %v", err)
	}
	if err := b.DeleteRecurring(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
