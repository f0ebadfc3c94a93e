package http

import (
	"bytes"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/export"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

type expensesView struct {
	Filters
	Windows []core.TimeWindow
	// Categories are the distinct categories of the owner's rows, for the filter.
	Categories []string
	// Allowed is the expense allow-list, for the add form.
	Allowed []string
	Summary services.ExpenseSummary
}

type expenseEditView struct {
	Record  core.Record
	Allowed []string
}

type transactionsView struct {
	Records []core.Record
	Total   core.Money
}

func (s *Server) loadExpenses(r *http.Request) (expensesView, error) {
	f := ParseFilters(r.URL.Query())
	view := expensesView{
		Filters: f,
		Windows: windows,
		Allowed: s.deps.Records.Taxonomy().Expense().Items(),
	}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		sum, err := s.deps.Analytics.Expenses(ctx, f.Window, f.Category)
		view.Summary = sum
		return err
	})
	g.Go(func() error {
		cats, err := s.deps.Records.ExpenseCategories(ctx)
		view.Categories = cats
		return err
	})
	err := g.Wait()
	return view, err
}

// handleExpensesPage is the landing page: filters, stat cards, add form and list.
func (s *Server) handleExpensesPage(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadExpenses(r)
	p := s.newPage(r, "expenses", "Expenses", view)
	s.render(w, r, s.loadStatus(r, &p, "list_expenses", err), "expenses_page", p)
}

// handleExpenseList re-renders the stat cards and list for the current filters.
func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadExpenses(r)
	if err != nil {
		s.fail(w, r, "list_expenses", err)
		return
	}
	s.render(w, r, http.StatusOK, "expense_list", s.newPage(r, "expenses", "Expenses", view))
}

func (s *Server) expenseFromForm(p *FormBody) (core.Record, error) {
	amount, err := ParseAmount("amount", p.Get("amount"))
	if err != nil {
		return core.Record{}, err
	}
	at, err := ParseDateTime(p.Get("date"), p.Get("time"), s.now(), s.deps.Location)
	if err != nil {
		return core.Record{}, err
	}
	return core.Record{
		Kind:        core.KindExpense,
		Description: p.Get("description"),
		Category:    p.Get("category"),
		Amount:      amount,
		OccurredAt:  at,
	}, nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, fail := ParseFormOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	rec, err := s.expenseFromForm(p)
	if err != nil {
		s.fail(w, r, "create_expense", err)
		return
	}
	if _, err := s.deps.Records.AddExpense(ctx, rec); err != nil {
		s.fail(w, r, "create_expense", err)
		return
	}
	s.metrics.recordsCreated.Add(1)

	msg := "Expense added"
	if has, err := s.deps.Budgets.HasBudget(ctx, rec.Category); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Budget lookup after insert failed", "error", err)
	} else if has {
		msg = fmt.Sprintf("Expense added, %s budget updated", rec.Category)
	}

	NewHXResponse().
		RecordsChanged(core.KindExpense, core.OpInsert).
		ResetForm().
		Success(msg).
		Write(w)
}

func (s *Server) findExpense(r *http.Request, id string) (core.Record, error) {
	records, err := s.deps.Records.Expenses(r.Context(), core.WindowAll, "")
	if err != nil {
		return core.Record{}, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return core.Record{}, &store.StoreError{Op: "read", Kind: core.KindExpense, Message: "expense not found", Err: store.ErrNotFound}
}

// handleEditExpenseForm swaps a list row for an inline edit form.
func (s *Server) handleEditExpenseForm(w http.ResponseWriter, r *http.Request) {
	rec, err := s.findExpense(r, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "edit_expense", err)
		return
	}
	view := expenseEditView{Record: rec, Allowed: s.deps.Records.Taxonomy().Expense().Items()}
	s.render(w, r, http.StatusOK, "expense_edit_row", s.newPage(r, "expenses", "Edit expense", view))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseFormOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	rec, err := s.expenseFromForm(p)
	if err != nil {
		s.fail(w, r, "update_expense", err)
		return
	}
	if err := s.deps.Records.UpdateExpense(r.Context(), r.PathValue("id"), rec); err != nil {
		s.fail(w, r, "update_expense", err)
		return
	}
	s.metrics.recordsUpdated.Add(1)
	NewHXResponse().
		RecordsChanged(core.KindExpense, core.OpUpdate).
		Success("Expense updated").
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Records.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, "delete_expense", err)
		return
	}
	s.metrics.recordsDeleted.Add(1)
	NewHXResponse().
		RecordsChanged(core.KindExpense, core.OpDelete).
		Success("Expense deleted").
		Write(w)
}

func (s *Server) loadTransactions(r *http.Request) (transactionsView, error) {
	records, err := s.deps.Records.Expenses(r.Context(), core.WindowAll, "")
	if err != nil {
		return transactionsView{}, err
	}
	return transactionsView{Records: records, Total: core.Total(records)}, nil
}

func (s *Server) handleTransactionsPage(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadTransactions(r)
	p := s.newPage(r, "transactions", "Transactions", view)
	s.render(w, r, s.loadStatus(r, &p, "list_transactions", err), "transactions_page", p)
}

func (s *Server) handleTransactionsTable(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadTransactions(r)
	if err != nil {
		s.fail(w, r, "list_transactions", err)
		return
	}
	s.render(w, r, http.StatusOK, "transactions_table", s.newPage(r, "transactions", "Transactions", view))
}

// handleExport downloads the transaction history shown on the transactions page.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		BadRequest("Unknown export format").Write(w)
		return
	}
	records, err := s.deps.Records.Expenses(ctx, core.WindowAll, "")
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}

	var buf bytes.Buffer
	switch format {
	case export.FormatPDF:
		err = export.WritePDF(&buf, "Transactions", records)
	default:
		err = export.WriteXLSX(&buf, records)
	}
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}
	s.metrics.exports.Add(1)
	applog.FromContext(ctx).InfoContext(ctx, "Export generated",
		applog.FieldComponent, applog.ComponentExport,
		applog.FieldOwnerID, ownerOf(ctx),
		"format", string(format),
		"rows", len(records),
		"bytes", buf.Len())

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName("transactions", format, s.now())))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
