package http

import (
	"fmt"
	"net/http"

	"fintrack/internal/core"
)

type budgetsView struct {
	Statuses []core.BudgetStatus
	Allowed  []string
}

func (s *Server) loadBudgets(r *http.Request) (budgetsView, error) {
	statuses, err := s.deps.Budgets.Statuses(r.Context())
	return budgetsView{
		Statuses: statuses,
		Allowed:  s.deps.Records.Taxonomy().Expense().Items(),
	}, err
}

func (s *Server) handleBudgetsPage(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadBudgets(r)
	p := s.newPage(r, "budgets", "Budgets", view)
	s.render(w, r, s.loadStatus(r, &p, "list_budgets", err), "budgets_page", p)
}

func (s *Server) handleBudgetList(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadBudgets(r)
	if err != nil {
		s.fail(w, r, "list_budgets", err)
		return
	}
	s.render(w, r, http.StatusOK, "budget_list", s.newPage(r, "budgets", "Budgets", view))
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseFormOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	ceiling, err := ParseAmount("budget", p.Get("amount"))
	if err != nil {
		s.fail(w, r, "create_budget", err)
		return
	}
	category := p.Get("category")
	if err := s.deps.Budgets.AddBudget(r.Context(), category, ceiling); err != nil {
		s.fail(w, r, "create_budget", err)
		return
	}
	s.metrics.recordsCreated.Add(1)
	NewHXResponse().
		RecordsChanged(core.KindBudget, core.OpInsert).
		ResetForm().
		Success(fmt.Sprintf("Budget for %s created", category)).
		Write(w)
}

// handleDeleteBudget removes a category's ceiling; the category comes in the
// query string because htmx sends DELETE parameters there.
func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	category := sanitizeInput(r.URL.Query().Get("category"))
	if category == "" {
		s.fail(w, r, "delete_budget", &core.ValidationError{Field: "category", Err: core.ErrEmptyCategory})
		return
	}
	if err := s.deps.Budgets.RemoveBudget(r.Context(), category); err != nil {
		s.fail(w, r, "delete_budget", err)
		return
	}
	s.metrics.recordsDeleted.Add(1)
	NewHXResponse().
		RecordsChanged(core.KindBudget, core.OpDelete).
		Success(fmt.Sprintf("Budget for %s removed", category)).
		Write(w)
}
