package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type incomeView struct {
	Summary    services.IncomeSummary
	Sources    []string
	Categories []string
}

func (s *Server) loadIncome(r *http.Request) (incomeView, error) {
	sum, err := s.deps.Analytics.Income(r.Context(), core.WindowAll)
	tx := s.deps.Records.Taxonomy()
	return incomeView{
		Summary:    sum,
		Sources:    tx.IncomeSources().Items(),
		Categories: tx.IncomeCategories().Items(),
	}, err
}

func (s *Server) handleIncomePage(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadIncome(r)
	p := s.newPage(r, "income", "Income", view)
	s.render(w, r, s.loadStatus(r, &p, "list_income", err), "income_page", p)
}

func (s *Server) handleIncomeList(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadIncome(r)
	if err != nil {
		s.fail(w, r, "list_income", err)
		return
	}
	s.render(w, r, http.StatusOK, "income_list", s.newPage(r, "income", "Income", view))
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseFormOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	amount, err := ParseAmount("amount", p.Get("amount"))
	if err != nil {
		s.fail(w, r, "create_income", err)
		return
	}
	at, err := ParseDateTime(p.Get("date"), "", s.now(), s.deps.Location)
	if err != nil {
		s.fail(w, r, "create_income", err)
		return
	}
	rec := core.Record{
		Kind:        core.KindIncome,
		Source:      p.Get("source"),
		Category:    p.Get("category"),
		Description: p.Get("description"),
		Amount:      amount,
		OccurredAt:  at,
	}
	if _, err := s.deps.Records.AddIncome(r.Context(), rec); err != nil {
		s.fail(w, r, "create_income", err)
		return
	}
	s.metrics.recordsCreated.Add(1)
	NewHXResponse().
		RecordsChanged(core.KindIncome, core.OpInsert).
		ResetForm().
		Success("Income added").
		Write(w)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Records.DeleteIncome(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, "delete_income", err)
		return
	}
	s.metrics.recordsDeleted.Add(1)
	NewHXResponse().
		RecordsChanged(core.KindIncome, core.OpDelete).
		Success("Income deleted").
		Write(w)
}
