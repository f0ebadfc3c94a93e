package http

import (
	"net/http"

	"fintrack/internal/core"
)

var repetitions = []core.RepetitionTypes{core.Daily, core.Weekly, core.Monthly, core.Yearly}

type recurringView struct {
	Payments    []core.RecurringPayment
	Allowed     []string
	Repetitions []core.RepetitionTypes
}

func (s *Server) loadRecurring(r *http.Request) (recurringView, error) {
	payments, err := s.deps.Recurring.List(r.Context())
	return recurringView{
		Payments:    payments,
		Allowed:     s.deps.Records.Taxonomy().Expense().Items(),
		Repetitions: repetitions,
	}, err
}

func (s *Server) handleRecurringPage(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadRecurring(r)
	p := s.newPage(r, "recurring", "Recurring payments", view)
	s.render(w, r, s.loadStatus(r, &p, "list_recurring", err), "recurring_page", p)
}

func (s *Server) handleRecurringList(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadRecurring(r)
	if err != nil {
		s.fail(w, r, "list_recurring", err)
		return
	}
	s.render(w, r, http.StatusOK, "recurring_list", s.newPage(r, "recurring", "Recurring payments", view))
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseFormOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	amount, err := ParseAmount("amount", p.Get("amount"))
	if err != nil {
		s.fail(w, r, "create_recurring", err)
		return
	}
	start, err := ParseDate("start_date", p.Get("start_date"))
	if err != nil {
		s.fail(w, r, "create_recurring", err)
		return
	}
	end, err := ParseDate("end_date", p.Get("end_date"))
	if err != nil {
		s.fail(w, r, "create_recurring", err)
		return
	}
	rp := core.RecurringPayment{
		Description: p.Get("description"),
		Amount:      amount,
		Category:    p.Get("category"),
		Every:       core.RepetitionTypes(p.Get("every")),
		StartDate:   start,
		EndDate:     end,
	}
	if _, err := s.deps.Recurring.Create(r.Context(), rp); err != nil {
		s.fail(w, r, "create_recurring", err)
		return
	}
	s.metrics.recordsCreated.Add(1)
	NewHXResponse().
		Trigger(EventRecordsChanged, map[string]string{"kind": "recurring", "op": string(core.OpInsert)}).
		ResetForm().
		Success("Recurring payment created").
		Write(w)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Recurring.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, "delete_recurring", err)
		return
	}
	s.metrics.recordsDeleted.Add(1)
	NewHXResponse().
		Trigger(EventRecordsChanged, map[string]string{"kind": "recurring", "op": string(core.OpDelete)}).
		Success("Recurring payment deleted").
		Write(w)
}
