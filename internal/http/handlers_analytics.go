package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// barRow is one labelled bar of a chart; Width is a CSS percentage.
type barRow struct {
	Label  string
	Amount core.Money
	Width  int
}

type analyticsView struct {
	Windows []core.TimeWindow
	Window  core.TimeWindow
	Stats   services.Analytics
	// Breakdown is scaled against the window total, Trend against the busiest month.
	Breakdown []barRow
	Trend     []barRow
}

func percentOf(part, whole core.Money) int {
	if whole.Cents <= 0 {
		return 0
	}
	return int(part.Cents * 100 / whole.Cents)
}

func newAnalyticsView(a services.Analytics) analyticsView {
	view := analyticsView{Windows: windows, Window: a.Window, Stats: a}
	for _, c := range a.Breakdown {
		view.Breakdown = append(view.Breakdown, barRow{Label: c.Name, Amount: c.Amount, Width: percentOf(c.Amount, a.Total)})
	}
	var peak core.Money
	for _, m := range a.Trend {
		if m.Total.Cents > peak.Cents {
			peak = m.Total
		}
	}
	for _, m := range a.Trend {
		view.Trend = append(view.Trend, barRow{Label: m.Label, Amount: m.Total, Width: percentOf(m.Total, peak)})
	}
	return view
}

func (s *Server) loadAnalytics(r *http.Request) (analyticsView, error) {
	f := ParseFilters(r.URL.Query())
	a, err := s.deps.Analytics.Compute(r.Context(), f.Window)
	if err != nil {
		return analyticsView{Windows: windows, Window: f.Window}, err
	}
	return newAnalyticsView(a), nil
}

func (s *Server) handleAnalyticsPage(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadAnalytics(r)
	p := s.newPage(r, "analytics", "Analytics", view)
	s.render(w, r, s.loadStatus(r, &p, "analytics", err), "analytics_page", p)
}

func (s *Server) handleAnalyticsPanel(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadAnalytics(r)
	if err != nil {
		s.fail(w, r, "analytics", err)
		return
	}
	s.render(w, r, http.StatusOK, "analytics_panel", s.newPage(r, "analytics", "Analytics", view))
}

type interestView struct {
	Request InterestRequest
	Result  core.InterestResult
}

func (s *Server) handleInterestPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "interest_page", s.newPage(r, "interest", "Interest calculator", nil))
}

// handleCalculateInterest is stateless and open to anonymous visitors.
func (s *Server) handleCalculateInterest(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseFormOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	req, err := ParseInterest(p)
	if err != nil {
		s.fail(w, r, "interest", err)
		return
	}

	var res core.InterestResult
	if req.Input.PerYear == 0 {
		res, err = core.SimpleInterest(req.Input)
	} else {
		res, err = core.CompoundInterest(req.Input)
	}
	if err != nil {
		s.fail(w, r, "interest", err)
		return
	}
	s.render(w, r, http.StatusOK, "interest_result",
		s.newPage(r, "interest", "Interest calculator", interestView{Request: req, Result: res}))
}
