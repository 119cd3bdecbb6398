package http

import (
	"net/http"

	"motolucro/internal/aggregate"
	"motolucro/internal/core"
	applog "motolucro/internal/log"
)

type summaryResponse struct {
	aggregate.PeriodSummary
	Goal aggregate.GoalProgress `json:"goal"`
}

// handleSummary serves the dashboard cards. Goal progress is measured
// against the all-time net.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	list, err := s.deps.Transactions.Snapshot(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	sum := aggregate.Summarize(list, s.today())
	NewJSONResponse().NoStore().Data(summaryResponse{
		PeriodSummary: sum,
		Goal:          aggregate.Progress(sum.AllTime.Net.Cents, u.GoalAmount),
	}).Write(w)
}

// handleSeries serves the day-bucketed chart for ?filter=&start=&end=.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseSeriesRange(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	list, err := s.deps.Transactions.Snapshot(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().NoStore().Data(aggregate.BuildSeries(list, rng, s.today())).Write(w)
}

// statsResponse is the figures block of a filtered selection. Signed is
// gains minus expenses; Average is null when nothing matched.
type statsResponse struct {
	aggregate.Totals
	Count           int                   `json:"count"`
	Signed          core.Money            `json:"signed_total"`
	Average         *core.Money           `json:"average"`
	HasData         bool                  `json:"has_data"`
	GainsByCompany  []aggregate.Breakdown `json:"gains_by_company"`
	ExpensesByLabel []aggregate.Breakdown `json:"expenses_by_category"`
}

// handleStats serves the figures of a filtered selection.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := ParseFilterState(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	list, err := s.deps.Transactions.Snapshot(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}

	filtered := st.Apply(list, s.today())
	count, signed := aggregate.CountAndSum(filtered)
	resp := statsResponse{
		Totals:          aggregate.TotalsOf(filtered),
		Count:           count,
		Signed:          core.Money{Cents: signed},
		HasData:         count > 0,
		GainsByCompany:  aggregate.BreakdownByLabel(filtered, core.Gain),
		ExpensesByLabel: aggregate.BreakdownByLabel(filtered, core.Expense),
	}
	if avg, ok := aggregate.AverageValue(filtered); ok {
		m := core.FromDecimal(avg)
		resp.Average = &m
	}
	NewJSONResponse().NoStore().Data(resp).Write(w)
}

func (s *Server) goalProgress(r *http.Request, goal core.Money) (aggregate.GoalProgress, error) {
	list, err := s.deps.Transactions.Snapshot(r.Context(), userFrom(r).ID)
	if err != nil {
		return aggregate.GoalProgress{}, err
	}
	return aggregate.Progress(aggregate.NetOf(list), goal), nil
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	p, err := s.goalProgress(r, userFrom(r).GoalAmount)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().NoStore().Data(p).Write(w)
}

type goalRequest struct {
	Goal core.Money `json:"goal"`
}

// handleSetGoal overwrites the savings target.
func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	u, err := s.deps.Users.SetGoal(r.Context(), userFrom(r).ID, req.Goal)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	p, err := s.goalProgress(r, u.GoalAmount)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(p).Write(w)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p core.Profile
	if err := DecodeJSON(r, &p); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	u := userFrom(r)
	updated, err := s.deps.Users.UpdateProfile(r.Context(), u.ID, u.Email, core.Profile{
		Name:  sanitizeInput(p.Name),
		Phone: sanitizeInput(p.Phone),
	})
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(updated).Write(w)
}
