package http

import (
	"net/http"
	"time"

	"motolucro/internal/aggregate"
	"motolucro/internal/core"
	applog "motolucro/internal/log"
	"motolucro/internal/services"
)

type createTransactionRequest struct {
	Value    core.Money `json:"value"`
	Type     string     `json:"type"`
	Category string     `json:"category"`
	Company  string     `json:"company"`
	Date     string     `json:"date"`
}

type filterEcho struct {
	Filter  aggregate.Selector   `json:"filter"`
	Start   string               `json:"start,omitempty"`
	End     string               `json:"end,omitempty"`
	Type    aggregate.TypeFilter `json:"type"`
	Subtype string               `json:"subtype"`
}

// totalsRow is the line under the history list.
type totalsRow struct {
	Count int        `json:"count"`
	Total core.Money `json:"total"`
}

type transactionListResponse struct {
	Transactions []core.Transaction `json:"transactions"`
	Totals       totalsRow          `json:"totals"`
	Filter       filterEcho         `json:"filter"`
}

func echoFilter(st aggregate.FilterState) filterEcho {
	e := filterEcho{Filter: st.Range.Selector, Type: st.Type, Subtype: st.Subtype}
	if !st.Range.Start.IsZero() {
		e.Start = st.Range.Start.Format(time.DateOnly)
	}
	if !st.Range.End.IsZero() {
		e.End = st.Range.End.Format(time.DateOnly)
	}
	return e
}

// handleListTransactions returns the filtered history and its totals row.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	st, err := ParseFilterState(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	list, err := s.deps.Transactions.Snapshot(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}

	filtered := st.Apply(list, s.today())
	count, total := aggregate.CountAndSum(filtered)
	NewJSONResponse().NoStore().Data(transactionListResponse{
		Transactions: filtered,
		Totals:       totalsRow{Count: count, Total: core.Money{Cents: total}},
		Filter:       echoFilter(st),
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	typ, err := core.ParseTxType(req.Type)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	date, err := ParseBookingDate(req.Date, s.loc)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	tx, err := s.deps.Transactions.Create(r.Context(), userFrom(r).ID, services.NewTransaction{
		Value:    req.Value,
		Type:     typ,
		Category: sanitizeInput(req.Category),
		Company:  sanitizeInput(req.Company),
		Date:     date,
	})
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	s.appMetrics.transactionsCreated.Add(1)
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		Data(tx).
		Write(w)
}

// handleUpdateTransaction edits value, category or company. Type and date
// are not part of the patch and are rejected as unknown fields.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var patch core.TransactionPatch
	if err := DecodeJSON(r, &patch); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	if patch.Category != nil {
		c := sanitizeInput(*patch.Category)
		patch.Category = &c
	}
	if patch.Company != nil {
		c := sanitizeInput(*patch.Company)
		patch.Company = &c
	}

	tx, err := s.deps.Transactions.Update(r.Context(), userFrom(r).ID, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Transactions.Delete(r.Context(), userFrom(r).ID, r.PathValue("id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
