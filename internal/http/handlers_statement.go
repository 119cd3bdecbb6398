package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"motolucro/internal/aggregate"
	applog "motolucro/internal/log"
	"motolucro/internal/reports"
)

// handleStatement renders the filtered history as a PDF. It takes the
// same query parameters as the transaction list.
func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	st, err := ParseFilterState(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	u := userFrom(r)
	list, err := s.deps.Transactions.Snapshot(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}

	now := s.today()
	owner := u.Name
	if owner == "" {
		owner = u.Email
	}
	var buf bytes.Buffer
	err = reports.Render(&buf, reports.Statement{
		Owner:        owner,
		Period:       rangeLabel(aggregate.Resolve(st.Range, now)),
		Transactions: st.Apply(list, now),
		GeneratedAt:  now,
		Location:     s.loc,
	})
	if err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentReports).
			LogError(r.Context(), "Failed to render statement", err, applog.OpExport, applog.ErrorTypeInternal, nil)
		InternalServerError("internal error").Write(w)
		return
	}
	s.appMetrics.statementsRendered.Add(1)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="extrato-motolucro-%s.pdf"`, now.Format(time.DateOnly)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		NotFoundError("live updates disabled").Write(w)
		return
	}
	s.deps.Hub.ServeWS(w, r, userFrom(r).ID)
}
