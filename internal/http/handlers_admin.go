package http

import (
	"fmt"
	"net/http"

	"motolucro/internal/aggregate"
	applog "motolucro/internal/log"
)

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.AdminLogin == nil {
		NotFoundError("admin login disabled").Write(w)
		return
	}
	var req adminLoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	session, err := s.deps.AdminLogin.Login(req.Username, req.Password)
	if err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).
			WarnContext(r.Context(), "Admin login failed",
				applog.FieldClientIP, s.securityDetector.ExtractClientIP(r))
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().NoStore().Data(session).Write(w)
}

// handleAdminUsers lists users with their activity, narrowed by
// ?search= and ?status=active|suspended.
func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := aggregate.ParseUserStatus(q.Get("status"))
	if err != nil {
		writeError(w, r, applog.OpList, fmt.Errorf("%w: %v", errMalformed, err))
		return
	}
	listing, err := s.deps.Admin.ListUsers(r.Context(), sanitizeInput(q.Get("search")), status, s.loc)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().NoStore().Data(listing).Write(w)
}

func (s *Server) handleAdminToggleSuspension(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Admin.ToggleSuspension(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(u).Write(w)
}
