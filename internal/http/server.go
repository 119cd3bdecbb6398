package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"motolucro/internal/auth"
	applog "motolucro/internal/log"
	"motolucro/internal/middleware/ratelimit"
	"motolucro/internal/middleware/security"
	"motolucro/internal/middleware/trace"
	"motolucro/internal/services"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LiveHub attaches websocket clients to a user's change feed.
type LiveHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string)
}

// Deps are the collaborators of the server. AdminLogin and Hub are
// optional; their routes answer 404 when nil.
type Deps struct {
	Transactions *services.TransactionService
	Users        *services.UserService
	Admin        *services.AdminService
	Tokens       *auth.Tokens
	AdminLogin   *auth.AdminLogin
	Hub          LiveHub
	Store        Pinger
	Location     *time.Location
	Logger       *applog.Logger

	RateLimitPerMinute int
}

type Server struct {
	http.Server
	deps   Deps
	loc    *time.Location
	logger *applog.Logger
	now    func() time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime              time.Time
	transactionsCreated atomic.Int64
	statementsRendered  atomic.Int64
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		deps:             deps,
		loc:              loc,
		logger:           logger,
		now:              time.Now,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		securityDetector: security.NewDetector(),
	}
	s.appMetrics.uptime = time.Now()
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	user := s.userChain()
	mux.Handle("GET /api/transactions", user(s.handleListTransactions))
	mux.Handle("POST /api/transactions", user(s.handleCreateTransaction))
	mux.Handle("PATCH /api/transactions/{id}", user(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", user(s.handleDeleteTransaction))
	mux.Handle("GET /api/summary", user(s.handleSummary))
	mux.Handle("GET /api/series", user(s.handleSeries))
	mux.Handle("GET /api/stats", user(s.handleStats))
	mux.Handle("GET /api/goal", user(s.handleGetGoal))
	mux.Handle("PUT /api/goal", user(s.handleSetGoal))
	mux.Handle("PUT /api/profile", user(s.handleUpdateProfile))
	mux.Handle("GET /api/statement.pdf", user(s.handleStatement))
	mux.Handle("GET /ws", user(s.handleWebsocket))

	admin := s.adminChain()
	mux.Handle("POST /admin/login", s.limited(http.HandlerFunc(s.handleAdminLogin)))
	mux.Handle("GET /admin/users", admin(s.handleAdminUsers))
	mux.Handle("POST /admin/users/{id}/suspend", admin(s.handleAdminToggleSuspension))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = s.traceMiddleware.Middleware(
		headers.Middleware(
			s.securityDetector.Middleware(mux)))
	return s
}

func (s *Server) limited(next http.Handler) http.Handler {
	return s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
			WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})(next)
}

// userChain authenticates a user token, rate limits, and loads the user,
// rejecting suspended accounts.
func (s *Server) userChain() func(http.HandlerFunc) http.Handler {
	requireUser := s.deps.Tokens.RequireUser(authError)
	return func(h http.HandlerFunc) http.Handler {
		return s.limited(requireUser(s.requireActiveUser(h)))
	}
}

func (s *Server) adminChain() func(http.HandlerFunc) http.Handler {
	requireAdmin := s.deps.Tokens.RequireAdmin(authError)
	return func(h http.HandlerFunc) http.Handler {
		return s.limited(requireAdmin(h))
	}
}

func (s *Server) requireActiveUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			authError(w, r, http.StatusUnauthorized, auth.ErrMissingToken)
			return
		}
		u, err := s.deps.Users.Authorize(r.Context(), id.UserID, id.Email)
		if err != nil {
			writeError(w, r, applog.OpRead, err)
			return
		}
		logger := applog.FromContext(r.Context()).With(applog.FieldUserID, u.ID)
		ctx := applog.WithContext(withUser(r.Context(), u), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// today returns now in the user time zone.
func (s *Server) today() time.Time {
	return s.now().In(s.loc)
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
