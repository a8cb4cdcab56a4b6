// Package http exposes the per-user transaction repository, the analytics
// engine and the paginated view as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ledger/internal/analytics"
	"ledger/internal/cache"
	"ledger/internal/gateway"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/repository"
	"ledger/internal/view"
)

// HeaderUserID identifies the caller. Authentication happens upstream.
const HeaderUserID = "X-User-ID"

// Backend is what the server needs from the remote side besides the
// repository: the category list and a readiness check.
type Backend interface {
	gateway.CategoryLister
	Ping(ctx context.Context) error
}

type chartData struct {
	Chart      analytics.Chart           `json:"chart"`
	Comparison analytics.MonthComparison `json:"comparison"`
}

type Server struct {
	http.Server
	registry *repository.Registry
	backend  Backend
	logger   *log.Logger

	rateLimiter  *ratelimit.Limiter
	clientIP     *security.ClientIP
	pageSize     int
	startTimeout time.Duration
	now          func() time.Time
	loc          *time.Location

	// Chart results keyed by user, range, day and repository version.
	chartCache *cache.LRUCache[chartData]

	shutdownOnce sync.Once
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithPageSize sets the default page size.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock overrides the time source used for date ranges and labels.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLocation sets the calendar used for date ranges and labels.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.loc = loc }
}

func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.rateLimiter = l }
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, registry *repository.Registry, backend Backend, opts ...Option) *Server {
	s := &Server{
		registry:     registry,
		backend:      backend,
		pageSize:     view.DefaultPageSize,
		startTimeout: 30 * time.Second,
		now:          time.Now,
		loc:          time.Local,
		clientIP:     security.NewClientIP(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentHTTP)
	}
	if s.rateLimiter == nil {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	s.chartCache = cache.NewLRUCache[chartData](200, 5*time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /transactions", s.withUser(s.handleListTransactions))
	mux.HandleFunc("POST /transactions", s.withUser(s.handleCreateTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", s.withUser(s.handleDeleteTransaction))
	mux.HandleFunc("GET /summary", s.withUser(s.handleSummary))
	mux.HandleFunc("GET /chart", s.withUser(s.handleChart))
	mux.HandleFunc("GET /categories", s.withUser(s.handleCategories))
	mux.HandleFunc("POST /sync", s.withUser(s.handleSync))

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.rateLimitKey, rateLimited, http.MethodPost, http.MethodDelete)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = log.Middleware(s.logger, trace.FromRequest)(h)
	h = trace.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// ChartCache exposes the chart cache for registration with a cache.Manager.
func (s *Server) ChartCache() cache.Cleaner {
	return s.chartCache
}

// Shutdown gracefully shuts down the server and its rate limiter once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// session returns the user's repository, running the session start sequence
// on first use. The start is detached from the request so a client that
// disconnects early does not leave the session half-loaded.
func (s *Server) session(ctx context.Context, userID string) *repository.Repository {
	repo := s.registry.Get(userID)

	startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.startTimeout)
	defer cancel()
	repo.Start(startCtx)
	return repo
}

// clock returns the current time in the configured calendar.
func (s *Server) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Server) rateLimitKey(r *http.Request) string {
	if u := r.Header.Get(HeaderUserID); u != "" {
		return "user:" + u
	}
	return "ip:" + s.clientIP.Extract(r)
}
