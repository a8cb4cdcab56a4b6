package http

import (
	"fmt"
	"net/http"
	"time"

	"ledger/internal/analytics"
	"ledger/internal/core"
	"ledger/internal/gateway/memory"
	"ledger/internal/localstore"
	"ledger/internal/log"
	"ledger/internal/repository"
	"ledger/internal/view"
)

type transactionsResponse struct {
	state
	view.Page
	Summary analytics.Summary `json:"summary"`
}

type summaryResponse struct {
	state
	analytics.Summary
}

type chartResponse struct {
	state
	chartData
}

type createResponse struct {
	state
	Transaction core.Transaction `json:"transaction"`
	Local       bool             `json:"local"`
}

type syncResponse struct {
	state
	repository.ReconcileResult
}

type categoriesResponse struct {
	state
	Categories []core.Category `json:"categories"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports whether the remote backend answers. The app keeps
// serving from the local cache either way.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Ping(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Remote backend not ready", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, state{Degraded: true, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, state{})
}

// filtered returns the user's collection narrowed by the request's filters,
// reloading first when refresh is set.
func (s *Server) filtered(r *http.Request, repo *repository.Repository, now time.Time) []core.Transaction {
	q := r.URL.Query()
	if boolParam(q, "refresh") {
		_ = repo.Load(r.Context())
	}
	return parseFilter(q).Apply(repo.Transactions(), now)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	repo := s.session(r.Context(), userID)
	now := s.clock()
	q := r.URL.Query()

	txs := s.filtered(r, repo, now)
	sorted := analytics.Sort(txs, analytics.ParseSortOrder(q.Get("sort")), now.Location())
	size := min(intParam(q, "page_size", s.pageSize), maxPageSize)

	writeJSON(w, http.StatusOK, transactionsResponse{
		state:   stateOf(repo),
		Page:    view.Paginate(sorted, intParam(q, "page", 1), size, now),
		Summary: analytics.Summarize(txs),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, userID string) {
	repo := s.session(r.Context(), userID)
	txs := s.filtered(r, repo, s.clock())
	writeJSON(w, http.StatusOK, summaryResponse{state: stateOf(repo), Summary: analytics.Summarize(txs)})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request, userID string) {
	repo := s.session(r.Context(), userID)
	now := s.clock()
	rng := analytics.ParseTimeRange(r.URL.Query().Get("range"))

	key := fmt.Sprintf("%s|%s|%s|%d", userID, rng, now.Format(core.DateLayout), repo.Version())
	data, ok := s.chartCache.Get(key)
	if !ok {
		txs := repo.Transactions()
		data = chartData{
			Chart:      analytics.BuildChart(txs, rng, now),
			Comparison: analytics.CompareMonths(txs, now),
		}
		s.chartCache.Set(key, data)
	}
	writeJSON(w, http.StatusOK, chartResponse{state: stateOf(repo), chartData: data})
}

// handleCategories serves the remote category list, falling back to the
// built-in catalogue when the remote side fails.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, userID string) {
	cats, err := s.backend.Categories(r.Context())
	if err != nil {
		log.FromContext(r.Context()).Failure(r.Context(), "Category list failed, serving defaults", "categories", err)
		writeJSON(w, http.StatusOK, categoriesResponse{
			state:      state{Degraded: true, Error: err.Error()},
			Categories: memory.DefaultCategories(),
		})
		return
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: cats})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	repo := s.session(r.Context(), userID)
	draft, err := decodeDraft(w, r, userID)
	if err != nil {
		writeError(w, r, log.OpAdd, stateOf(repo), err)
		return
	}

	created, err := repo.Add(r.Context(), draft)
	if err != nil {
		writeError(w, r, log.OpAdd, stateOf(repo), err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{
		state:       stateOf(repo),
		Transaction: created,
		Local:       localstore.IsLocalID(created.ID),
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	repo := s.session(r.Context(), userID)
	if err := repo.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpRemove, stateOf(repo), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request, userID string) {
	repo := s.session(r.Context(), userID)
	res, err := repo.Reconcile(r.Context())
	if err != nil {
		writeError(w, r, log.OpReconcile, stateOf(repo), err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{state: stateOf(repo), ReconcileResult: res})
}
