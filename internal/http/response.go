package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/repository"
)

// state mirrors the repository condition in every JSON body.
type state struct {
	Degraded bool   `json:"degraded"`
	Error    string `json:"error"`
}

func stateOf(repo *repository.Repository) state {
	st := state{Degraded: repo.Degraded()}
	if err := repo.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports a failed operation. Validation problems are the
// caller's fault; anything else means both remote and local paths failed.
func writeError(w http.ResponseWriter, r *http.Request, op string, st state, err error) {
	st.Error = err.Error()
	switch {
	case errors.Is(err, core.ErrValidation):
		writeJSON(w, http.StatusBadRequest, st)
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, st)
	default:
		log.FromContext(r.Context()).Failure(r.Context(), "Request failed", op, err)
		st.Degraded = true
		writeJSON(w, http.StatusServiceUnavailable, st)
	}
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, state{Error: "rate limit exceeded"})
}
