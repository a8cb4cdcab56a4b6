package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"ledger/internal/analytics"
	"ledger/internal/core"
)

const (
	maxBodyBytes  = 1 << 20
	maxUserIDLen  = 128
	maxPageSize   = 500
	maxSearchTerm = 200
)

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withUser rejects requests without a usable X-User-ID header.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" || len(userID) > maxUserIDLen {
			writeJSON(w, http.StatusUnauthorized, state{Error: "missing or invalid " + HeaderUserID + " header"})
			return
		}
		next(w, r, userID)
	}
}

// parseFilter reads type, category, range and q.
func parseFilter(q url.Values) analytics.Filter {
	search := strings.TrimSpace(q.Get("q"))
	if utf8.RuneCountInString(search) > maxSearchTerm {
		search = string([]rune(search)[:maxSearchTerm])
	}
	return analytics.Filter{
		Type:      strings.ToLower(strings.TrimSpace(q.Get("type"))),
		Category:  strings.TrimSpace(q.Get("category")),
		DateRange: analytics.ParseDateRange(q.Get("range")),
		Search:    search,
	}
}

// intParam returns the positive integer under key, or def.
func intParam(q url.Values, key string, def int) int {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func boolParam(q url.Values, key string) bool {
	b, _ := strconv.ParseBool(q.Get(key))
	return b
}

// draftRequest accepts the amount as a JSON string or number.
type draftRequest struct {
	Amount        json.RawMessage `json:"amount"`
	Type          string          `json:"type"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Date          string          `json:"date"`
	UserID        string          `json:"user_id"`
	ReceiptImages []string        `json:"receipt_images"`
}

func decodeDraft(w http.ResponseWriter, r *http.Request, userID string) (core.Transaction, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: malformed body: %v", core.ErrValidation, err)
	}

	raw := strings.Trim(strings.TrimSpace(string(req.Amount)), `"`)
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return core.Transaction{}, err
	}

	owner := strings.TrimSpace(req.UserID)
	if owner == "" {
		owner = userID
	}
	return core.Transaction{
		UserID:        owner,
		Amount:        amount,
		Type:          core.TxType(strings.ToLower(strings.TrimSpace(req.Type))),
		Category:      strings.TrimSpace(req.Category),
		Description:   strings.TrimSpace(req.Description),
		Date:          strings.TrimSpace(req.Date),
		ReceiptImages: req.ReceiptImages,
	}, nil
}
