package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/gateway"
	"ledger/internal/log"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, time.Second, WithLogger(log.Discard()))
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", time.Second)
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u1", r.URL.Query().Get("user_id"))
		_, _ = w.Write([]byte(`[{"id":"t1","user_id":"u1","amount":"12.50","type":"expense","category":"food","date":"2024-03-01"}]`))
	})
	c := newTestClient(t, mux)

	got, err := c.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("12.5")))
}

func TestList_NullBodyIsEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	got, err := c.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCreate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		var draft core.Transaction
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		draft.ID = "srv-1"
		draft.CreatedAt = "2024-03-01T10:00:00Z"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(draft)
	})
	c := newTestClient(t, mux)

	got, err := c.Create(context.Background(), core.Transaction{
		UserID: "u1", Amount: decimal.NewFromInt(5), Type: core.Income, Category: "salary", Date: "2024-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", got.ID)
	assert.Equal(t, core.Income, got.Type)
}

func TestDelete(t *testing.T) {
	var hit atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
		assert.Equal(t, "t 1", r.PathValue("id"))
		assert.Equal(t, "u1", r.URL.Query().Get("user_id"))
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux)

	require.NoError(t, c.Delete(context.Background(), "t 1", "u1"))
	assert.True(t, hit.Load())
}

func TestErrorsAreRemote(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		msg    string
	}{
		{"server error json", http.StatusInternalServerError, `{"error":"boom"}`, "boom"},
		{"plain text", http.StatusBadGateway, "upstream down", "upstream down"},
		{"not found", http.StatusNotFound, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			err := c.Delete(context.Background(), "x", "u1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrRemoteUnavailable))
			assert.Equal(t, tt.status, gateway.StatusCode(err))
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestTransportFailureIsRemote(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, time.Second, WithLogger(log.Discard()))
	require.NoError(t, err)
	_, err = c.List(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, gateway.IsRemote(err))
	assert.Zero(t, gateway.StatusCode(err))
}

func TestDecodeFailureIsRemote(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	_, err := c.List(context.Background(), "u1")
	assert.True(t, errors.Is(err, core.ErrRemoteUnavailable))
}

func TestCategoriesAreCached(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/categories", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[{"name":"food","type":"expense"},{"name":"salary","type":"income"}]`))
	})
	c := newTestClient(t, mux)

	for range 3 {
		got, err := c.Categories(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 2)
	}
	assert.Equal(t, int32(1), calls.Load())

	c.CategoryCache().Delete(categoriesKey)
	_, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestContextCancelled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.List(ctx, "u1")
	require.Error(t, err)
	assert.True(t, gateway.IsRemote(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
