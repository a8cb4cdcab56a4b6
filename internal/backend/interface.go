// Package backend builds the remote gateway selected by configuration.
package backend

import (
	"context"
	"time"

	"ledger/internal/cache"
	"ledger/internal/gateway"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result is a ready gateway plus what the caller must manage around it.
type Result struct {
	Backend gateway.Backend
	Cleanup CleanupFunc
	// Caches holds caches that should be registered with a cache.Manager.
	Caches []cache.Cleaner
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type Type

	// REST API
	APIURL        string
	RemoteTimeout time.Duration

	// Google Sheets
	GoogleSpreadsheetID     string
	GoogleTransactionsSheet string
	GoogleCategoriesSheet   string

	CategoryCacheTTL time.Duration
}

// Type names a gateway implementation.
type Type string

const (
	HTTPBackend   Type = "http"
	SheetsBackend Type = "sheets"
	MemoryBackend Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case HTTPBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
