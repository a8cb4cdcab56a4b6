package backend

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/gateway/httpapi"
	"ledger/internal/gateway/memory"
	"ledger/internal/gateway/sheets"
	"ledger/internal/log"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ttl := config.CategoryCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	switch config.Type {
	case HTTPBackend:
		return f.createHTTPBackend(config, ttl)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config, ttl)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createHTTPBackend(config Config, ttl time.Duration) (*Result, error) {
	cats := cache.NewLRUCache[[]core.Category](1, ttl)
	cli, err := httpapi.New(config.APIURL, config.RemoteTimeout,
		httpapi.WithLogger(f.logger.WithComponent(log.ComponentGateway)),
		httpapi.WithCategoryCache(cats))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}

	f.logger.Info("Initialized HTTP backend", "api_url", config.APIURL, "timeout", config.RemoteTimeout)
	return &Result{Backend: cli, Caches: []cache.Cleaner{cats}}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config, ttl time.Duration) (*Result, error) {
	cli, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:     config.GoogleSpreadsheetID,
		TransactionsSheet: config.GoogleTransactionsSheet,
		CategoriesSheet:   config.GoogleCategoriesSheet,
		CategoryCacheTTL:  ttl,
	}, f.logger.WithComponent(log.ComponentSheets))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return &Result{Backend: cli, Caches: []cache.Cleaner{cli.CategoryCache()}}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*Result, error) {
	f.logger.Info("Initialized memory backend")
	return &Result{Backend: memory.New(nil)}, nil
}
