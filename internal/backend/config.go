package backend

import (
	"errors"
	"fmt"

	"ledger/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	t := Type(appConfig.Backend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.Backend)
	}
	return Config{
		Type:                    t,
		APIURL:                  appConfig.APIURL,
		RemoteTimeout:           appConfig.RemoteTimeout,
		GoogleSpreadsheetID:     appConfig.GoogleSpreadsheetID,
		GoogleTransactionsSheet: appConfig.GoogleTransactionsSheet,
		GoogleCategoriesSheet:   appConfig.GoogleCategoriesSheet,
		CategoryCacheTTL:        appConfig.CategoryCacheTTL,
	}, nil
}

// Validate checks the settings the selected backend needs.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	switch c.Type {
	case HTTPBackend:
		if c.APIURL == "" {
			return errors.New("API URL is required for http backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets backend")
		}
	}
	return nil
}

// Types returns all valid backend types.
func Types() []Type {
	return []Type{HTTPBackend, SheetsBackend, MemoryBackend}
}
