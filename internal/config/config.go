package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP servers
	Port    string
	APIPort string

	// Remote gateway
	Backend       string
	APIURL        string
	RemoteTimeout time.Duration

	// Local cache store
	LocalDBPath     string
	LocalStorageKey string

	// Remote backend storage (ledger-api)
	ServerDBPath string

	// AMQP change events (optional)
	AMQPURL      string
	AMQPExchange string

	// Google Sheets backend
	GoogleSpreadsheetID     string
	GoogleTransactionsSheet string
	GoogleCategoriesSheet   string

	// Worker and view
	ReconcileInterval  time.Duration
	PageSize           int
	CategoryCacheTTL   time.Duration
	SessionIdleTimeout time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:    getEnv("PORT", "8080"),
		APIPort: getEnv("API_PORT", "8090"),

		Backend:       getEnv("LEDGER_BACKEND", "http"),
		APIURL:        getEnv("LEDGER_API_URL", "http://localhost:8090"),
		RemoteTimeout: getEnvDuration("REMOTE_TIMEOUT", 10*time.Second),

		LocalDBPath:     getEnv("LOCAL_DB_PATH", "./data/local.db"),
		LocalStorageKey: getEnv("LOCAL_STORAGE_KEY", "ledger.transactions"),

		ServerDBPath: getEnv("SERVER_DB_PATH", "./data/ledger.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger"),

		GoogleSpreadsheetID:     getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleTransactionsSheet: getEnv("GOOGLE_TRANSACTIONS_SHEET", "Transactions"),
		GoogleCategoriesSheet:   getEnv("GOOGLE_CATEGORIES_SHEET", "Categories"),

		ReconcileInterval:  getEnvDuration("RECONCILE_INTERVAL", 30*time.Second),
		PageSize:           getEnvInt("PAGE_SIZE", 10),
		CategoryCacheTTL:   getEnvDuration("CATEGORY_CACHE_TTL", 5*time.Minute),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error listing every problem found
func (c *Config) Validate() error {
	var errors []string

	for name, port := range map[string]string{"port": c.Port, "api port": c.APIPort} {
		if p, err := strconv.Atoi(port); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be a number", name, port))
		} else if p < 1 || p > 65535 {
			errors = append(errors, fmt.Sprintf("invalid %s %d: must be between 1 and 65535", name, p))
		}
	}

	validBackends := []string{"http", "sheets", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.Backend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid backend '%s': must be one of %v", c.Backend, validBackends))
	}

	if c.Backend == "http" {
		if u, err := url.Parse(c.APIURL); err != nil || c.APIURL == "" {
			errors = append(errors, fmt.Sprintf("invalid ledger API URL '%s'", c.APIURL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid ledger API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	}

	if c.Backend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleTransactionsSheet == "" {
			errors = append(errors, "Google transactions sheet name is required when using sheets backend")
		}
	}

	if c.RemoteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid remote timeout %v: must be positive", c.RemoteTimeout))
	}

	if c.LocalDBPath != "" {
		dir := filepath.Dir(c.LocalDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create local database directory '%s': %v", dir, err))
				}
			}
		}
	}
	if strings.TrimSpace(c.LocalStorageKey) == "" {
		errors = append(errors, "local storage key cannot be empty")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ReconcileInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at least 1 second", c.ReconcileInterval))
	} else if c.ReconcileInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at most 24 hours", c.ReconcileInterval))
	}

	if c.SessionIdleTimeout < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session idle timeout %v: must be at least 1 minute", c.SessionIdleTimeout))
	}

	if c.PageSize < 1 || c.PageSize > 500 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 500", c.PageSize))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
