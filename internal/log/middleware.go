package log

import (
	"context"
	"net/http"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return Default("unknown")
}

// Middleware puts a request-scoped logger into the context and logs request completion.
func Middleware(logger *Logger, requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger
			if requestID != nil {
				reqLogger = logger.With(FieldRequestID, requestID(r))
			}
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(WithContext(r.Context(), reqLogger)))

			fields := NewFields().WithHTTP(r.Method, r.URL.Path, rw.status, time.Since(start).Milliseconds())
			switch {
			case rw.status >= 500:
				reqLogger.ErrorContext(r.Context(), "Request completed", fields.ToSlice()...)
			case rw.status >= 400:
				reqLogger.WarnContext(r.Context(), "Request completed", fields.ToSlice()...)
			default:
				reqLogger.InfoContext(r.Context(), "Request completed", fields.ToSlice()...)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
