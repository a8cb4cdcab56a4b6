// Package gateway defines the outbound ports towards the remote transaction
// store and the error type shared by every implementation.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/core"
)

// Ports for outbound adapters.
type (
	// Gateway is the remote source of truth for a user's transactions.
	// Implementations never retry.
	Gateway interface {
		List(ctx context.Context, userID string) ([]core.Transaction, error)
		Create(ctx context.Context, draft core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, id, userID string) error
	}

	CategoryLister interface {
		Categories(ctx context.Context) ([]core.Category, error)
	}

	// Backend is what the factory hands out: both ports plus a health check.
	Backend interface {
		Gateway
		CategoryLister
		Ping(ctx context.Context) error
	}
)

// Error reports a failed remote call, either a transport failure or a
// non-2xx response. It matches core.ErrRemoteUnavailable with errors.Is.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: remote returned %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: remote returned %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": remote unavailable"
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{core.ErrRemoteUnavailable}
	}
	return []error{core.ErrRemoteUnavailable, e.Err}
}

// Wrap returns err as a *Error for op, keeping it unchanged when it already is one.
func Wrap(op string, status int, err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Op: op, StatusCode: status, Err: err}
}

// IsRemote reports whether err came from a remote call.
func IsRemote(err error) bool {
	var ge *Error
	return errors.As(err, &ge)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.StatusCode
	}
	return 0
}
