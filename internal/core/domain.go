package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

type (
	// TxType carries the direction of a transaction. Amounts are always
	// magnitudes; income adds to the balance and expense subtracts from it.
	TxType string

	Transaction struct {
		ID            string          `json:"id"`
		UserID        string          `json:"user_id"`
		Amount        decimal.Decimal `json:"amount"`
		Type          TxType          `json:"type"`
		Category      string          `json:"category"`
		Description   string          `json:"description,omitempty"`
		Date          string          `json:"date"`
		CreatedAt     string          `json:"created_at,omitempty"`
		ReceiptImages []string        `json:"receipt_images,omitempty"`
	}

	Category struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name"`
		Type TxType `json:"type"`
	}
)

var (
	ErrValidation        = errors.New("validation error")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrLocalStorage      = errors.New("local storage unavailable")
	ErrNotFound          = errors.New("not found")

	ErrMissingUser     = fmt.Errorf("%w: missing user_id", ErrValidation)
	ErrInvalidType     = fmt.Errorf("%w: type must be income or expense", ErrValidation)
	ErrNegativeAmount  = fmt.Errorf("%w: amount must not be negative", ErrValidation)
	ErrEmptyCategory   = fmt.Errorf("%w: empty category", ErrValidation)
	ErrDescriptionSize = fmt.Errorf("%w: description too long (max 500 characters)", ErrValidation)
)

// Valid reports whether t is one of the known transaction types.
func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

func (t TxType) String() string {
	return string(t)
}

// Validate checks the fields that must hold before any persistence attempt.
// The business date is not checked: unparseable dates are tolerated and
// excluded later by date-bounded computations.
func (tx Transaction) Validate() error {
	if strings.TrimSpace(tx.UserID) == "" {
		return ErrMissingUser
	}
	if !tx.Type.Valid() {
		return ErrInvalidType
	}
	if tx.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if len(tx.Description) > 500 {
		return ErrDescriptionSize
	}
	return nil
}

// ParsedDate parses the business date in loc.
func (tx Transaction) ParsedDate(loc *time.Location) (time.Time, bool) {
	return ParseDate(tx.Date, loc)
}

// Signed returns the amount with the direction applied.
func (tx Transaction) Signed() decimal.Decimal {
	if tx.Type == Expense {
		return tx.Amount.Neg()
	}
	return tx.Amount
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}
