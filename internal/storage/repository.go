package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// SQLiteRepository is the server-side source of truth behind the ledger API.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListTransactions returns the user's transactions, most recent business date first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, type, category, description, date, created_at, receipt_images
		FROM transactions
		WHERE user_id = ?
		ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// CreateTransaction assigns a server id and creation time and stores the record.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	tx.ID = uuid.NewString()
	if tx.CreatedAt == "" {
		tx.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	receipts, err := json.Marshal(nonNil(tx.ReceiptImages))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("encode receipt images: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, amount, type, category, description, date, created_at, receipt_images)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Amount.String(), string(tx.Type), tx.Category, tx.Description, tx.Date, tx.CreatedAt, string(receipts))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"user_id", tx.UserID,
		"type", tx.Type,
		"amount", tx.Amount.String())

	return tx, nil
}

// DeleteTransaction removes a transaction owned by userID. It returns
// core.ErrNotFound when nothing matched.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// ListCategories returns all categories ordered by type then name.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, type FROM categories ORDER BY type, name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &typ); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TxType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory adds a category; duplicates of (name, type) are rejected by the schema.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID = uuid.NewString()
	if _, err := r.db.ExecContext(ctx, `INSERT INTO categories (id, name, type) VALUES (?, ?, ?)`, c.ID, c.Name, string(c.Type)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.Category{}, fmt.Errorf("%w: category %q already exists", core.ErrValidation, c.Name)
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx       core.Transaction
		amount   string
		typ      string
		receipts string
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &amount, &typ, &tx.Category, &tx.Description, &tx.Date, &tx.CreatedAt, &receipts); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q of %s: %w", amount, tx.ID, err)
	}
	tx.Amount = d
	tx.Type = core.TxType(typ)
	if receipts != "" && receipts != "[]" {
		if err := json.Unmarshal([]byte(receipts), &tx.ReceiptImages); err != nil {
			slog.Warn("Ignoring malformed receipt images", "id", tx.ID, "error", err)
			tx.ReceiptImages = nil
		}
	}
	return tx, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
