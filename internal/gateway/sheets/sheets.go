// Package sheets stores transactions in a Google Sheets spreadsheet, one row
// per transaction.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/gateway"
	"ledger/internal/log"
)

const categoriesKey = "categories"

// Config names the spreadsheet and its tabs.
type Config struct {
	SpreadsheetID     string
	TransactionsSheet string
	CategoriesSheet   string
	CategoryCacheTTL  time.Duration
}

type Client struct {
	svc        *gsheet.Service
	cfg        Config
	categories *cache.LRUCache[[]core.Category]
	logger     *log.Logger
	now        func() time.Time
}

var _ gateway.Backend = (*Client)(nil)

// New creates a client authenticated with service account credentials taken
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	creds, err := serviceAccountJSON()
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, cfg, logger,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions creates a client with explicit API options, for example a
// custom endpoint.
func NewWithOptions(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.TransactionsSheet == "" {
		cfg.TransactionsSheet = "Transactions"
	}
	if cfg.CategoriesSheet == "" {
		cfg.CategoriesSheet = "Categories"
	}
	if cfg.CategoryCacheTTL <= 0 {
		cfg.CategoryCacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = log.Default(log.ComponentSheets)
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", cfg.SpreadsheetID,
		"transactions_sheet", cfg.TransactionsSheet)

	return &Client{
		svc:        svc,
		cfg:        cfg,
		categories: cache.NewLRUCache[[]core.Category](1, cfg.CategoryCacheTTL),
		logger:     logger,
		now:        time.Now,
	}, nil
}

func serviceAccountJSON() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// CategoryCache exposes the category cache so it can be registered for cleanup.
func (c *Client) CategoryCache() *cache.LRUCache[[]core.Category] {
	return c.categories
}

func (c *Client) txRange() string {
	return fmt.Sprintf("%s!A:I", c.cfg.TransactionsSheet)
}

func (c *Client) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.cfg.SpreadsheetID, c.txRange()).Context(ctx).Do()
	if err != nil {
		return nil, remoteErr("list", err)
	}

	out := make([]core.Transaction, 0)
	for _, row := range resp.Values {
		tx, ok := parseTransactionRow(row)
		if !ok || tx.UserID != userID {
			continue
		}
		out = append(out, tx)
	}
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		if c := strings.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return strings.Compare(b.CreatedAt, a.CreatedAt)
	})
	return out, nil
}

// Create appends a row. The spreadsheet has no id column generator, so the
// id is assigned here.
func (c *Client) Create(ctx context.Context, draft core.Transaction) (core.Transaction, error) {
	if err := draft.Validate(); err != nil {
		return core.Transaction{}, &gateway.Error{Op: "create", StatusCode: 400, Err: err}
	}
	draft.ID = uuid.NewString()
	draft.CreatedAt = c.now().UTC().Format(time.RFC3339)

	vr := &gsheet.ValueRange{Values: [][]any{formatTransactionRow(draft)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.cfg.SpreadsheetID, c.txRange(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return core.Transaction{}, remoteErr("create", err)
	}
	c.logger.InfoContext(ctx, "Transaction appended to sheet",
		log.FieldTxID, draft.ID, log.FieldUserID, draft.UserID)
	return draft, nil
}

// Delete removes the row holding id when it belongs to userID.
func (c *Client) Delete(ctx context.Context, id, userID string) error {
	resp, err := c.svc.Spreadsheets.Values.Get(c.cfg.SpreadsheetID, c.txRange()).Context(ctx).Do()
	if err != nil {
		return remoteErr("delete", err)
	}
	rowIndex := findRow(resp.Values, id, userID)
	if rowIndex < 0 {
		return &gateway.Error{Op: "delete", StatusCode: 404, Err: core.ErrNotFound}
	}

	sheetID, err := c.sheetID(ctx, c.cfg.TransactionsSheet)
	if err != nil {
		return remoteErr("delete", err)
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex),
					EndIndex:   int64(rowIndex + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.cfg.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return remoteErr("delete", err)
	}
	return nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.cfg.SpreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}

// Categories reads the categories tab (name, type), served from cache while fresh.
func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	if cached, ok := c.categories.Get(categoriesKey); ok {
		return cached, nil
	}
	rng := fmt.Sprintf("%s!A:B", c.cfg.CategoriesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.cfg.SpreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, remoteErr("categories", err)
	}
	cats := parseCategoryRows(resp.Values)
	c.categories.Set(categoriesKey, cats)
	return cats, nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.svc.Spreadsheets.Get(c.cfg.SpreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return remoteErr("ping", err)
	}
	return nil
}

func remoteErr(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &gateway.Error{Op: op, StatusCode: apiErr.Code, Err: err}
	}
	return &gateway.Error{Op: op, Err: err}
}
