package sheets

import (
	"fmt"
	"strings"

	"ledger/internal/core"
)

// Column order of the transactions tab.
const (
	colID = iota
	colUserID
	colDate
	colType
	colCategory
	colAmount
	colDescription
	colCreatedAt
	colReceipts
	numColumns
)

const receiptSep = "|"

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseTransactionRow converts one sheet row. Header rows, rows without an id
// or owner, and rows with an unusable type or amount are rejected. The date is
// kept verbatim.
func parseTransactionRow(row []any) (core.Transaction, bool) {
	cols := toStrings(row)
	id := safeGet(cols, colID)
	user := safeGet(cols, colUserID)
	if id == "" || user == "" || strings.EqualFold(id, "id") || strings.HasPrefix(id, "#") {
		return core.Transaction{}, false
	}
	typ := core.TxType(strings.ToLower(safeGet(cols, colType)))
	if !typ.Valid() {
		return core.Transaction{}, false
	}
	amount, err := core.ParseAmount(safeGet(cols, colAmount))
	if err != nil {
		return core.Transaction{}, false
	}

	tx := core.Transaction{
		ID:          id,
		UserID:      user,
		Date:        safeGet(cols, colDate),
		Type:        typ,
		Category:    safeGet(cols, colCategory),
		Amount:      amount,
		Description: safeGet(cols, colDescription),
		CreatedAt:   safeGet(cols, colCreatedAt),
	}
	if receipts := safeGet(cols, colReceipts); receipts != "" {
		for _, r := range strings.Split(receipts, receiptSep) {
			if r = strings.TrimSpace(r); r != "" {
				tx.ReceiptImages = append(tx.ReceiptImages, r)
			}
		}
	}
	return tx, true
}

func formatTransactionRow(tx core.Transaction) []any {
	row := make([]any, numColumns)
	row[colID] = tx.ID
	row[colUserID] = tx.UserID
	row[colDate] = tx.Date
	row[colType] = tx.Type.String()
	row[colCategory] = tx.Category
	row[colAmount] = core.FormatAmount(tx.Amount)
	row[colDescription] = tx.Description
	row[colCreatedAt] = tx.CreatedAt
	row[colReceipts] = strings.Join(tx.ReceiptImages, receiptSep)
	return row
}

// findRow returns the zero-based row index of id owned by userID, or -1.
func findRow(values [][]any, id, userID string) int {
	for i, row := range values {
		cols := toStrings(row)
		if safeGet(cols, colID) == id && safeGet(cols, colUserID) == userID {
			return i
		}
	}
	return -1
}

// parseCategoryRows reads (name, type) pairs. Blank, commented, header and
// duplicate rows are skipped; first occurrence wins.
func parseCategoryRows(values [][]any) []core.Category {
	seen := map[core.Category]struct{}{}
	out := make([]core.Category, 0, len(values))
	for _, row := range values {
		cols := toStrings(row)
		c := core.Category{
			Name: safeGet(cols, 0),
			Type: core.TxType(strings.ToLower(safeGet(cols, 1))),
		}
		if strings.HasPrefix(c.Name, "#") || c.Validate() != nil {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
