// Package analytics filters, sorts and aggregates transaction collections.
// Every function is pure: "now" is passed in and calendar windows are
// evaluated in now's location.
package analytics

import (
	"strings"
	"time"

	"ledger/internal/core"
)

// All disables a filter dimension.
const All = "all"

// DateRange selects a calendar window around now.
type DateRange string

const (
	RangeAll   DateRange = All
	RangeToday DateRange = "today"
	RangeWeek  DateRange = "week"
	RangeMonth DateRange = "month"
)

// ParseDateRange maps user input to a DateRange. Unknown values mean no
// restriction.
func ParseDateRange(s string) DateRange {
	switch r := DateRange(strings.ToLower(strings.TrimSpace(s))); r {
	case RangeToday, RangeWeek, RangeMonth:
		return r
	default:
		return RangeAll
	}
}

// Filter holds the optional restrictions. Zero values and "all" do not
// restrict; active restrictions are ANDed.
type Filter struct {
	Type      string
	Category  string
	DateRange DateRange
	Search    string
}

func active(v string) bool {
	return v != "" && v != All
}

// Match reports whether tx passes every active restriction. A transaction
// whose date does not parse fails an active date range and nothing else.
func (f Filter) Match(tx core.Transaction, now time.Time) bool {
	if active(f.Type) && string(tx.Type) != f.Type {
		return false
	}
	if active(f.Category) && tx.Category != f.Category {
		return false
	}
	if active(string(f.DateRange)) && !inDateRange(tx, f.DateRange, now) {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		if !strings.Contains(strings.ToLower(tx.Category), term) &&
			!strings.Contains(strings.ToLower(tx.Description), term) {
			return false
		}
	}
	return true
}

// Apply returns the matching transactions in their original order.
func (f Filter) Apply(txs []core.Transaction, now time.Time) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx, now) {
			out = append(out, tx)
		}
	}
	return out
}

func inDateRange(tx core.Transaction, r DateRange, now time.Time) bool {
	d, ok := tx.ParsedDate(now.Location())
	if !ok {
		return false
	}
	switch r {
	case RangeToday:
		return core.SameDay(d, now)
	case RangeWeek:
		return core.SameISOWeek(d, now)
	case RangeMonth:
		return core.SameMonth(d, now)
	default:
		return true
	}
}
