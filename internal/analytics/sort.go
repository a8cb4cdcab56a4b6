package analytics

import (
	"slices"
	"strings"
	"time"

	"ledger/internal/core"
)

// SortOrder names a sort key and direction.
type SortOrder string

const (
	SortNewest  SortOrder = "newest"
	SortOldest  SortOrder = "oldest"
	SortHighest SortOrder = "highest"
	SortLowest  SortOrder = "lowest"
)

// ParseSortOrder maps user input to a SortOrder, defaulting to newest.
func ParseSortOrder(s string) SortOrder {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case SortOldest, SortHighest, SortLowest:
		return o
	default:
		return SortNewest
	}
}

// Sort returns a sorted copy of txs. The sort is stable, so equal keys keep
// their input order. Date-only values are read as midnight in loc, the same
// calendar the filters and labels use; nil means UTC. Unparseable dates
// compare as the zero time.
func Sort(txs []core.Transaction, order SortOrder, loc *time.Location) []core.Transaction {
	out := slices.Clone(txs)
	if out == nil {
		out = []core.Transaction{}
	}

	switch order {
	case SortNewest, SortOldest:
		keys := make(map[string]time.Time, len(out))
		dateOf := func(tx core.Transaction) time.Time {
			if t, ok := keys[tx.Date]; ok {
				return t
			}
			t, _ := core.ParseDate(tx.Date, loc)
			keys[tx.Date] = t
			return t
		}
		slices.SortStableFunc(out, func(a, b core.Transaction) int {
			c := dateOf(a).Compare(dateOf(b))
			if order == SortNewest {
				return -c
			}
			return c
		})
	case SortHighest:
		slices.SortStableFunc(out, func(a, b core.Transaction) int {
			return b.Amount.Cmp(a.Amount)
		})
	case SortLowest:
		slices.SortStableFunc(out, func(a, b core.Transaction) int {
			return a.Amount.Cmp(b.Amount)
		})
	}
	return out
}
