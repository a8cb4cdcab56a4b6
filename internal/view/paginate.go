// Package view slices a filtered and sorted collection into pages and groups
// each page by a relative date label.
package view

import (
	"slices"
	"time"

	"ledger/internal/core"
)

const DefaultPageSize = 10

// Labels that are not calendar months.
const (
	LabelToday       = "Today"
	LabelYesterday   = "Yesterday"
	LabelThisWeek    = "This week"
	LabelThisMonth   = "This month"
	LabelInvalidDate = "Invalid date"
)

type Group struct {
	Label string             `json:"label"`
	Items []core.Transaction `json:"items"`
}

type Page struct {
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
	TotalItems int     `json:"total_items"`
	Groups     []Group `json:"groups"`
}

// Label classifies a business date relative to now, in now's location.
// Older dates get their calendar month, e.g. "January 2024".
func Label(date string, now time.Time) string {
	d, ok := core.ParseDate(date, now.Location())
	if !ok {
		return LabelInvalidDate
	}
	return labelFor(d, now)
}

func labelFor(d, now time.Time) string {
	switch {
	case core.SameDay(d, now):
		return LabelToday
	case core.SameDay(d, core.StartOfDay(now).AddDate(0, 0, -1)):
		return LabelYesterday
	case core.SameISOWeek(d, now):
		return LabelThisWeek
	case core.SameMonth(d, now):
		return LabelThisMonth
	default:
		return d.Format("January 2006")
	}
}

// Paginate returns the 1-based page of txs. A page below 1 is treated as 1
// and a non-positive size as DefaultPageSize. Totals refer to the whole
// collection; a page past the end has no groups.
func Paginate(txs []core.Transaction, page, pageSize int, now time.Time) Page {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(txs)
	p := Page{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: (total + pageSize - 1) / pageSize,
		Groups:     []Group{},
	}

	start := (page - 1) * pageSize
	if start >= total {
		return p
	}
	end := min(start+pageSize, total)
	p.Groups = group(txs[start:end], now)
	return p
}

// Pages returns every page of txs in order.
func Pages(txs []core.Transaction, pageSize int, now time.Time) []Page {
	first := Paginate(txs, 1, pageSize, now)
	out := []Page{first}
	for n := 2; n <= first.TotalPages; n++ {
		out = append(out, Paginate(txs, n, pageSize, now))
	}
	return out
}

type pendingGroup struct {
	Group
	rep   time.Time
	valid bool
}

// group buckets items by label, keeping first-seen order inside a group,
// then orders groups by their first item's date, newest first. Groups of
// unparseable dates go last.
func group(items []core.Transaction, now time.Time) []Group {
	loc := now.Location()
	index := map[string]int{}
	var groups []pendingGroup
	for _, tx := range items {
		d, ok := core.ParseDate(tx.Date, loc)
		label := LabelInvalidDate
		if ok {
			label = labelFor(d, now)
		}
		i, seen := index[label]
		if !seen {
			i = len(groups)
			index[label] = i
			groups = append(groups, pendingGroup{Group: Group{Label: label}, rep: d, valid: ok})
		}
		groups[i].Items = append(groups[i].Items, tx)
	}

	slices.SortStableFunc(groups, func(a, b pendingGroup) int {
		switch {
		case a.valid && !b.valid:
			return -1
		case !a.valid && b.valid:
			return 1
		}
		return b.rep.Compare(a.rep)
	})

	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = g.Group
	}
	return out
}
