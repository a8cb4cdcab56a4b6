package analytics

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// TimeRange selects the chart window.
type TimeRange string

const (
	Range7Days     TimeRange = "7days"
	Range30Days    TimeRange = "30days"
	Range90Days    TimeRange = "90days"
	RangeThisMonth TimeRange = "thisMonth"
	RangeLastMonth TimeRange = "lastMonth"
	RangeAllTime   TimeRange = "all"
)

const topCategories = 5

// ParseTimeRange maps user input to a TimeRange, defaulting to 30 days.
func ParseTimeRange(s string) TimeRange {
	s = strings.TrimSpace(s)
	for _, r := range []TimeRange{Range7Days, Range30Days, Range90Days, RangeThisMonth, RangeLastMonth, RangeAllTime} {
		if strings.EqualFold(s, string(r)) {
			return r
		}
	}
	return Range30Days
}

// Bucket holds one calendar day's totals.
type Bucket struct {
	Date    string          `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// Chart is the time-bucketed view of a collection. Start is empty for the
// open-ended "all" range.
type Chart struct {
	Range             TimeRange       `json:"range"`
	Start             string          `json:"start,omitempty"`
	End               string          `json:"end"`
	Buckets           []Bucket        `json:"buckets"`
	TotalIncome       decimal.Decimal `json:"total_income"`
	TotalExpense      decimal.Decimal `json:"total_expense"`
	TopExpenseByTotal []CategoryTotal `json:"top_expense_categories"`
	TopIncomeByTotal  []CategoryTotal `json:"top_income_categories"`
}

// Window resolves r to inclusive day bounds in now's location. For the "all"
// range the start is the zero time.
func Window(r TimeRange, now time.Time) (start, end time.Time) {
	today := core.StartOfDay(now)
	switch r {
	case Range7Days:
		return today.AddDate(0, 0, -6), today
	case Range30Days:
		return today.AddDate(0, 0, -29), today
	case Range90Days:
		return today.AddDate(0, 0, -89), today
	case RangeThisMonth:
		return core.MonthBounds(today)
	case RangeLastMonth:
		first, _ := core.MonthBounds(today)
		return core.MonthBounds(first.AddDate(0, 0, -1))
	default:
		return time.Time{}, today
	}
}

// BuildChart buckets txs per day inside the window selected by r. Every day
// of a bounded window gets a bucket even when empty; the "all" range only
// has buckets for days with transactions. Transactions with unparseable
// dates are skipped.
func BuildChart(txs []core.Transaction, r TimeRange, now time.Time) Chart {
	loc := now.Location()
	start, end := Window(r, now)
	chart := Chart{Range: r, End: end.Format(core.DateLayout), Buckets: []Bucket{}}

	buckets := map[string]*Bucket{}
	if !start.IsZero() {
		chart.Start = start.Format(core.DateLayout)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			key := d.Format(core.DateLayout)
			buckets[key] = &Bucket{Date: key}
		}
	}

	incomeByCat := map[string]decimal.Decimal{}
	expenseByCat := map[string]decimal.Decimal{}
	for _, tx := range txs {
		t, ok := tx.ParsedDate(loc)
		if !ok {
			continue
		}
		day := core.StartOfDay(t)
		if day.After(end) || (!start.IsZero() && day.Before(start)) {
			continue
		}
		key := day.Format(core.DateLayout)
		b, ok := buckets[key]
		if !ok {
			b = &Bucket{Date: key}
			buckets[key] = b
		}
		switch tx.Type {
		case core.Income:
			b.Income = b.Income.Add(tx.Amount)
			incomeByCat[tx.Category] = incomeByCat[tx.Category].Add(tx.Amount)
			chart.TotalIncome = chart.TotalIncome.Add(tx.Amount)
		case core.Expense:
			b.Expense = b.Expense.Add(tx.Amount)
			expenseByCat[tx.Category] = expenseByCat[tx.Category].Add(tx.Amount)
			chart.TotalExpense = chart.TotalExpense.Add(tx.Amount)
		}
	}

	for _, b := range buckets {
		chart.Buckets = append(chart.Buckets, *b)
	}
	slices.SortFunc(chart.Buckets, func(a, b Bucket) int { return strings.Compare(a.Date, b.Date) })
	chart.TopExpenseByTotal = topN(expenseByCat, topCategories)
	chart.TopIncomeByTotal = topN(incomeByCat, topCategories)
	return chart
}

// topN orders categories by total descending, then by name.
func topN(totals map[string]decimal.Decimal, n int) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(totals))
	for name, total := range totals {
		out = append(out, CategoryTotal{Category: name, Total: total})
	}
	slices.SortFunc(out, func(a, b CategoryTotal) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// PeriodTotals are the income and expense sums of one month.
type PeriodTotals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// MonthComparison compares the current calendar month with the previous one.
type MonthComparison struct {
	Current       PeriodTotals    `json:"current"`
	Previous      PeriodTotals    `json:"previous"`
	IncomeGrowth  decimal.Decimal `json:"income_growth"`
	ExpenseGrowth decimal.Decimal `json:"expense_growth"`
}

// CompareMonths computes month-over-month totals independent of any chart
// range. Growth is (current-previous)/previous*100, and 100 whenever the
// previous total is zero.
func CompareMonths(txs []core.Transaction, now time.Time) MonthComparison {
	loc := now.Location()
	first, _ := core.MonthBounds(now)
	prevMonth := first.AddDate(0, -1, 0)

	var mc MonthComparison
	for _, tx := range txs {
		t, ok := tx.ParsedDate(loc)
		if !ok {
			continue
		}
		var p *PeriodTotals
		switch {
		case core.SameMonth(t, now):
			p = &mc.Current
		case core.SameMonth(t, prevMonth):
			p = &mc.Previous
		default:
			continue
		}
		switch tx.Type {
		case core.Income:
			p.Income = p.Income.Add(tx.Amount)
		case core.Expense:
			p.Expense = p.Expense.Add(tx.Amount)
		}
	}
	mc.IncomeGrowth = growth(mc.Current.Income, mc.Previous.Income)
	mc.ExpenseGrowth = growth(mc.Current.Expense, mc.Previous.Expense)
	return mc
}

func growth(cur, prev decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		return hundred
	}
	return cur.Sub(prev).Div(prev).Mul(hundred).Round(2)
}
