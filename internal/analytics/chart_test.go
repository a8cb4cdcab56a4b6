package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func TestWindow(t *testing.T) {
	day := func(s string) time.Time {
		d, _ := core.ParseDate(s, time.UTC)
		return d
	}
	tests := []struct {
		r          TimeRange
		start, end time.Time
	}{
		{Range7Days, day("2024-03-08"), day("2024-03-14")},
		{Range30Days, day("2024-02-14"), day("2024-03-14")},
		{Range90Days, day("2023-12-16"), day("2024-03-14")},
		{RangeThisMonth, day("2024-03-01"), day("2024-03-31")},
		{RangeLastMonth, day("2024-02-01"), day("2024-02-29")},
		{RangeAllTime, time.Time{}, day("2024-03-14")},
	}
	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			start, end := Window(tt.r, now)
			assert.True(t, tt.start.Equal(start), "start %s", start)
			assert.True(t, tt.end.Equal(end), "end %s", end)
		})
	}
}

func TestBuildChart_SevenDays(t *testing.T) {
	txs := []core.Transaction{
		tx("a", core.Expense, "10", "Food", "2024-03-14"),
		tx("b", core.Expense, "5", "Food", "2024-03-14T08:00:00Z"),
		tx("c", core.Income, "100", "Salary", "2024-03-08"),
		tx("d", core.Expense, "99", "Food", "2024-03-07"),
		tx("e", core.Expense, "99", "Food", "2024-03-15"),
		tx("f", core.Expense, "99", "Food", "bad"),
	}
	c := BuildChart(txs, Range7Days, now)

	assert.Equal(t, "2024-03-08", c.Start)
	assert.Equal(t, "2024-03-14", c.End)
	require.Len(t, c.Buckets, 7)
	assert.Equal(t, "2024-03-08", c.Buckets[0].Date)
	assert.Equal(t, "2024-03-14", c.Buckets[6].Date)
	assertDec(t, "100", c.Buckets[0].Income)
	assertDec(t, "15", c.Buckets[6].Expense)
	for _, b := range c.Buckets[1:6] {
		assert.True(t, b.Income.IsZero() && b.Expense.IsZero(), b.Date)
	}
	assertDec(t, "100", c.TotalIncome)
	assertDec(t, "15", c.TotalExpense)
	require.Len(t, c.TopExpenseByTotal, 1)
	assertDec(t, "15", c.TopExpenseByTotal[0].Total)
}

func TestBuildChart_MonthRanges(t *testing.T) {
	assert.Len(t, BuildChart(nil, RangeThisMonth, now).Buckets, 31)
	last := BuildChart([]core.Transaction{tx("a", core.Expense, "1", "x", "2024-02-29")}, RangeLastMonth, now)
	require.Len(t, last.Buckets, 29)
	assertDec(t, "1", last.Buckets[28].Expense)
}

func TestBuildChart_AllHasOnlyUsedDays(t *testing.T) {
	txs := []core.Transaction{
		tx("a", core.Expense, "1", "x", "2024-03-01"),
		tx("b", core.Expense, "1", "x", "2019-06-01"),
		tx("c", core.Income, "1", "y", "2024-03-01"),
		tx("d", core.Income, "1", "y", "2030-01-01"),
	}
	c := BuildChart(txs, RangeAllTime, now)
	assert.Empty(t, c.Start)
	require.Len(t, c.Buckets, 2)
	assert.Equal(t, "2019-06-01", c.Buckets[0].Date)
	assert.Equal(t, "2024-03-01", c.Buckets[1].Date)
	assertDec(t, "1", c.TotalIncome, "future transactions are outside (-inf, today]")
}

func TestBuildChart_Empty(t *testing.T) {
	c := BuildChart(nil, RangeAllTime, now)
	assert.NotNil(t, c.Buckets)
	assert.Empty(t, c.Buckets)
	assert.Empty(t, c.TopExpenseByTotal)
	assert.True(t, c.TotalIncome.IsZero())
}

func TestBuildChart_TopFiveCategories(t *testing.T) {
	var txs []core.Transaction
	for i, cat := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		amount := []string{"10", "70", "30", "30", "50", "60", "5"}[i]
		txs = append(txs, tx(cat, core.Expense, amount, cat, "2024-03-10"))
	}
	c := BuildChart(txs, Range30Days, now)

	require.Len(t, c.TopExpenseByTotal, 5)
	var names []string
	for _, ct := range c.TopExpenseByTotal {
		names = append(names, ct.Category)
	}
	assert.Equal(t, []string{"b", "f", "e", "c", "d"}, names)
	assert.Empty(t, c.TopIncomeByTotal)
}

func TestCompareMonths(t *testing.T) {
	tests := []struct {
		name          string
		txs           []core.Transaction
		incomeGrowth  string
		expenseGrowth string
	}{
		{
			name:          "zero previous month is the 100 sentinel",
			txs:           []core.Transaction{tx("a", core.Expense, "500", "x", "2024-03-02")},
			incomeGrowth:  "100",
			expenseGrowth: "100",
		},
		{
			name: "ordinary growth and decline",
			txs: []core.Transaction{
				tx("a", core.Expense, "200", "x", "2024-02-10"),
				tx("b", core.Expense, "300", "x", "2024-03-10"),
				tx("c", core.Income, "400", "y", "2024-02-01"),
				tx("d", core.Income, "100", "y", "2024-03-01"),
				tx("e", core.Income, "999", "y", "2024-01-31"),
				tx("f", core.Income, "999", "y", "nope"),
			},
			incomeGrowth:  "-75",
			expenseGrowth: "50",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := CompareMonths(tt.txs, now)
			assertDec(t, tt.incomeGrowth, mc.IncomeGrowth)
			assertDec(t, tt.expenseGrowth, mc.ExpenseGrowth)
		})
	}
}

func TestCompareMonths_Totals(t *testing.T) {
	mc := CompareMonths(sample(), now)
	assertDec(t, "1080", mc.Current.Income)
	assertDec(t, "66.5", mc.Current.Expense)
	assertDec(t, "300", mc.Previous.Expense)
	assertDec(t, "-77.83", mc.ExpenseGrowth)
}
