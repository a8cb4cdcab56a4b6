package analytics

import (
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Summary aggregates a filtered collection.
type Summary struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Balance      decimal.Decimal `json:"balance"`
	Count        int             `json:"count"`
	// SavingsRate is the share of income kept, in percent. It is 0 when
	// there is no income.
	SavingsRate decimal.Decimal `json:"savings_rate"`
}

func Summarize(txs []core.Transaction) Summary {
	s := Summary{Count: len(txs)}
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case core.Expense:
			s.TotalExpense = s.TotalExpense.Add(tx.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	if s.TotalIncome.IsPositive() {
		s.SavingsRate = s.Balance.Div(s.TotalIncome).Mul(hundred).Round(2)
	}
	return s
}
