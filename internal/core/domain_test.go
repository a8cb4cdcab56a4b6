package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		UserID:   "u1",
		Amount:   decimal.NewFromInt(100),
		Type:     Expense,
		Category: "food",
		Date:     "2024-01-01",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	// Unparseable dates are tolerated at this layer.
	odd := good
	odd.Date = "not a date"
	if err := odd.Validate(); err != nil {
		t.Fatalf("expected ok for odd date, got %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Transaction)
		want error
	}{
		{"missing user", func(tx *Transaction) { tx.UserID = "  " }, ErrMissingUser},
		{"bad type", func(tx *Transaction) { tx.Type = "transfer" }, ErrInvalidType},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-1) }, ErrNegativeAmount},
	}
	for _, tc := range cases {
		tx := good
		tc.mut(&tx)
		err := tx.Validate()
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected validation kind, got %v", tc.name, err)
		}
	}
}

func TestSigned(t *testing.T) {
	in := Transaction{Amount: decimal.NewFromInt(5), Type: Income}
	out := Transaction{Amount: decimal.NewFromInt(5), Type: Expense}
	if !in.Signed().Equal(decimal.NewFromInt(5)) {
		t.Fatalf("income signed = %s", in.Signed())
	}
	if !out.Signed().Equal(decimal.NewFromInt(-5)) {
		t.Fatalf("expense signed = %s", out.Signed())
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
		d  int
	}{
		{"2024-01-15", true, 15},
		{"2024-01-15T10:30:00Z", true, 15},
		{"2024-01-15T10:30:00.123Z", true, 15},
		{" 2024-02-29 ", true, 29},
		{"2023-02-29", false, 0},
		{"15/01/2024", false, 0},
		{"", false, 0},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.in, time.UTC)
		if ok != tc.ok {
			t.Fatalf("%q: ok=%v want %v", tc.in, ok, tc.ok)
		}
		if ok && got.Day() != tc.d {
			t.Fatalf("%q: day=%d want %d", tc.in, got.Day(), tc.d)
		}
	}
}

func TestCalendarHelpers(t *testing.T) {
	// 2024-01-01 is a Monday; 2023-12-31 is the Sunday before.
	mon := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	sun := time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)
	sunAfter := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	if SameISOWeek(mon, sun) {
		t.Fatalf("expected different ISO weeks")
	}
	if !SameISOWeek(mon, sunAfter) {
		t.Fatalf("expected same ISO week")
	}
	if SameMonth(mon, sun) {
		t.Fatalf("expected different months")
	}
	first, last := MonthBounds(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	if first.Day() != 1 || last.Day() != 29 {
		t.Fatalf("unexpected bounds %v %v", first, last)
	}
}
