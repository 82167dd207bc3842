// Package report turns a balance and a monthly summary into the text shown to the user.
package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/susu3304/finbot/internal/db"
)

// LowSavingsThreshold is the savings ratio below which the report carries advice.
var LowSavingsThreshold = decimal.NewFromFloat(0.20)

const LowSavingsAdvice = "Try cutting back on entertainment and eating out."

type Line struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

type Report struct {
	Balance  decimal.Decimal `json:"balance"`
	Income   []Line          `json:"income"`
	Expenses []Line          `json:"expenses"`

	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`

	// SavingsRatio is nil unless there was income this month.
	SavingsRatio *decimal.Decimal `json:"savings_ratio,omitempty"`
	LowSavings   bool             `json:"low_savings"`
	Advice       string           `json:"advice,omitempty"`
}

// Empty reports whether there were no transactions this month.
func (r Report) Empty() bool {
	return len(r.Income) == 0 && len(r.Expenses) == 0
}

// Build groups rows by kind, in the order given, and derives the savings figures.
func Build(balance decimal.Decimal, rows []db.SummaryRow) Report {
	r := Report{
		Balance:       balance,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}

	for _, row := range rows {
		line := Line{Category: row.Category, Total: row.Total}
		switch row.Kind {
		case db.KindIncome:
			r.Income = append(r.Income, line)
			r.TotalIncome = r.TotalIncome.Add(row.Total)
		case db.KindExpense:
			r.Expenses = append(r.Expenses, line)
			r.TotalExpenses = r.TotalExpenses.Add(row.Total)
		}
	}

	if r.TotalIncome.IsPositive() {
		ratio := r.TotalIncome.Sub(r.TotalExpenses).Div(r.TotalIncome)
		r.SavingsRatio = &ratio
		if ratio.LessThan(LowSavingsThreshold) {
			r.LowSavings = true
			r.Advice = LowSavingsAdvice
		}
	}

	return r
}

// Money formats an amount with two decimals and the currency symbol.
func Money(amount decimal.Decimal, symbol string) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(2), symbol)
}

// Render produces the HTML chat message for r.
func Render(r Report, symbol string) string {
	symbol = html.EscapeString(symbol)

	if r.Empty() {
		return fmt.Sprintf("💼 Your current balance: <b>%s</b>\nYou have no transactions this month yet.",
			Money(r.Balance, symbol))
	}

	var b strings.Builder
	b.WriteString("<b>📈 Monthly report</b>\n\n")
	for _, l := range r.Income {
		fmt.Fprintf(&b, "⬆️ <b>%s</b>: +%s\n", html.EscapeString(l.Category), Money(l.Total, symbol))
	}
	for _, l := range r.Expenses {
		fmt.Fprintf(&b, "⬇️ <b>%s</b>: -%s\n", html.EscapeString(l.Category), Money(l.Total, symbol))
	}

	b.WriteString("\n📊 <b>Total</b>\n")
	fmt.Fprintf(&b, "Income: <b>+%s</b>\n", Money(r.TotalIncome, symbol))
	fmt.Fprintf(&b, "Expenses: <b>-%s</b>\n", Money(r.TotalExpenses, symbol))
	fmt.Fprintf(&b, "Balance: <b>%s</b>", Money(r.Balance, symbol))

	if r.SavingsRatio != nil {
		pct := r.SavingsRatio.Mul(decimal.NewFromInt(100)).StringFixed(1)
		b.WriteString("\n\n💡 <b>Analysis</b>\n")
		fmt.Fprintf(&b, "Savings: <b>%s%%</b> of income", pct)
		if r.LowSavings {
			fmt.Fprintf(&b, "\nAdvice: %s", r.Advice)
		}
	}

	return b.String()
}
