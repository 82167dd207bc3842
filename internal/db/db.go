// Package db is the ledger store: users, their transactions, and balances kept in step with them.
package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/susu3304/finbot/internal/common"
	"github.com/susu3304/finbot/internal/config"
)

// ErrConstraint is wrapped when a write would break a ledger invariant.
var ErrConstraint = errors.New("constraint violated")

// Kind is the direction of a transaction.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is income or expense.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Signed returns amount as it applies to the balance.
func (k Kind) Signed(amount decimal.Decimal) decimal.Decimal {
	if k == KindExpense {
		return amount.Neg()
	}
	return amount
}

func (k Kind) rank() int {
	if k == KindIncome {
		return 0
	}
	return 1
}

type User struct {
	ID         int64           `json:"id"`
	TelegramID int64           `json:"telegram_id"`
	Username   string          `json:"username,omitempty"`
	FullName   string          `json:"full_name"`
	Balance    decimal.Decimal `json:"balance"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Transaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Kind      Kind            `json:"type"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Comment   string          `json:"comment"`
	CreatedAt time.Time       `json:"created_at"`
}

// SummaryRow is the total of one (kind, category) group.
type SummaryRow struct {
	Kind     Kind            `json:"type"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// Ledger is implemented by every storage backend.
//
// Store failures are returned as *common.PersistenceError; User reports a missing record
// with common.ErrNotFound instead. RecordTransaction is atomic: callers never observe the
// transaction row without the balance update or the reverse.
type Ledger interface {
	Register(ctx context.Context, identity int64, fullName, username string) error
	RecordTransaction(ctx context.Context, identity int64, kind Kind, category string, amount decimal.Decimal, comment string) error
	Balance(ctx context.Context, identity int64) (decimal.Decimal, error)
	MonthlySummary(ctx context.Context, identity int64) ([]SummaryRow, error)
	User(ctx context.Context, identity int64) (*User, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the backend selected by cfg.DBDriver.
func Open(ctx context.Context, cfg *config.Config) (Ledger, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL)
	case config.DriverSQLite, "":
		return NewSQLite(cfg.DBPath)
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
}

func validateEntry(kind Kind, category string, amount decimal.Decimal) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: type %q", ErrConstraint, kind)
	}
	if strings.TrimSpace(category) == "" {
		return fmt.Errorf("%w: empty category", ErrConstraint)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount %s is not positive", ErrConstraint, amount)
	}
	return nil
}

func unknownUser(identity int64) error {
	return fmt.Errorf("user %d: %w", identity, common.ErrNotFound)
}

// sortSummary orders income before expense, then by category.
func sortSummary(rows []SummaryRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Kind != rows[j].Kind {
			return rows[i].Kind.rank() < rows[j].Kind.rank()
		}
		return rows[i].Category < rows[j].Category
	})
}

// summarize groups individual amounts by (kind, category).
func summarize(entries []SummaryRow) []SummaryRow {
	type key struct {
		kind     Kind
		category string
	}
	totals := make(map[key]decimal.Decimal)
	for _, e := range entries {
		k := key{e.Kind, e.Category}
		totals[k] = totals[k].Add(e.Total)
	}

	rows := make([]SummaryRow, 0, len(totals))
	for k, total := range totals {
		rows = append(rows, SummaryRow{Kind: k.kind, Category: k.category, Total: total})
	}
	sortSummary(rows)
	return rows
}
