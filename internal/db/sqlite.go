package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/susu3304/finbot/internal/common"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore is the default, single-file ledger backend.
// Decimal values are stored as TEXT so balances never pass through float64.
type SQLiteStore struct {
	db *sql.DB
}

var _ Ledger = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// _txlock=immediate takes the write lock at BEGIN so the balance read-modify-write
	// in RecordTransaction cannot interleave with another writer.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates the users and transactions tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER UNIQUE NOT NULL,
			username TEXT,
			full_name TEXT,
			balance TEXT NOT NULL DEFAULT '0',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
			category TEXT NOT NULL CHECK (length(category) > 0),
			amount TEXT NOT NULL CHECK (CAST(amount AS REAL) > 0),
			comment TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at);
	`)
	if err != nil {
		return common.NewPersistenceError("migrate", 0, err)
	}
	return nil
}

// Register creates the user on first contact. Later calls leave the first record untouched.
func (s *SQLiteStore) Register(ctx context.Context, identity int64, fullName, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (telegram_id, full_name, username) VALUES (?, ?, ?)
		 ON CONFLICT (telegram_id) DO NOTHING`,
		identity, fullName, nullString(username),
	)
	return common.NewPersistenceError("register", identity, err)
}

// RecordTransaction inserts the transaction and moves the balance in one database transaction.
func (s *SQLiteStore) RecordTransaction(ctx context.Context, identity int64, kind Kind, category string, amount decimal.Decimal, comment string) error {
	const op = "recordTransaction"
	if err := validateEntry(kind, category, amount); err != nil {
		return common.NewPersistenceError(op, identity, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewPersistenceError(op, identity, err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID int64
	var balanceText string
	err = tx.QueryRowContext(ctx,
		`SELECT id, balance FROM users WHERE telegram_id = ?`, identity,
	).Scan(&userID, &balanceText)
	if errors.Is(err, sql.ErrNoRows) {
		return common.NewPersistenceError(op, identity, unknownUser(identity))
	}
	if err != nil {
		return common.NewPersistenceError(op, identity, err)
	}

	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return common.NewPersistenceError(op, identity, fmt.Errorf("corrupt balance %q: %w", balanceText, err))
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, category, amount, comment) VALUES (?, ?, ?, ?, ?)`,
		userID, string(kind), category, amount.String(), comment,
	); err != nil {
		return common.NewPersistenceError(op, identity, err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = ? WHERE id = ?`,
		balance.Add(kind.Signed(amount)).String(), userID,
	)
	if err != nil {
		return common.NewPersistenceError(op, identity, err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return common.NewPersistenceError(op, identity, fmt.Errorf("balance update touched %d rows: %v", n, err))
	}

	return common.NewPersistenceError(op, identity, tx.Commit())
}

// Balance returns zero for identities that never registered.
func (s *SQLiteStore) Balance(ctx context.Context, identity int64) (decimal.Decimal, error) {
	var balanceText string
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE telegram_id = ?`, identity,
	).Scan(&balanceText)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, common.NewPersistenceError("getBalance", identity, err)
	}
	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return decimal.Zero, common.NewPersistenceError("getBalance", identity, err)
	}
	return balance, nil
}

// MonthlySummary totals this month's transactions by (kind, category), by the database clock.
func (s *SQLiteStore) MonthlySummary(ctx context.Context, identity int64) ([]SummaryRow, error) {
	const op = "getMonthlySummary"
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.type, t.category, t.amount
		FROM transactions t
		JOIN users u ON u.id = t.user_id
		WHERE u.telegram_id = ?
		  AND strftime('%Y-%m', t.created_at) = strftime('%Y-%m', 'now')`,
		identity,
	)
	if err != nil {
		return nil, common.NewPersistenceError(op, identity, err)
	}
	defer rows.Close()

	var entries []SummaryRow
	for rows.Next() {
		var kind, category, amountText string
		if err := rows.Scan(&kind, &category, &amountText); err != nil {
			return nil, common.NewPersistenceError(op, identity, err)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, common.NewPersistenceError(op, identity, err)
		}
		entries = append(entries, SummaryRow{Kind: Kind(kind), Category: category, Total: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewPersistenceError(op, identity, err)
	}

	return summarize(entries), nil
}

// User loads the stored user record.
func (s *SQLiteStore) User(ctx context.Context, identity int64) (*User, error) {
	var u User
	var balanceText string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, telegram_id, COALESCE(username, ''), COALESCE(full_name, ''), balance, created_at
		FROM users WHERE telegram_id = ?`,
		identity,
	).Scan(&u.ID, &u.TelegramID, &u.Username, &u.FullName, &balanceText, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, unknownUser(identity)
	}
	if err != nil {
		return nil, common.NewPersistenceError("getUser", identity, err)
	}
	if u.Balance, err = decimal.NewFromString(balanceText); err != nil {
		return nil, common.NewPersistenceError("getUser", identity, err)
	}
	return &u, nil
}

// TransactionCount returns how many transactions the identity has recorded.
func (s *SQLiteStore) TransactionCount(ctx context.Context, identity int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions t
		JOIN users u ON u.id = t.user_id
		WHERE u.telegram_id = ?`,
		identity,
	).Scan(&n)
	return n, common.NewPersistenceError("countTransactions", identity, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
