package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/susu3304/finbot/internal/common"
)

// PostgresStore is the ledger backend for a PostgreSQL server.
// Amounts are NUMERIC and cross the driver boundary as text.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Ledger = (*PostgresStore)(nil)

func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates the users and transactions tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			telegram_id BIGINT UNIQUE NOT NULL,
			username TEXT,
			full_name TEXT,
			balance NUMERIC NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
			category TEXT NOT NULL CHECK (category <> ''),
			amount NUMERIC NOT NULL CHECK (amount > 0),
			comment TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at);
	`)
	if err != nil {
		return common.NewPersistenceError("migrate", 0, err)
	}
	return nil
}

func (s *PostgresStore) Register(ctx context.Context, identity int64, fullName, username string) error {
	var handle *string
	if username != "" {
		handle = &username
	}
	_, err := s.pool.Exec(ctx,
		"INSERT INTO users (telegram_id, full_name, username) VALUES ($1, $2, $3) ON CONFLICT (telegram_id) DO NOTHING",
		identity, fullName, handle,
	)
	return common.NewPersistenceError("register", identity, err)
}

func (s *PostgresStore) RecordTransaction(ctx context.Context, identity int64, kind Kind, category string, amount decimal.Decimal, comment string) error {
	const op = "recordTransaction"
	if err := validateEntry(kind, category, amount); err != nil {
		return common.NewPersistenceError(op, identity, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return common.NewPersistenceError(op, identity, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID int64
	err = tx.QueryRow(ctx,
		"SELECT id FROM users WHERE telegram_id = $1 FOR UPDATE", identity,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewPersistenceError(op, identity, unknownUser(identity))
	}
	if err != nil {
		return common.NewPersistenceError(op, identity, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (user_id, type, category, amount, comment)
		 VALUES ($1, $2, $3, $4::numeric, $5)`,
		userID, string(kind), category, amount.String(), comment,
	); err != nil {
		return common.NewPersistenceError(op, identity, err)
	}

	ct, err := tx.Exec(ctx,
		"UPDATE users SET balance = balance + $1::numeric WHERE id = $2",
		kind.Signed(amount).String(), userID,
	)
	if err != nil {
		return common.NewPersistenceError(op, identity, err)
	}
	if ct.RowsAffected() != 1 {
		return common.NewPersistenceError(op, identity, fmt.Errorf("balance update touched %d rows", ct.RowsAffected()))
	}

	return common.NewPersistenceError(op, identity, tx.Commit(ctx))
}

func (s *PostgresStore) Balance(ctx context.Context, identity int64) (decimal.Decimal, error) {
	var balanceText string
	err := s.pool.QueryRow(ctx,
		"SELECT balance::text FROM users WHERE telegram_id = $1", identity,
	).Scan(&balanceText)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgresStore) MonthlySummary(ctx context.Context, identity int64) ([]SummaryRow, error) {
	const op = "getMonthlySummary"
	rows, err := s.pool.Query(ctx, `
		SELECT t.type, t.category, SUM(t.amount)::text
		FROM transactions t
		JOIN users u ON u.id = t.user_id
		WHERE u.telegram_id = $1
		  AND t.created_at >= date_trunc('month', CURRENT_TIMESTAMP)
		  AND t.created_at < date_trunc('month', CURRENT_TIMESTAMP) + INTERVAL '1 month'
		GROUP BY t.type, t.category`,
		identity,
	)
	if err != nil {
		return nil, common.NewPersistenceError(op, identity, err)
	}
	defer rows.Close()

	out := []SummaryRow{}
	for rows.Next() {
		var kind, category, totalText string
		if err := rows.Scan(&kind, &category, &totalText); err != nil {
			return nil, common.NewPersistenceError(op, identity, err)
		}
		total, err := decimal.NewFromString(totalText)
		if err != nil {
			return nil, common.NewPersistenceError(op, identity, err)
		}
		out = append(out, SummaryRow{Kind: Kind(kind), Category: category, Total: total})
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewPersistenceError(op, identity, err)
	}

	sortSummary(out)
	return out, nil
}

func (s *PostgresStore) User(ctx context.Context, identity int64) (*User, error) {
	var u User
	var balanceText string
	err := s.pool.QueryRow(ctx, `
		SELECT id, telegram_id, COALESCE(username, ''), COALESCE(full_name, ''), balance::text, created_at
		FROM users WHERE telegram_id = $1`,
		identity,
	).Scan(&u.ID, &u.TelegramID, &u.Username, &u.FullName, &balanceText, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresStore) TransactionCount(ctx context.Context, identity int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions t
		JOIN users u ON u.id = t.user_id
		WHERE u.telegram_id = $1`,
		identity,
	).Scan(&n)
	return n, common.NewPersistenceError("countTransactions", identity, err)
}
