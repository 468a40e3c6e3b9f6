package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps counters in a SQLite table so limits survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

const createRateLimitTable = `
CREATE TABLE IF NOT EXISTS rate_limits (
	client_id TEXT PRIMARY KEY,
	hourly_count INTEGER NOT NULL DEFAULT 0,
	hourly_reset INTEGER NOT NULL DEFAULT 0,
	daily_count INTEGER NOT NULL DEFAULT 0,
	daily_reset INTEGER NOT NULL DEFAULT 0
);
`

// NewSQLiteStore opens the database and creates the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open rate limit db: %w", err)
	}
	// one connection serializes the read-modify-write transactions
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createRateLimitTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate rate limit db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Consume checks and increments inside one transaction.
func (s *SQLiteStore) Consume(ctx context.Context, clientID string, limits Limits, now time.Time) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("begin rate limit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	u, err := loadUsage(ctx, tx, clientID)
	if err != nil {
		return Result{}, err
	}

	u, res := apply(u, limits, now)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rate_limits (client_id, hourly_count, hourly_reset, daily_count, daily_reset)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(client_id) DO UPDATE SET
			hourly_count = excluded.hourly_count, hourly_reset = excluded.hourly_reset,
			daily_count = excluded.daily_count, daily_reset = excluded.daily_reset`,
		clientID, u.Hourly.Count, unixNano(u.Hourly.ResetAt), u.Daily.Count, unixNano(u.Daily.ResetAt),
	)
	if err != nil {
		return Result{}, fmt.Errorf("store rate limit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit rate limit tx: %w", err)
	}
	return res, nil
}

// Usage returns the live counters for a client.
func (s *SQLiteStore) Usage(ctx context.Context, clientID string, now time.Time) (Usage, error) {
	u, err := loadUsage(ctx, s.db, clientID)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Hourly: u.Hourly.live(now), Daily: u.Daily.live(now)}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadUsage(ctx context.Context, q queryRower, clientID string) (Usage, error) {
	var hc, hr, dc, dr int64
	err := q.QueryRowContext(ctx,
		`SELECT hourly_count, hourly_reset, daily_count, daily_reset FROM rate_limits WHERE client_id = ?`,
		clientID,
	).Scan(&hc, &hr, &dc, &dr)
	if errors.Is(err, sql.ErrNoRows) {
		return Usage{}, nil
	}
	if err != nil {
		return Usage{}, fmt.Errorf("load rate limit: %w", err)
	}
	return Usage{
		Hourly: Counter{Count: hc, ResetAt: fromUnixNano(hr)},
		Daily:  Counter{Count: dc, ResetAt: fromUnixNano(dr)},
	}, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
