// Package audit keeps a queryable record of answered questions. Only metadata
// is stored: lengths, persona, flags and timings, never the question or answer.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/roteiro-ai/roteiro/pkg/logging"
	"github.com/roteiro-ai/roteiro/pkg/models"
)

// Logger writes and queries audit entries in a dedicated SQLite database.
type Logger struct {
	db     *sql.DB
	cfg    models.AuditConfig
	logger *zap.Logger
	done   chan struct{}
	wg     conc.WaitGroup
}

// New opens the audit SQLite database, creates the schema and starts the retention loop.
func New(cfg models.AuditConfig, logger *zap.Logger) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:     db,
		cfg:    cfg,
		logger: logging.OrNop(logger),
		done:   make(chan struct{}),
	}

	if cfg.RetentionDays > 0 {
		l.wg.Go(l.retentionLoop)
	}

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		request_id    TEXT PRIMARY KEY,
		client_hash   TEXT NOT NULL,
		client_prefix TEXT NOT NULL,
		persona       TEXT NOT NULL,
		question_len  INTEGER NOT NULL,
		response_len  INTEGER NOT NULL,
		cached        INTEGER NOT NULL,
		fallback      INTEGER NOT NULL,
		in_scope      INTEGER NOT NULL,
		category      TEXT,
		latency_ms    INTEGER NOT NULL,
		created_at    INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_persona ON audit_log(persona)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_prefix ON audit_log(client_prefix)`)
	return err
}

// Log inserts an audit entry.
func (l *Logger) Log(ctx context.Context, e models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO audit_log
		(request_id, client_hash, client_prefix, persona, question_len, response_len,
		 cached, fallback, in_scope, category, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.ClientHash, e.ClientPrefix, e.Persona, e.QuestionLen, e.ResponseLen,
		e.Cached, e.Fallback, e.InScope, e.Category, e.Latency.Milliseconds(), e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	return nil
}

// LogAsync writes the entry in the background. Close waits for pending writes.
func (l *Logger) LogAsync(e models.AuditEntry) {
	if l == nil {
		return
	}
	l.wg.Go(func() {
		if err := l.Log(context.Background(), e); err != nil {
			l.logger.Error("audit write failed", zap.String("request_id", e.RequestID), zap.Error(err))
		}
	})
}

// Query returns audit entries matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := `SELECT request_id, client_hash, client_prefix, persona, question_len, response_len,
		cached, fallback, in_scope, category, latency_ms, created_at
		FROM audit_log WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Persona != "" {
		q += " AND persona = ?"
		args = append(args, opts.Persona)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UnixNano())
	}
	if opts.ClientPrefix != "" {
		q += " AND client_prefix = ?"
		args = append(args, opts.ClientPrefix)
	}
	if opts.FallbackOnly {
		q += " AND fallback = 1"
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var category sql.NullString
		var latencyMs, created int64
		if err := rows.Scan(
			&e.RequestID, &e.ClientHash, &e.ClientPrefix, &e.Persona,
			&e.QuestionLen, &e.ResponseLen,
			&e.Cached, &e.Fallback, &e.InScope, &category,
			&latencyMs, &created,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.Category = category.String
		e.Latency = time.Duration(latencyMs) * time.Millisecond
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns aggregate counts grouped by persona and day.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT persona, date(created_at / 1000000000, 'unixepoch') AS day,
		        count(*), COALESCE(SUM(cached), 0), COALESCE(SUM(fallback), 0)
		 FROM audit_log GROUP BY persona, day ORDER BY day DESC, persona`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var day sql.NullString
		if err := rows.Scan(&s.Persona, &day, &s.Count, &s.Cached, &s.Fallbacks); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
// A non-positive RetentionDays keeps everything.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine, drains pending writes and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if n, err := l.Cleanup(context.Background()); err != nil {
				l.logger.Warn("audit cleanup failed", zap.Error(err))
			} else if n > 0 {
				l.logger.Info("audit cleanup", zap.Int64("deleted", n))
			}
		}
	}
}

// HashClient returns the SHA-256 hex hash and 8-char prefix for a client id.
func HashClient(clientID string) (hash, prefix string) {
	h := sha256.Sum256([]byte(clientID))
	hash = hex.EncodeToString(h[:])
	return hash, hash[:8]
}
