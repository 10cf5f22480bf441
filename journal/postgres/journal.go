// Package postgres provides a PostgreSQL implementation of journal.Journal.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/rbaliyan/mailsort/journal"
)

// Compile-time check
var _ journal.Journal = (*Journal)(nil)

// Journal implements journal.Journal using PostgreSQL.
type Journal struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new PostgreSQL journal with the provided database
// connection. Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Journal {
	o := newOptions(opts...)
	return &Journal{
		db:     db,
		opts:   o,
		logger: o.logger,
	}
}

// NewFromDB creates a new PostgreSQL journal from a standard sql.DB
// connection. This wraps the sql.DB with sqlx for enhanced functionality.
func NewFromDB(db *sql.DB, opts ...Option) *Journal {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Connect initializes the schema and indexes.
func (j *Journal) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&j.connected, 0, 1) {
		return journal.ErrAlreadyConnected
	}

	if j.db == nil {
		atomic.StoreInt32(&j.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, j.opts.timeout)
	defer cancel()

	if err := j.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&j.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if err := j.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&j.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	j.logger.Info("connected to PostgreSQL", "table", j.opts.table)
	return nil
}

// Close marks the journal as disconnected.
// The caller is responsible for closing the database connection.
func (j *Journal) Close(_ context.Context) error {
	atomic.StoreInt32(&j.connected, 0)
	return nil
}

// ensureSchema creates the required table and indexes.
func (j *Journal) ensureSchema(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL DEFAULT '',
			item_id VARCHAR(255) NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			folder TEXT NOT NULL DEFAULT '',
			disposition VARCHAR(50) NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, j.opts.table)

	if _, err := j.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_run ON %s(run_id)`, j.opts.table, j.opts.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_recorded ON %s(recorded_at DESC)`, j.opts.table, j.opts.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_disposition ON %s(disposition)`, j.opts.table, j.opts.table),
	}
	for _, idx := range indexes {
		if _, err := j.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (j *Journal) checkConnected() error {
	if atomic.LoadInt32(&j.connected) == 0 {
		return journal.ErrNotConnected
	}
	return nil
}

// Append records one outcome.
func (j *Journal) Append(ctx context.Context, e journal.Entry) error {
	if err := j.checkConnected(); err != nil {
		return err
	}
	if err := journal.Validate(e); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, j.opts.timeout)
	defer cancel()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, item_id, subject, folder, disposition, reason, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, j.opts.table)

	if _, err := j.db.ExecContext(ctx, query,
		e.ID, e.RunID, e.ItemID, e.Subject, e.Folder, e.Disposition, e.Reason, e.RecordedAt,
	); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

type entryRow struct {
	ID          string    `db:"id"`
	RunID       string    `db:"run_id"`
	ItemID      string    `db:"item_id"`
	Subject     string    `db:"subject"`
	Folder      string    `db:"folder"`
	Disposition string    `db:"disposition"`
	Reason      string    `db:"reason"`
	RecordedAt  time.Time `db:"recorded_at"`
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if err := j.checkConnected(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(ctx, j.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, run_id, item_id, subject, folder, disposition, reason, recorded_at
		FROM %s ORDER BY recorded_at DESC LIMIT $1
	`, j.opts.table)

	var rows []entryRow
	if err := j.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	entries := make([]journal.Entry, len(rows))
	for i, r := range rows {
		entries[i] = journal.Entry(r)
	}
	return entries, nil
}

// Summary returns aggregate counts for a run, or for all entries when
// runID is empty.
func (j *Journal) Summary(ctx context.Context, runID string) (*journal.Summary, error) {
	if err := j.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, j.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT disposition, COUNT(*) AS n FROM %s
		WHERE ($1 = '' OR run_id = $1)
		GROUP BY disposition
	`, j.opts.table)

	rows, err := j.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("summary query: %w", err)
	}
	defer rows.Close()

	var s journal.Summary
	for rows.Next() {
		var disposition string
		var n int64
		if err := rows.Scan(&disposition, &n); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		switch disposition {
		case journal.DispositionSorted:
			s.Sorted = n
		case journal.DispositionSkipped:
			s.Skipped = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summary rows: %w", err)
	}
	return &s, nil
}
