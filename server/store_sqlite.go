package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const historySQLiteSchema = `
CREATE TABLE IF NOT EXISTS calculations (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	expression TEXT NOT NULL,
	lower_limit REAL NOT NULL,
	upper_limit REAL NOT NULL,
	area REAL,
	error TEXT,
	category TEXT,
	error_estimate REAL NOT NULL DEFAULT 0,
	evaluations INTEGER NOT NULL DEFAULT 0,
	duration_ms REAL NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calculations_created
ON calculations(created_at);`

const historySelectColumns = `id, expression, lower_limit, upper_limit, area, error, category,
error_estimate, evaluations, duration_ms, created_at`

// SQLiteStoreConfig configures the SQLite history store.
type SQLiteStoreConfig struct {
	DSN string
}

// SQLiteStore persists history records in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the history database.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("history store sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("history sqlite store open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history sqlite store set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history sqlite store set busy timeout: %w", err)
	}

	if _, err := db.Exec(historySQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history sqlite store create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec HistoryRecord) error {
	var area sql.NullFloat64
	if rec.Area != nil {
		area = sql.NullFloat64{Float64: *rec.Area, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO calculations (id, expression, lower_limit, upper_limit, area, error, category,
	error_estimate, evaluations, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Expression,
		rec.Lower,
		rec.Upper,
		area,
		nullString(rec.Error),
		nullString(rec.Category),
		rec.ErrorEstimate,
		rec.Evaluations,
		rec.DurationMS,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint") {
			return ErrRecordExists
		}
		return fmt.Errorf("history sqlite store append: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]HistoryRecord, error) {
	query := `SELECT ` + historySelectColumns + `
FROM calculations
ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += "\nLIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history sqlite store list: %w", err)
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		rec, err := scanHistoryRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history sqlite store list rows: %w", err)
	}

	return records, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (HistoryRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+historySelectColumns+`
FROM calculations
WHERE id = ?`, id)

	rec, err := scanHistoryRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return HistoryRecord{}, false, nil
		}
		return HistoryRecord{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time, keep int) (int, error) {
	var removed int64

	if !olderThan.IsZero() {
		res, err := s.db.ExecContext(ctx, `DELETE FROM calculations WHERE created_at < ?`, formatTime(olderThan))
		if err != nil {
			return 0, fmt.Errorf("history sqlite store prune by age: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if keep > 0 {
		res, err := s.db.ExecContext(ctx, `
DELETE FROM calculations
WHERE seq NOT IN (SELECT seq FROM calculations ORDER BY seq DESC LIMIT ?)`, keep)
		if err != nil {
			return 0, fmt.Errorf("history sqlite store prune by count: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	return int(removed), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type historyScanner interface {
	Scan(dest ...any) error
}

func scanHistoryRecord(scanner historyScanner) (HistoryRecord, error) {
	var (
		rec       HistoryRecord
		area      sql.NullFloat64
		errText   sql.NullString
		category  sql.NullString
		createdAt string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Expression,
		&rec.Lower,
		&rec.Upper,
		&area,
		&errText,
		&category,
		&rec.ErrorEstimate,
		&rec.Evaluations,
		&rec.DurationMS,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return HistoryRecord{}, err
		}
		return HistoryRecord{}, fmt.Errorf("history sqlite store scan: %w", err)
	}

	if area.Valid {
		v := area.Float64
		rec.Area = &v
	}
	rec.Error = errText.String
	rec.Category = category.String

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return HistoryRecord{}, fmt.Errorf("history sqlite store parse created_at: %w", err)
	}
	rec.CreatedAt = parsed
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// formatTime uses a fixed-width UTC layout so created_at sorts lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
