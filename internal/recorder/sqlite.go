package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"StockCast/internal/logger"
)

var sqliteDialect = dialect{
	name: "sqlite",
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS prices (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol  TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  REAL    NOT NULL,
			UNIQUE(symbol, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at     INTEGER NOT NULL,
			symbol         TEXT    NOT NULL,
			model          TEXT    NOT NULL,
			source         TEXT    NOT NULL DEFAULT '',
			status         TEXT    NOT NULL,
			error          TEXT    NOT NULL DEFAULT '',
			bars           INTEGER NOT NULL DEFAULT 0,
			train_rows     INTEGER NOT NULL DEFAULT 0,
			test_rows      INTEGER NOT NULL DEFAULT 0,
			rmse           REAL,
			mae            REAL,
			mape           REAL,
			r2             REAL,
			forecast_days  INTEGER NOT NULL DEFAULT 0,
			last_close     REAL    NOT NULL DEFAULT 0,
			final_forecast REAL    NOT NULL DEFAULT 0,
			outlook_score  REAL    NOT NULL DEFAULT 0,
			stance         TEXT    NOT NULL DEFAULT '',
			duration_ms    INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol, started_at)`,
	},
}

// NewSQLiteRecorder opens (or creates) the SQLite database at path.
func NewSQLiteRecorder(ctx context.Context, path string, log *logger.Logger) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s, err := newSQLStore(ctx, db, sqliteDialect, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.log.Info("recorder initialized", logger.String("driver", "sqlite"), logger.String("path", path))
	return s, nil
}
