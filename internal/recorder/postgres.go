package recorder

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"StockCast/internal/logger"
)

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS prices (
			id      SERIAL PRIMARY KEY,
			symbol  VARCHAR(32)      NOT NULL,
			ts      BIGINT           NOT NULL,
			open    DOUBLE PRECISION NOT NULL,
			high    DOUBLE PRECISION NOT NULL,
			low     DOUBLE PRECISION NOT NULL,
			close   DOUBLE PRECISION NOT NULL,
			volume  DOUBLE PRECISION NOT NULL,
			UNIQUE(symbol, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id             SERIAL PRIMARY KEY,
			started_at     BIGINT           NOT NULL,
			symbol         VARCHAR(32)      NOT NULL,
			model          VARCHAR(64)      NOT NULL,
			source         VARCHAR(32)      NOT NULL DEFAULT '',
			status         VARCHAR(16)      NOT NULL,
			error          TEXT             NOT NULL DEFAULT '',
			bars           INTEGER          NOT NULL DEFAULT 0,
			train_rows     INTEGER          NOT NULL DEFAULT 0,
			test_rows      INTEGER          NOT NULL DEFAULT 0,
			rmse           DOUBLE PRECISION,
			mae            DOUBLE PRECISION,
			mape           DOUBLE PRECISION,
			r2             DOUBLE PRECISION,
			forecast_days  INTEGER          NOT NULL DEFAULT 0,
			last_close     DOUBLE PRECISION NOT NULL DEFAULT 0,
			final_forecast DOUBLE PRECISION NOT NULL DEFAULT 0,
			outlook_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
			stance         VARCHAR(32)      NOT NULL DEFAULT '',
			duration_ms    BIGINT           NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol, started_at)`,
	},
}

// NewPostgresRecorder connects to PostgreSQL and ensures the schema exists.
func NewPostgresRecorder(ctx context.Context, dsn string, log *logger.Logger) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s, err := newSQLStore(ctx, db, postgresDialect, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.log.Info("recorder initialized", logger.String("driver", "postgres"))
	return s, nil
}
