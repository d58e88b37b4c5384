package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"ladderwatch/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

func defaultPath() string {
	// Prefer working directory so the DB is stable across go run / go build.
	// Fall back to executable directory for deployed builds.
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "ladderwatch.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "ladderwatch.db")
}

// Open opens (or creates) the SQLite database and runs migrations.
// An empty path selects the default location next to the working directory.
func Open(path string) (*DB, error) {
	if path == "" {
		path = defaultPath()
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS config (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS universe (
				symbol     TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				rank       INTEGER NOT NULL,
				market_cap REAL NOT NULL DEFAULT 0,
				updated_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_universe_rank ON universe(rank);

			CREATE TABLE IF NOT EXISTS alert_history (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				symbol          TEXT NOT NULL,
				target          TEXT NOT NULL,
				kind            TEXT NOT NULL,
				sent_date       TEXT NOT NULL,
				price           REAL NOT NULL DEFAULT 0,
				distance_pct    REAL NOT NULL DEFAULT 0,
				message         TEXT NOT NULL DEFAULT '',
				channels_sent   TEXT NOT NULL DEFAULT '[]',
				channels_failed TEXT,
				sent_at         TEXT NOT NULL,
				UNIQUE(symbol, target, kind, sent_date)
			);
			CREATE INDEX IF NOT EXISTS idx_alert_symbol ON alert_history(symbol);
			CREATE INDEX IF NOT EXISTS idx_alert_sent_at ON alert_history(sent_at);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	return nil
}

// SqlDB returns the underlying *sql.DB for use by other packages.
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}
