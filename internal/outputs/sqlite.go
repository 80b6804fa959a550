package outputs

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS timing_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	result_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	site_key TEXT NOT NULL,
	site_url TEXT NOT NULL,
	collected_at TEXT NOT NULL,
	name_lookup_ms INTEGER NOT NULL,
	connection_ms INTEGER NOT NULL,
	handshake_ms INTEGER NOT NULL,
	server_processing_ms INTEGER NOT NULL,
	content_transfer_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_timing_site ON timing_samples(site_key, collected_at);

CREATE TABLE IF NOT EXISTS lcp_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	result_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	site_key TEXT NOT NULL,
	site_url TEXT NOT NULL,
	collected_at TEXT NOT NULL,
	percentile_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lcp_site ON lcp_samples(site_key, collected_at);

CREATE TABLE IF NOT EXISTS collector_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	result_id TEXT NOT NULL,
	site_key TEXT NOT NULL,
	collected_at TEXT NOT NULL,
	collector TEXT NOT NULL,
	error_type TEXT NOT NULL,
	error_message TEXT NOT NULL
);
`

// SQLiteOutput keeps a queryable history of samples next to the CSV files
type SQLiteOutput struct {
	db   *sql.DB
	path string
}

// NewSQLiteOutput opens (creating if needed) the history database at path
func NewSQLiteOutput(path string) (*SQLiteOutput, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteOutput{db: db, path: path}, nil
}

// Write inserts the result's samples and errors in one transaction
func (s *SQLiteOutput) Write(result *models.SiteResult) error {
	if s == nil {
		return nil
	}

	ts := models.FormatTimestamp(result.Timestamp)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if t := result.Timing; t != nil {
		_, err := tx.Exec(`INSERT INTO timing_samples
			(result_id, run_id, site_key, site_url, collected_at,
			 name_lookup_ms, connection_ms, handshake_ms, server_processing_ms, content_transfer_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.ResultID, result.RunID, result.Site.Key, result.Site.URL, ts,
			t.NameLookupMs, t.ConnectionMs, t.HandshakeMs, t.ServerProcessingMs, t.ContentTransferMs)
		if err != nil {
			return fmt.Errorf("failed to insert timing sample: %w", err)
		}
	}

	if result.LCP != nil {
		_, err := tx.Exec(`INSERT INTO lcp_samples
			(result_id, run_id, site_key, site_url, collected_at, percentile_ms)
			VALUES (?, ?, ?, ?, ?, ?)`,
			result.ResultID, result.RunID, result.Site.Key, result.Site.URL, ts, result.LCP.PercentileMs)
		if err != nil {
			return fmt.Errorf("failed to insert lcp sample: %w", err)
		}
	}

	for _, e := range result.Errors {
		_, err := tx.Exec(`INSERT INTO collector_errors
			(result_id, site_key, collected_at, collector, error_type, error_message)
			VALUES (?, ?, ?, ?, ?, ?)`,
			result.ResultID, result.Site.Key, ts, e.Collector, e.ErrorType, e.ErrorMessage)
		if err != nil {
			return fmt.Errorf("failed to insert collector error: %w", err)
		}
	}

	return tx.Commit()
}

// TimingHistory returns up to limit timing samples for a site, newest first
func (s *SQLiteOutput) TimingHistory(siteKey string, limit int) ([]models.TimingSample, error) {
	rows, err := s.db.Query(`SELECT name_lookup_ms, connection_ms, handshake_ms, server_processing_ms, content_transfer_ms
		FROM timing_samples WHERE site_key = ? ORDER BY id DESC LIMIT ?`, siteKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query timing history: %w", err)
	}
	defer rows.Close()

	var samples []models.TimingSample
	for rows.Next() {
		var t models.TimingSample
		if err := rows.Scan(&t.NameLookupMs, &t.ConnectionMs, &t.HandshakeMs, &t.ServerProcessingMs, &t.ContentTransferMs); err != nil {
			return nil, err
		}
		samples = append(samples, t)
	}
	return samples, rows.Err()
}

// LatestLCP returns the most recent LCP percentile for a site
func (s *SQLiteOutput) LatestLCP(siteKey string) (int64, bool, error) {
	var v int64
	err := s.db.QueryRow(`SELECT percentile_ms FROM lcp_samples WHERE site_key = ? ORDER BY id DESC LIMIT 1`, siteKey).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query lcp: %w", err)
	}
	return v, true, nil
}

// ErrorCount returns how many collector errors were recorded for a site
func (s *SQLiteOutput) ErrorCount(siteKey string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM collector_errors WHERE site_key = ?`, siteKey).Scan(&n)
	return n, err
}

// Name returns the output module name
func (s *SQLiteOutput) Name() string {
	return "sqlite"
}

// Close closes the database
func (s *SQLiteOutput) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
