// Package store persists terminal scan results for the Cleanup Subgraph's
// Result Persister, grounded on this codebase's sqlite store pattern.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS scans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id TEXT NOT NULL UNIQUE,
			repo_url TEXT NOT NULL,
			final_phase TEXT NOT NULL,
			unified_findings_json TEXT NOT NULL,
			risk_profile_score REAL NOT NULL,
			cleanup_status TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scan_audit_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id TEXT NOT NULL,
			audit_record_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// PersistedResult is one row of the scans table.
type PersistedResult struct {
	ScanID              string
	RepoURL             string
	FinalPhase          string
	UnifiedFindingsJSON string
	RiskProfileScore    float64
	CleanupStatus       string
}

// PersistScanResult is idempotent: a retried persist for the same scan_id is
// ignored rather than erroring, matching the graph's retry-safe write model.
func (s *Store) PersistScanResult(ctx context.Context, r PersistedResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO scans
			(scan_id, repo_url, final_phase, unified_findings_json, risk_profile_score, cleanup_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ScanID, r.RepoURL, r.FinalPhase, r.UnifiedFindingsJSON, r.RiskProfileScore, r.CleanupStatus, nowISO())
	return err
}

// PersistedCount reports how many rows exist for scan_id, used by the
// Result Persister to confirm the write actually landed.
func (s *Store) PersistedCount(ctx context.Context, scanID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans WHERE scan_id = ?`, scanID).Scan(&count)
	return count, err
}

// AppendAuditRecord stores one structured_audit_record_node output.
func (s *Store) AppendAuditRecord(ctx context.Context, scanID, auditJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_audit_records (scan_id, audit_record_json, created_at) VALUES (?, ?, ?)`,
		scanID, auditJSON, nowISO())
	return err
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
