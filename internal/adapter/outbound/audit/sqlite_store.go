package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcpbridge/gateway/internal/domain/audit"
)

const createAuditTableSQL = `
CREATE TABLE IF NOT EXISTS audit_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	session_id TEXT,
	upstream_name TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	tool_arguments TEXT,
	decision TEXT NOT NULL,
	reason TEXT,
	rule_id TEXT,
	request_id TEXT,
	latency_micros INTEGER NOT NULL
)`

const createAuditTimestampIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_audit_records_timestamp ON audit_records(timestamp DESC)`

// SQLiteAuditStore implements audit.AuditStore on a single-file SQLite
// database, the durable alternative to FileAuditStore's JSON-Lines rotation
// for deployments that want queryable audit history instead of flat files.
// Uses modernc.org/sqlite, the pure-Go driver, so the gateway binary stays
// free of cgo.
type SQLiteAuditStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteAuditStore opens (or creates) the audit database at path and
// ensures its schema exists. SQLite only supports one writer at a time, so
// the pool is capped to a single connection to avoid "database is locked"
// errors under concurrent Append calls.
func NewSQLiteAuditStore(path string, logger *slog.Logger) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect audit database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		logger.Warn("failed to enable WAL mode for audit database", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("failed to set busy_timeout for audit database", "error", err)
	}

	for _, stmt := range []string{createAuditTableSQL, createAuditTimestampIndexSQL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init audit schema: %w", err)
		}
	}

	return &SQLiteAuditStore{db: db, logger: logger}, nil
}

// Append inserts each record as its own row inside one transaction.
func (s *SQLiteAuditStore) Append(ctx context.Context, records ...audit.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO audit_records
		(timestamp, session_id, upstream_name, tool_name, tool_arguments, decision, reason, rule_id, request_id, latency_micros)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		argsJSON, err := json.Marshal(rec.ToolArguments)
		if err != nil {
			return fmt.Errorf("marshal audit arguments: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			rec.SessionID,
			rec.UpstreamName,
			rec.ToolName,
			string(argsJSON),
			rec.Decision,
			rec.Reason,
			rec.RuleID,
			rec.RequestID,
			rec.LatencyMicros,
		); err != nil {
			return fmt.Errorf("insert audit record: %w", err)
		}
	}

	return tx.Commit()
}

// Flush is a no-op: every Append already commits its own transaction.
func (s *SQLiteAuditStore) Flush(_ context.Context) error {
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}

// GetRecent returns up to n of the most recent audit records in oldest-first
// order. FileAuditStore.GetRecent returns its records newest first instead.
func (s *SQLiteAuditStore) GetRecent(n int) []audit.AuditRecord {
	if n <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT timestamp, session_id, upstream_name, tool_name, tool_arguments, decision, reason, rule_id, request_id, latency_micros
		FROM audit_records ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		s.logger.Warn("failed to query recent audit records", "error", err)
		return nil
	}
	defer rows.Close()

	var records []audit.AuditRecord
	for rows.Next() {
		var rec audit.AuditRecord
		var ts, argsJSON string
		if err := rows.Scan(&ts, &rec.SessionID, &rec.UpstreamName, &rec.ToolName, &argsJSON, &rec.Decision, &rec.Reason, &rec.RuleID, &rec.RequestID, &rec.LatencyMicros); err != nil {
			s.logger.Warn("failed to scan audit record", "error", err)
			continue
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = parsed
		}
		if argsJSON != "" && argsJSON != "null" {
			_ = json.Unmarshal([]byte(argsJSON), &rec.ToolArguments)
		}
		records = append(records, rec)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records
}

var _ audit.AuditStore = (*SQLiteAuditStore)(nil)
