// Package audit records every decision the shell tool makes about a command
// (rejected, executed, failed, confirmed, denied) to a SQLite database.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/germanamz/llamagent/pkg/agentctx"
	_ "modernc.org/sqlite"
)

// Actions recorded by the shell tool and the confirmation gate.
const (
	ActionRejected = "rejected"
	ActionExecuted = "executed"
	ActionFailed   = "failed"
	ActionAllowed  = "confirm_allow"
	ActionDenied   = "confirm_deny"
)

// Entry is one audit record.
type Entry struct {
	ID        int64
	Action    string
	Agent     string
	Tool      string
	Command   string
	Result    string
	Details   string
	CreatedAt time.Time
}

// Recorder accepts audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Nop discards every entry.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }

// Log is a Recorder backed by SQLite.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the audit database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("audit: create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Log{db: db, logger: logger}

	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}

	return l, nil
}

func (l *Log) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		action      TEXT NOT NULL,
		agent       TEXT,
		tool_name   TEXT,
		command     TEXT,
		result      TEXT,
		details     TEXT,
		created_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_log(created_at);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Record inserts e. A zero CreatedAt is set to the current time and an empty
// Agent is taken from ctx.
func (l *Log) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Agent == "" {
		e.Agent = agentctx.AgentNameFromContext(ctx)
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, agent, tool_name, command, result, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Action, e.Agent, e.Tool, e.Command, e.Result, e.Details, e.CreatedAt,
	)
	if err != nil {
		l.logger.Warn("audit record failed", "action", e.Action, "error", err)
		return fmt.Errorf("audit: record: %w", err)
	}

	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, action, agent, tool_name, command, result, details, created_at
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.Agent, &e.Tool, &e.Command, &e.Result, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}
