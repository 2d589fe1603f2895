package monitoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/osmike/cadence/internal/domain"
	"go.uber.org/zap"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS executions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT    NOT NULL,
	manager     TEXT    NOT NULL,
	kind        TEXT    NOT NULL,
	status      TEXT    NOT NULL,
	start_at    INTEGER NOT NULL,
	end_at      INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	error       TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_executions_id ON executions(id);
`

// History implements domain.Monitoring by appending every execution to a
// SQLite table, so that the execution history survives restarts.
type History struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenHistory opens (or creates) the SQLite database at path.
// Use ":memory:" for a database that lives as long as the History.
//
// Parameters:
//   - path: Database file.
//   - logger: Receives write failures, since SaveMetrics cannot return them. May be nil.
func OpenHistory(path string, logger *zap.Logger) (*History, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// An in-memory database is private to its connection.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma wal: %w", err)
		}
	}
	if _, err := db.Exec(historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &History{db: db, logger: logger.Named("history")}, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// SaveMetrics appends dto. Write errors are logged.
func (h *History) SaveMetrics(dto domain.StateDTO) {
	var (
		start  int64
		errMsg string
	)
	if !dto.StartAt.IsZero() {
		start = dto.StartAt.UnixNano()
	}
	if dto.Error != nil {
		errMsg = dto.Error.Error()
	}
	_, err := h.db.Exec(
		`INSERT INTO executions (id, manager, kind, status, start_at, end_at, duration_ns, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		dto.ID, dto.Manager, dto.Kind, string(dto.Status), start, dto.EndAt.UnixNano(), dto.ExecutionTime, errMsg,
	)
	if err != nil {
		h.logger.Error("save execution", zap.String("id", dto.ID), zap.Error(err))
	}
}

// Recent returns up to limit executions, newest first.
// Errors are restored as plain errors carrying the original message.
func (h *History) Recent(ctx context.Context, limit int) ([]domain.StateDTO, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, manager, kind, status, start_at, end_at, duration_ns, error
		 FROM executions ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var out []domain.StateDTO
	for rows.Next() {
		var (
			dto        domain.StateDTO
			status     string
			start, end int64
			errMsg     string
		)
		if err := rows.Scan(&dto.ID, &dto.Manager, &dto.Kind, &status, &start, &end, &dto.ExecutionTime, &errMsg); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		dto.Status = domain.ExecStatus(status)
		if start != 0 {
			dto.StartAt = time.Unix(0, start)
		}
		dto.EndAt = time.Unix(0, end)
		if errMsg != "" {
			dto.Error = errors.New(errMsg)
		}
		out = append(out, dto)
	}
	return out, rows.Err()
}

// Count returns the number of recorded executions with the given status.
func (h *History) Count(ctx context.Context, status domain.ExecStatus) (int64, error) {
	var n int64
	err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM executions WHERE status = ?`, string(status)).Scan(&n)
	return n, err
}
