package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TurnAudit records one voice turn: what was understood and how the backend
// answered.  The conversation log holds the dialogue itself; this table
// holds the operational trail for debugging degraded turns.
type TurnAudit struct {
	ID           int64
	Timestamp    time.Time
	TraceID      string
	UserID       string
	Intent       string
	Language     sql.NullString
	Result       string
	ErrorMessage sql.NullString
}

// WriteTurnAudit logs one turn-audit entry.
func (s *Store) WriteTurnAudit(ctx context.Context, traceID, userID, intent, language, result, errorMsg string) error {
	var languageNull sql.NullString
	if language != "" {
		languageNull = sql.NullString{String: language, Valid: true}
	}

	var errorNull sql.NullString
	if errorMsg != "" {
		errorNull = sql.NullString{String: errorMsg, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turn_audit (ts, trace_id, user_id, intent, language, result, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, timestamp(time.Now()), traceID, userID, intent, languageNull, result, errorNull)

	if err != nil {
		return fmt.Errorf("failed to write turn audit: %w", err)
	}

	return nil
}

// TurnAuditByTrace retrieves the audit entries recorded under a trace ID.
func (s *Store) TurnAuditByTrace(ctx context.Context, traceID string) ([]*TurnAudit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, trace_id, user_id, intent, language, result, error_message
		FROM turn_audit
		WHERE trace_id = ?
		ORDER BY id ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turn audit by trace: %w", err)
	}
	defer rows.Close()

	return scanTurnAudit(rows)
}

// RecentTurnAudit retrieves the newest audit entries, newest first.
func (s *Store) RecentTurnAudit(ctx context.Context, limit int) ([]*TurnAudit, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, trace_id, user_id, intent, language, result, error_message
		FROM turn_audit
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query turn audit: %w", err)
	}
	defer rows.Close()

	return scanTurnAudit(rows)
}

func scanTurnAudit(rows *sql.Rows) ([]*TurnAudit, error) {
	var entries []*TurnAudit
	for rows.Next() {
		entry := &TurnAudit{}
		var ts string
		err := rows.Scan(
			&entry.ID, &ts, &entry.TraceID, &entry.UserID,
			&entry.Intent, &entry.Language, &entry.Result, &entry.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn audit entry: %w", err)
		}

		t, err := parseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("failed to read turn audit ts: %w", err)
		}
		entry.Timestamp = t

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turn audit: %w", err)
	}

	return entries, nil
}
