package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Session is one continuous run of the voice loop for a user, bounded by an
// open and (once closed) a close timestamp.
type Session struct {
	ID           int64
	UserID       string
	SessionStart time.Time
	// SessionEnd is nil while the session is open.
	SessionEnd *time.Time
}

// OpenSession records the start of a voice-loop run.  The store does not
// enforce exclusivity: a crash that skipped closure leaves an open row
// behind, and the next close targets only the newest open one.
func (s *Store) OpenSession(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, session_start)
		VALUES (?, ?)
	`, userID, timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	return nil
}

// CloseSession stamps session_end on the most recently opened session for
// userID that is still open.  Closing with nothing open is a no-op, so the
// caller can defer it unconditionally on every exit path.
func (s *Store) CloseSession(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET session_end = ?
		WHERE id = (
			SELECT id FROM sessions
			WHERE user_id = ? AND session_end IS NULL
			ORDER BY id DESC
			LIMIT 1
		)
	`, timestamp(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// Sessions returns all session rows for userID, oldest first.
func (s *Store) Sessions(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, session_start, session_end
		FROM sessions
		WHERE user_id = ?
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session := &Session{}
		var start string
		var end sql.NullString
		if err := rows.Scan(&session.ID, &session.UserID, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		t, err := parseTimestamp(start)
		if err != nil {
			return nil, fmt.Errorf("failed to read session_start: %w", err)
		}
		session.SessionStart = t

		if end.Valid {
			t, err := parseTimestamp(end.String)
			if err != nil {
				return nil, fmt.Errorf("failed to read session_end: %w", err)
			}
			session.SessionEnd = &t
		}

		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}
