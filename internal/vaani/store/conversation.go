package store

import (
	"context"
	"fmt"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a transcribed user utterance.
	RoleUser Role = "user"
	// RoleAssistant marks a spoken assistant reply.
	RoleAssistant Role = "assistant"
)

// ContextMessage is one entry of the chronological window handed to the
// backend with each turn.
type ContextMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AppendMessage appends one immutable record to the conversation log with a
// store-assigned id and the current timestamp.  The log is not
// session-scoped: appends succeed whether or not a session is open, and
// records are never edited or deleted.
func (s *Store) AppendMessage(ctx context.Context, userID string, role Role, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation (user_id, role, message, timestamp)
		VALUES (?, ?, ?, ?)
	`, userID, string(role), message, timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit of the newest messages for userID in
// chronological order (oldest first, newest last).  Retrieval walks the id
// index backward from the newest row and reverses in memory, so the read
// stays bounded by limit no matter how long the log grows while the caller
// still sees a time-ascending dialogue.  limit <= 0 returns nothing.
func (s *Store) RecentMessages(ctx context.Context, userID string, limit int) ([]ContextMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, message FROM conversation
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var messages []ContextMessage
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, ContextMessage{Role: Role(role), Content: content})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	// Newest-first from the index; callers need oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MessageCount returns the number of logged messages for userID.
func (s *Store) MessageCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversation WHERE user_id = ?", userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
