package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Profile is a user's persisted display preferences.  Banking data lives in
// the backend; this is only what the voice front end needs to greet and
// speak to the user.
type Profile struct {
	UserID    string
	Name      string
	Language  string
	Tone      string
	CreatedAt time.Time
}

// EnsureProfile returns the profile for userID, creating it with the
// configured default language and tone when absent.  Creation is
// idempotent: a duplicate insert is silently ignored and the existing row
// is returned untouched, so racing first contacts resolve to one profile.
func (s *Store) EnsureProfile(ctx context.Context, userID, name string) (*Profile, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, name, preferred_language, voice_tone, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, name, s.cfg.DefaultLanguage, s.cfg.DefaultTone, timestamp(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}

	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %q missing after insert", userID)
	}
	return profile, nil
}

// GetProfile returns the stored profile for userID, or nil when the user
// has never been seen.  Absence is a legitimate state the caller acts on,
// not an error.
func (s *Store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	profile := &Profile{UserID: userID}
	var createdAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT name, preferred_language, voice_tone, created_at
		FROM users
		WHERE user_id = ?
	`, userID).Scan(&profile.Name, &profile.Language, &profile.Tone, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	t, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile created_at: %w", err)
	}
	profile.CreatedAt = t

	return profile, nil
}

// UpdatePreferences applies a partial update to a profile.  Empty strings
// leave the corresponding field unchanged; updating a user with no profile
// affects zero rows and is not an error.
func (s *Store) UpdatePreferences(ctx context.Context, userID, language, tone string) error {
	if language != "" {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE users SET preferred_language = ? WHERE user_id = ?
		`, language, userID); err != nil {
			return fmt.Errorf("failed to update preferred language: %w", err)
		}
	}

	if tone != "" {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE users SET voice_tone = ? WHERE user_id = ?
		`, tone, userID); err != nil {
			return fmt.Errorf("failed to update voice tone: %w", err)
		}
	}

	return nil
}
