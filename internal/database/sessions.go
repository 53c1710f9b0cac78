package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (db *DB) CreateSession(ctx context.Context, token, telefone string, expiresAt time.Time) error {
	_, err := db.exec(ctx, `
		INSERT INTO sessions (token, telefone, expires_at) VALUES (?, ?, ?)
	`, token, telefone, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns the owner and expiry of a session token
func (db *DB) GetSession(ctx context.Context, token string) (string, time.Time, error) {
	var telefone string
	var expiresAt time.Time
	err := db.queryRow(ctx, `
		SELECT telefone, expires_at FROM sessions WHERE token = ?
	`, token).Scan(&telefone, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("query session: %w", err)
	}
	return telefone, expiresAt, nil
}

func (db *DB) DeleteSession(ctx context.Context, token string) error {
	if _, err := db.exec(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now
func (db *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.exec(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
