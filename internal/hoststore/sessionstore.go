package hoststore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionStore implements the session key/value interface over the
// sessions table, scoped to one session ID.
type SessionStore struct {
	db        *sql.DB
	sessionID string
	nowFunc   func() time.Time
}

const (
	sqlSessionGet = `SELECT value FROM sessions WHERE session_id = ? AND key = ?`

	sqlSessionSet = `INSERT INTO sessions (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET
		 value = excluded.value,
		 updated_at = excluded.updated_at`

	sqlSessionDelete = `DELETE FROM sessions WHERE session_id = ? AND key = ?`
)

func (s *SessionStore) Get(key string) (string, bool, error) {
	var value string

	err := s.db.QueryRow(sqlSessionGet, s.sessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("hoststore: reading session key %s: %w", key, err)
	}

	return value, true, nil
}

func (s *SessionStore) Set(key, value string) error {
	if _, err := s.db.Exec(sqlSessionSet, s.sessionID, key, value, s.nowFunc().Unix()); err != nil {
		return fmt.Errorf("hoststore: writing session key %s: %w", key, err)
	}

	return nil
}

func (s *SessionStore) Delete(key string) error {
	if _, err := s.db.Exec(sqlSessionDelete, s.sessionID, key); err != nil {
		return fmt.Errorf("hoststore: deleting session key %s: %w", key, err)
	}

	return nil
}
