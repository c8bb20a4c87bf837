package database

import (
	"database/sql"
	"fmt"
)

// DefaultSessionTitle is the title of a session before its first turn.
const DefaultSessionTitle = "New conversation"

const sessionColumns = "session_id, owner_id, title, message_count, created_at, updated_at"

// InsertSession creates an empty session.
func (db *DB) InsertSession(sessionID, ownerID string) error {
	_, err := db.conn.Exec(
		`INSERT INTO dialogue_session (session_id, owner_id, title, message_count) VALUES (?, ?, ?, 0)`,
		sessionID, ownerID, DefaultSessionTitle,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession returns the session if it exists and belongs to the owner.
func (db *DB) GetSession(ownerID, sessionID string) (*Session, error) {
	row := db.conn.QueryRow(
		"SELECT "+sessionColumns+" FROM dialogue_session WHERE session_id = ? AND owner_id = ?",
		sessionID, ownerID,
	)
	var s Session
	err := row.Scan(&s.SessionID, &s.OwnerID, &s.Title, &s.MessageCount, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSessionsForOwner returns the owner's sessions, most recently updated first.
func (db *DB) GetSessionsForOwner(ownerID string) ([]Session, error) {
	rows, err := db.conn.Query(
		"SELECT "+sessionColumns+` FROM dialogue_session WHERE owner_id = ?
		ORDER BY updated_at DESC, rowid DESC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.SessionID, &s.OwnerID, &s.Title, &s.MessageCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and all of its turns. Deleting a missing
// or foreign session is not an error.
func (db *DB) DeleteSession(ownerID, sessionID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM dialogue WHERE owner_id = ? AND session_id = ?", ownerID, sessionID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM dialogue_session WHERE owner_id = ? AND session_id = ?", ownerID, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteSessionsForOwner removes every session and turn of an owner.
func (db *DB) DeleteSessionsForOwner(ownerID string) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM dialogue WHERE owner_id = ?", ownerID); err != nil {
		return 0, err
	}
	result, err := tx.Exec("DELETE FROM dialogue_session WHERE owner_id = ?", ownerID)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
