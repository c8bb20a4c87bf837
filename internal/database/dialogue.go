package database

import (
	"database/sql"
	"fmt"
)

const turnColumns = "id, owner_id, session_id, user_query, system_reply, COALESCE(emotion, ''), COALESCE(risk_level, ''), created_at"

// InsertTurn appends a turn and updates the session counters in one
// transaction. firstTitle replaces the session title only when the session
// had no turns yet. Returns sql.ErrNoRows if the session does not belong to
// the turn's owner.
func (db *DB) InsertTurn(t Turn, firstTitle string) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Update first so the write lock is taken before the insert.
	result, err := tx.Exec(
		`UPDATE dialogue_session
		SET message_count = message_count + 1,
		    title = CASE WHEN message_count = 0 THEN ? ELSE title END,
		    updated_at = datetime('now')
		WHERE session_id = ? AND owner_id = ?`,
		firstTitle, t.SessionID, t.OwnerID,
	)
	if err != nil {
		return 0, fmt.Errorf("updating session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("session %s: %w", t.SessionID, sql.ErrNoRows)
	}

	result, err = tx.Exec(
		`INSERT INTO dialogue (owner_id, session_id, user_query, system_reply, emotion, risk_level)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.OwnerID, t.SessionID, t.UserQuery, t.SystemReply, t.Emotion, t.RiskLevel,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting turn: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// GetRecentTurns returns at most limit of the newest turns, ordered oldest
// to newest.
func (db *DB) GetRecentTurns(ownerID, sessionID string, limit int) ([]Turn, error) {
	rows, err := db.conn.Query(
		`SELECT * FROM (
			SELECT `+turnColumns+` FROM dialogue
			WHERE owner_id = ? AND session_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		ownerID, sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

// GetSessionTurns returns all turns of a session, oldest first.
func (db *DB) GetSessionTurns(ownerID, sessionID string) ([]Turn, error) {
	rows, err := db.conn.Query(
		"SELECT "+turnColumns+" FROM dialogue WHERE owner_id = ? AND session_id = ? ORDER BY id ASC",
		ownerID, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

func scanTurns(rows *sql.Rows) ([]Turn, error) {
	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.SessionID, &t.UserQuery, &t.SystemReply,
			&t.Emotion, &t.RiskLevel, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
