package database

import "database/sql"

const knowledgeColumns = "id, scope, owner_id, title, content, created_at"

// InsertKnowledge stores a knowledge item. ownerID is nil for shared items.
func (db *DB) InsertKnowledge(scope string, ownerID *string, title, content string) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT INTO knowledge_base (scope, owner_id, title, content) VALUES (?, ?, ?, ?)",
		scope, ownerID, title, content,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetVisibleKnowledge returns the shared items plus the owner's private
// items, newest first.
func (db *DB) GetVisibleKnowledge(ownerID string) ([]KnowledgeItem, error) {
	rows, err := db.conn.Query(
		"SELECT "+knowledgeColumns+` FROM knowledge_base
		WHERE scope = 'shared' OR (scope = 'private' AND owner_id = ?)
		ORDER BY created_at DESC, id DESC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledge(rows)
}

// GetKnowledge returns a knowledge item by ID regardless of scope.
func (db *DB) GetKnowledge(id int64) (*KnowledgeItem, error) {
	row := db.conn.QueryRow("SELECT "+knowledgeColumns+" FROM knowledge_base WHERE id = ?", id)
	var k KnowledgeItem
	err := row.Scan(&k.ID, &k.Scope, &k.OwnerID, &k.Title, &k.Content, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// CountSharedKnowledge returns the number of shared items.
func (db *DB) CountSharedKnowledge() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM knowledge_base WHERE scope = 'shared'").Scan(&n)
	return n, err
}

// SharedKnowledgeTitleExists reports whether a shared item has the title.
func (db *DB) SharedKnowledgeTitleExists(title string) (bool, error) {
	var n int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM knowledge_base WHERE scope = 'shared' AND title = ?", title,
	).Scan(&n)
	return n > 0, err
}

// DeletePrivateKnowledge deletes an item only if it is private to the owner.
// Returns false if nothing was deleted.
func (db *DB) DeletePrivateKnowledge(ownerID string, id int64) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		"DELETE FROM knowledge_base WHERE id = ? AND owner_id = ? AND scope = 'private'",
		id, ownerID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.Exec("DELETE FROM knowledge_vectors WHERE knowledge_id = ?", id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func scanKnowledge(rows *sql.Rows) ([]KnowledgeItem, error) {
	items := []KnowledgeItem{}
	for rows.Next() {
		var k KnowledgeItem
		if err := rows.Scan(&k.ID, &k.Scope, &k.OwnerID, &k.Title, &k.Content, &k.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	return items, rows.Err()
}
