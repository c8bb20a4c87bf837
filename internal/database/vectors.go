package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertVector stores an embedded knowledge text.
func (db *DB) InsertVector(v KnowledgeVector) (int64, error) {
	data, err := json.Marshal(v.Embedding)
	if err != nil {
		return 0, fmt.Errorf("marshaling embedding: %w", err)
	}
	result, err := db.conn.Exec(
		`INSERT INTO knowledge_vectors (knowledge_id, scope, owner_id, title, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.KnowledgeID, v.Scope, v.OwnerID, v.Title, v.Content, string(data),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetSharedVectors returns every vector in the shared partition.
func (db *DB) GetSharedVectors() ([]KnowledgeVector, error) {
	rows, err := db.conn.Query(
		`SELECT id, knowledge_id, scope, owner_id, title, content, embedding
		FROM knowledge_vectors WHERE scope = 'shared' ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVectors(rows)
}

// GetPrivateVectors returns every vector in the owner's private partition.
func (db *DB) GetPrivateVectors(ownerID string) ([]KnowledgeVector, error) {
	rows, err := db.conn.Query(
		`SELECT id, knowledge_id, scope, owner_id, title, content, embedding
		FROM knowledge_vectors WHERE scope = 'private' AND owner_id = ? ORDER BY id`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVectors(rows)
}

func scanVectors(rows *sql.Rows) ([]KnowledgeVector, error) {
	var vectors []KnowledgeVector
	for rows.Next() {
		var v KnowledgeVector
		var raw string
		if err := rows.Scan(&v.ID, &v.KnowledgeID, &v.Scope, &v.OwnerID, &v.Title, &v.Content, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &v.Embedding); err != nil {
			return nil, fmt.Errorf("decoding embedding %d: %w", v.ID, err)
		}
		vectors = append(vectors, v)
	}
	return vectors, rows.Err()
}
