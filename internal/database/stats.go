package database

// GetStats returns aggregate counts across all tables.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	queries := []struct {
		dest  *int
		query string
	}{
		{&s.Owners, "SELECT COUNT(DISTINCT owner_id) FROM dialogue_session"},
		{&s.Sessions, "SELECT COUNT(*) FROM dialogue_session"},
		{&s.Turns, "SELECT COUNT(*) FROM dialogue"},
		{&s.Assessments, "SELECT COUNT(*) FROM scl90_record"},
		{&s.SharedKnowledge, "SELECT COUNT(*) FROM knowledge_base WHERE scope = 'shared'"},
		{&s.PrivateKnowledge, "SELECT COUNT(*) FROM knowledge_base WHERE scope = 'private'"},
		{&s.Vectors, "SELECT COUNT(*) FROM knowledge_vectors"},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}
