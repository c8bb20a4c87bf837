package database

import "database/sql"

// InsertAssessment stores a scored questionnaire submission.
func (db *DB) InsertAssessment(r AssessmentRecord) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO scl90_record (owner_id, total_score, average_score, positive_items_count,
		factor_results, abnormal_items, answers) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.OwnerID, r.TotalScore, r.AverageScore, r.PositiveItemsCount,
		r.FactorResults, r.AbnormalItems, r.Answers,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetAssessmentHistory returns an owner's submissions, newest first.
func (db *DB) GetAssessmentHistory(ownerID string) ([]AssessmentSummary, error) {
	rows, err := db.conn.Query(
		`SELECT id, total_score, average_score, created_at FROM scl90_record
		WHERE owner_id = ? ORDER BY id DESC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []AssessmentSummary{}
	for rows.Next() {
		var s AssessmentSummary
		if err := rows.Scan(&s.ID, &s.TotalScore, &s.AverageScore, &s.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, s)
	}
	return history, rows.Err()
}

// GetAssessment returns a submission if it belongs to the owner.
func (db *DB) GetAssessment(ownerID string, recordID int64) (*AssessmentRecord, error) {
	return db.scanAssessment(db.conn.QueryRow(
		`SELECT id, owner_id, total_score, average_score, positive_items_count,
		factor_results, abnormal_items, answers, created_at
		FROM scl90_record WHERE id = ? AND owner_id = ?`, recordID, ownerID,
	))
}

// GetLatestAssessment returns the owner's most recent submission, or nil.
func (db *DB) GetLatestAssessment(ownerID string) (*AssessmentRecord, error) {
	return db.scanAssessment(db.conn.QueryRow(
		`SELECT id, owner_id, total_score, average_score, positive_items_count,
		factor_results, abnormal_items, answers, created_at
		FROM scl90_record WHERE owner_id = ? ORDER BY id DESC LIMIT 1`, ownerID,
	))
}

func (db *DB) scanAssessment(row *sql.Row) (*AssessmentRecord, error) {
	var r AssessmentRecord
	err := row.Scan(&r.ID, &r.OwnerID, &r.TotalScore, &r.AverageScore, &r.PositiveItemsCount,
		&r.FactorResults, &r.AbnormalItems, &r.Answers, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
