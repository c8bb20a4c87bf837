// Package assessment records questionnaire submissions and serves the
// owner's latest result summary.
package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/TobiSchelling/MindCare/internal/cache"
	"github.com/TobiSchelling/MindCare/internal/database"
	"github.com/TobiSchelling/MindCare/internal/knowledge"
	"github.com/TobiSchelling/MindCare/internal/scl90"
)

// ReportTitle is the title of the private knowledge entry written on submit.
const ReportTitle = "SCL-90测评报告"

// Detail is a stored submission with its full result.
type Detail struct {
	ID int64 `json:"id"`
	scl90.Result
	CreatedAt string `json:"created_at"`
}

// Service scores, stores and summarizes questionnaire submissions.
type Service struct {
	db        *database.DB
	knowledge *knowledge.Fusion
	cache     cache.SummaryCache
}

// NewService creates a Service. fusion and summaries may be nil.
func NewService(db *database.DB, fusion *knowledge.Fusion, summaries cache.SummaryCache) *Service {
	return &Service{db: db, knowledge: fusion, cache: summaries}
}

// Submit scores answers and stores the result for ownerID. Validation
// failures match scl90.ErrValidation. After storing, a report is added to
// the owner's private knowledge and the cached summary is replaced; both are
// best-effort.
func (s *Service) Submit(ctx context.Context, ownerID string, answers scl90.AnswerSet) (int64, *scl90.Result, error) {
	result, err := scl90.Score(answers)
	if err != nil {
		return 0, nil, err
	}

	factors, err := json.Marshal(result.FactorResults)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding factor results: %w", err)
	}
	abnormal, err := json.Marshal(result.AbnormalItems)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding abnormal items: %w", err)
	}
	rawAnswers, err := json.Marshal(answers)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding answers: %w", err)
	}

	id, err := s.db.InsertAssessment(database.AssessmentRecord{
		OwnerID:            ownerID,
		TotalScore:         result.TotalScore,
		AverageScore:       result.AverageScore,
		PositiveItemsCount: result.PositiveItemsCount,
		FactorResults:      string(factors),
		AbnormalItems:      string(abnormal),
		Answers:            string(rawAnswers),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("saving assessment: %w", err)
	}
	log.Printf("Stored SCL-90 record %d for %s (total %d)", id, ownerID, result.TotalScore)

	if s.knowledge != nil {
		if _, err := s.knowledge.AddPrivate(ctx, ownerID, ReportTitle, scl90.KnowledgeSummary(result)); err != nil {
			log.Printf("Failed to sync SCL-90 report to knowledge for %s: %v", ownerID, err)
		}
	}
	s.refreshCache(ctx, ownerID, scl90.Summary(result))

	return id, result, nil
}

// refreshCache overwrites the cached summary with the one just stored, so a
// read that loaded the previous record cannot leave it behind. If the write
// fails the entry is dropped instead.
func (s *Service) refreshCache(ctx context.Context, ownerID, summary string) {
	if s.cache == nil {
		return
	}
	err := s.cache.Set(ctx, ownerID, summary)
	if err == nil {
		return
	}
	log.Printf("Failed to refresh summary cache for %s: %v", ownerID, err)
	if err := s.cache.Invalidate(ctx, ownerID); err != nil {
		log.Printf("Failed to invalidate summary cache for %s: %v", ownerID, err)
	}
}

// History lists the owner's submissions, newest first.
func (s *Service) History(ownerID string) ([]database.AssessmentSummary, error) {
	return s.db.GetAssessmentHistory(ownerID)
}

// Detail returns a stored submission, or nil if it does not exist or
// belongs to another owner.
func (s *Service) Detail(ownerID string, recordID int64) (*Detail, error) {
	rec, err := s.db.GetAssessment(ownerID, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return decodeRecord(rec)
}

func decodeRecord(rec *database.AssessmentRecord) (*Detail, error) {
	d := &Detail{
		ID: rec.ID,
		Result: scl90.Result{
			TotalScore:         rec.TotalScore,
			AverageScore:       rec.AverageScore,
			PositiveItemsCount: rec.PositiveItemsCount,
			AbnormalItems:      []scl90.AbnormalItem{},
		},
		CreatedAt: rec.CreatedAt,
	}
	if err := json.Unmarshal([]byte(rec.FactorResults), &d.FactorResults); err != nil {
		return nil, fmt.Errorf("decoding factor results of record %d: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(rec.AbnormalItems), &d.AbnormalItems); err != nil {
		return nil, fmt.Errorf("decoding abnormal items of record %d: %w", rec.ID, err)
	}
	return d, nil
}

// LatestSummary returns the one-line summary of the owner's most recent
// submission, or "" if there is none. Cache failures fall through to the
// store.
func (s *Service) LatestSummary(ctx context.Context, ownerID string) (string, error) {
	if s.cache != nil {
		summary, found, err := s.cache.Get(ctx, ownerID)
		if err != nil {
			log.Printf("Summary cache read failed for %s: %v", ownerID, err)
		} else if found {
			return summary, nil
		}
	}

	rec, err := s.db.GetLatestAssessment(ownerID)
	if err != nil {
		return "", fmt.Errorf("loading latest assessment: %w", err)
	}
	summary := ""
	if rec != nil {
		var abnormal []scl90.AbnormalItem
		if err := json.Unmarshal([]byte(rec.AbnormalItems), &abnormal); err != nil {
			return "", fmt.Errorf("decoding abnormal items of record %d: %w", rec.ID, err)
		}
		summary = scl90.SummaryFromItems(rec.TotalScore, abnormal)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, ownerID, summary); err != nil {
			log.Printf("Summary cache write failed for %s: %v", ownerID, err)
		}
	}
	return summary, nil
}
