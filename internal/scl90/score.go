package scl90

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	minScore = 1
	maxScore = 5

	// abnormalThreshold marks an item as a reported symptom (moderate or worse).
	abnormalThreshold = 3
	// positiveThreshold marks an item as positive (any symptom at all).
	positiveThreshold = 2
)

// ErrValidation is matched by every answer validation failure.
var ErrValidation = errors.New("invalid questionnaire answers")

// IncompleteAnswersError reports that not all 90 items were answered.
type IncompleteAnswersError struct {
	Received int
	Missing  []int
}

func (e *IncompleteAnswersError) Error() string {
	return fmt.Sprintf("incomplete answers: %d items required, received %d", ItemCount, e.Received)
}

func (e *IncompleteAnswersError) Is(target error) bool { return target == ErrValidation }

// InvalidScoreError reports an item whose score is not an integer in [1,5].
type InvalidScoreError struct {
	ItemID int
	Value  string
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid score %s for item %d: must be an integer from %d to %d", e.Value, e.ItemID, minScore, maxScore)
}

func (e *InvalidScoreError) Is(target error) bool { return target == ErrValidation }

// AnswerSet maps item ids to scores as they arrive from a client. Keys are
// decimal item ids without padding or sign; values may be numbers or numeric
// strings.
type AnswerSet map[string]any

// FromInts builds an AnswerSet from integer ids and scores.
func FromInts(m map[int]int) AnswerSet {
	out := make(AnswerSet, len(m))
	for id, score := range m {
		out[strconv.Itoa(id)] = score
	}
	return out
}

// FactorResult is the aggregate for one factor.
type FactorResult struct {
	Name      string  `json:"name"`
	MeanScore float64 `json:"mean_score"`
	RawSum    int     `json:"raw_sum"`
}

// AbnormalItem is an item scored at or above the abnormal threshold.
type AbnormalItem struct {
	QuestionID   int    `json:"question_id"`
	QuestionText string `json:"question_text"`
	Score        int    `json:"score"`
	FactorName   string `json:"factor_name"`
}

// Result is the scored questionnaire.
type Result struct {
	TotalScore         int                     `json:"total_score"`
	FactorResults      map[Factor]FactorResult `json:"factor_results"`
	AbnormalItems      []AbnormalItem          `json:"abnormal_items"`
	AverageScore       float64                 `json:"average_score"`
	PositiveItemsCount int                     `json:"positive_items_count"`
}

// Score validates a complete answer set and computes the result. It has no
// side effects and returns identical results for identical input.
func Score(answers AnswerSet) (*Result, error) {
	scores, err := normalize(answers)
	if err != nil {
		return nil, err
	}

	r := &Result{
		FactorResults: make(map[Factor]FactorResult, len(factorOrder)),
		AbnormalItems: []AbnormalItem{},
	}

	sums := make(map[Factor]int, len(factorOrder))
	for i, q := range questions {
		score := scores[i]
		r.TotalScore += score
		sums[q.Factor] += score

		if score >= positiveThreshold {
			r.PositiveItemsCount++
		}
		if score >= abnormalThreshold {
			r.AbnormalItems = append(r.AbnormalItems, AbnormalItem{
				QuestionID:   q.ID,
				QuestionText: q.Text,
				Score:        score,
				FactorName:   q.Factor.Name(),
			})
		}
	}

	for _, f := range factorOrder {
		r.FactorResults[f] = FactorResult{
			Name:      f.Name(),
			MeanScore: round2(float64(sums[f]) / float64(ItemsInFactor(f))),
			RawSum:    sums[f],
		}
	}
	r.AverageScore = round2(float64(r.TotalScore) / ItemCount)

	return r, nil
}

// normalize returns the scores indexed by item id - 1. Only canonical keys
// ("1".."90") are read; anything else, including aliases such as "01" or
// " 1", is ignored.
func normalize(answers AnswerSet) ([ItemCount]int, error) {
	var scores [ItemCount]int
	var raw [ItemCount]any
	var seen [ItemCount]bool

	for i := range raw {
		value, ok := answers[strconv.Itoa(i+1)]
		if !ok {
			continue
		}
		raw[i] = value
		seen[i] = true
	}

	var missing []int
	for i := range seen {
		if !seen[i] {
			missing = append(missing, i+1)
		}
	}
	if len(missing) > 0 {
		return scores, &IncompleteAnswersError{Received: ItemCount - len(missing), Missing: missing}
	}

	// Validate in id order so the reported item is deterministic.
	for i := range raw {
		score, ok := toScore(raw[i])
		if !ok || score < minScore || score > maxScore {
			return scores, &InvalidScoreError{ItemID: i + 1, Value: formatValue(raw[i])}
		}
		scores[i] = score
	}
	return scores, nil
}

func toScore(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func formatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(n)
	default:
		return fmt.Sprint(n)
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Summary renders the compact one-line description used as profile context.
func Summary(r *Result) string {
	if r == nil {
		return ""
	}
	return SummaryFromItems(r.TotalScore, r.AbnormalItems)
}

// SummaryFromItems renders a summary from stored record fields.
func SummaryFromItems(total int, abnormal []AbnormalItem) string {
	symptoms := "无"
	if len(abnormal) > 0 {
		texts := make([]string, len(abnormal))
		for i, item := range abnormal {
			texts[i] = item.QuestionText
		}
		symptoms = strings.Join(texts, "、")
	}
	return fmt.Sprintf("SCL-90总分: %d, 异常症状: %s", total, symptoms)
}

// KnowledgeSummary renders the longer summary synced into the owner's
// private knowledge partition, including each abnormal item's score.
func KnowledgeSummary(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "用户最新的SCL-90测评结果摘要：总分%d，", r.TotalScore)
	if len(r.AbnormalItems) == 0 {
		b.WriteString("无明显异常项。")
		return b.String()
	}
	parts := make([]string, len(r.AbnormalItems))
	for i, item := range r.AbnormalItems {
		parts[i] = fmt.Sprintf("%s(%d分)", item.QuestionText, item.Score)
	}
	b.WriteString("异常项：")
	b.WriteString(strings.Join(parts, "、"))
	return b.String()
}
