package database

// Session is a conversation owned by a single client.
type Session struct {
	SessionID    string `json:"session_id"`
	OwnerID      string `json:"-"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Turn is one user query and system reply within a session. Turns are
// append-only.
type Turn struct {
	ID          int64  `json:"id"`
	OwnerID     string `json:"-"`
	SessionID   string `json:"session_id"`
	UserQuery   string `json:"user_query"`
	SystemReply string `json:"system_reply"`
	Emotion     string `json:"emotion"`
	RiskLevel   string `json:"risk_level"`
	CreatedAt   string `json:"created_at"`
}

// AssessmentRecord is a persisted questionnaire submission. FactorResults,
// AbnormalItems and Answers hold the JSON written at submission time.
type AssessmentRecord struct {
	ID                 int64
	OwnerID            string
	TotalScore         int
	AverageScore       float64
	PositiveItemsCount int
	FactorResults      string
	AbnormalItems      string
	Answers            string
	CreatedAt          string
}

// AssessmentSummary is the list view of a submission.
type AssessmentSummary struct {
	ID           int64   `json:"id"`
	TotalScore   int     `json:"total_score"`
	AverageScore float64 `json:"average_score"`
	CreatedAt    string  `json:"created_at"`
}

// Knowledge scopes.
const (
	ScopeShared  = "shared"
	ScopePrivate = "private"
)

// KnowledgeItem is a reference text in the shared or a private partition.
type KnowledgeItem struct {
	ID        int64   `json:"id"`
	Scope     string  `json:"type"`
	OwnerID   *string `json:"-"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"created_at"`
}

// KnowledgeVector is an embedded knowledge text used for similarity search.
type KnowledgeVector struct {
	ID          int64
	KnowledgeID *int64
	Scope       string
	OwnerID     *string
	Title       string
	Content     string
	Embedding   []float64
}

// Stats contains aggregate database statistics.
type Stats struct {
	Owners           int
	Sessions         int
	Turns            int
	Assessments      int
	SharedKnowledge  int
	PrivateKnowledge int
	Vectors          int
}
