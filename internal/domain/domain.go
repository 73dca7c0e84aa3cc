package domain

// Decision statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Outcome results.
const (
	ResultGood  = "good"
	ResultBad   = "bad"
	ResultMixed = "mixed"
)

// Option is one of the alternatives a decision chose between.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Rationale string `json:"rationale,omitempty"`
}

// Decision is the write-once record of a choice, its reasoning, and a
// prediction. Content never changes after creation; only Status flips,
// exactly once, when an outcome is logged.
type Decision struct {
	ID             string   `json:"id"`
	OwnerID        string   `json:"owner_id"`
	Title          string   `json:"title"`
	Context        string   `json:"context"`
	Reasoning      string   `json:"reasoning"`
	Options        []Option `json:"options"`
	ChosenOptionID string   `json:"chosen_option_id"`
	Prediction     string   `json:"prediction"`
	Confidence     int      `json:"confidence"`
	ReviewDate     string   `json:"review_date" format:"date-time"`
	Tags           []string `json:"tags"`
	Status         string   `json:"status" enum:"pending,completed"`
	CreatedAt      string   `json:"created_at" format:"date-time"`

	// Populated by joined reads; nil while the decision is pending.
	Outcome *Outcome `json:"outcome,omitempty"`
}

// Outcome caps a decision's lifecycle. At most one exists per decision,
// enforced by a unique constraint on DecisionID.
type Outcome struct {
	ID               string `json:"id"`
	DecisionID       string `json:"decision_id"`
	OwnerID          string `json:"owner_id"`
	Result           string `json:"result" enum:"good,bad,mixed"`
	ImpactScore      int    `json:"impact_score"`
	WasCorrectChoice bool   `json:"was_correct_choice"`
	LessonsLearned   string `json:"lessons_learned"`
	CreatedAt        string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OwnerID    string `json:"owner_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
