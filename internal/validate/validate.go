// Package validate holds the pure field validators for journal writes. Every
// violation is collected before returning so a client sees all broken fields
// in a single response.
package validate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"hindsight/internal/domain"
)

// Field bounds for decision and outcome payloads.
const (
	TitleMinLen   = 3
	TitleMaxLen   = 200
	ContextMaxLen = 2000
	ReasonMaxLen  = 5000
	OptionsMin    = 2
	OptionsMax    = 5
	ScoreMin      = 1
	ScoreMax      = 5
	LessonsMinLen = 10
)

// Errors maps field name to a human-readable violation message.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}

// Details converts the error map for an API error envelope.
func (e Errors) Details() map[string]any {
	out := make(map[string]any, len(e))
	for f, msg := range e {
		out[f] = msg
	}
	return out
}

// DecisionInput is the raw create-decision payload.
type DecisionInput struct {
	Title          string          `json:"title"`
	Context        string          `json:"context"`
	Reasoning      string          `json:"reasoning"`
	Options        []domain.Option `json:"options"`
	ChosenOptionID string          `json:"chosen_option_id"`
	Prediction     string          `json:"prediction"`
	Confidence     *int            `json:"confidence"`
	ReviewDate     string          `json:"review_date"`
	Tags           []string        `json:"tags,omitempty"`
}

// OutcomeInput is the raw log-outcome payload.
type OutcomeInput struct {
	DecisionID       string `json:"decision_id"`
	Result           string `json:"result"`
	ImpactScore      *int   `json:"impact_score"`
	WasCorrectChoice *bool  `json:"was_correct_choice"`
	LessonsLearned   string `json:"lessons_learned"`
}

// Decision checks a create payload against the journal's field rules and
// returns a normalized record ready for persistence. Owner, ID, and CreatedAt
// are assigned by the caller. now anchors the review_date future check.
func Decision(in DecisionInput, now time.Time) (domain.Decision, Errors) {
	errs := Errors{}

	if l := len(in.Title); l < TitleMinLen || l > TitleMaxLen {
		errs["title"] = fmt.Sprintf("title must be between %d and %d characters", TitleMinLen, TitleMaxLen)
	}
	if in.Context == "" || len(in.Context) > ContextMaxLen {
		errs["context"] = fmt.Sprintf("context is required and must not exceed %d characters", ContextMaxLen)
	}
	if in.Reasoning == "" || len(in.Reasoning) > ReasonMaxLen {
		errs["reasoning"] = fmt.Sprintf("reasoning is required and must not exceed %d characters", ReasonMaxLen)
	}
	if l := len(in.Options); l < OptionsMin || l > OptionsMax {
		errs["options"] = fmt.Sprintf("between %d and %d options are required", OptionsMin, OptionsMax)
	}
	if in.ChosenOptionID == "" {
		errs["chosen_option_id"] = "a chosen option is required"
	} else if !optionExists(in.Options, in.ChosenOptionID) {
		errs["chosen_option_id"] = "chosen option must reference one of the provided options"
	}
	if in.Prediction == "" {
		errs["prediction"] = "a prediction is required"
	}
	if in.Confidence == nil || *in.Confidence < ScoreMin || *in.Confidence > ScoreMax {
		errs["confidence"] = fmt.Sprintf("confidence must be an integer between %d and %d", ScoreMin, ScoreMax)
	}
	reviewDate, err := time.Parse(time.RFC3339, in.ReviewDate)
	if err != nil || !reviewDate.After(now) {
		errs["review_date"] = "review date must be a valid RFC 3339 timestamp in the future"
	}

	if len(errs) > 0 {
		return domain.Decision{}, errs
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.Decision{
		Title:          in.Title,
		Context:        in.Context,
		Reasoning:      in.Reasoning,
		Options:        in.Options,
		ChosenOptionID: in.ChosenOptionID,
		Prediction:     in.Prediction,
		Confidence:     *in.Confidence,
		ReviewDate:     reviewDate.UTC().Format(time.RFC3339),
		Tags:           tags,
		Status:         domain.StatusPending,
	}, nil
}

// Outcome checks a log-outcome payload. Owner is copied from the decision by
// the caller, never taken from the payload.
func Outcome(in OutcomeInput) (domain.Outcome, Errors) {
	errs := Errors{}

	if in.DecisionID == "" {
		errs["decision_id"] = "decision id is required"
	}
	switch in.Result {
	case domain.ResultGood, domain.ResultBad, domain.ResultMixed:
	default:
		errs["result"] = "result must be one of: good, bad, mixed"
	}
	if in.ImpactScore == nil || *in.ImpactScore < ScoreMin || *in.ImpactScore > ScoreMax {
		errs["impact_score"] = fmt.Sprintf("impact score must be an integer between %d and %d", ScoreMin, ScoreMax)
	}
	if in.WasCorrectChoice == nil {
		errs["was_correct_choice"] = "choice correctness must be provided as a boolean"
	}
	if len(in.LessonsLearned) < LessonsMinLen {
		errs["lessons_learned"] = fmt.Sprintf("lessons learned must be at least %d characters", LessonsMinLen)
	}

	if len(errs) > 0 {
		return domain.Outcome{}, errs
	}

	return domain.Outcome{
		DecisionID:       in.DecisionID,
		Result:           in.Result,
		ImpactScore:      *in.ImpactScore,
		WasCorrectChoice: *in.WasCorrectChoice,
		LessonsLearned:   in.LessonsLearned,
	}, nil
}

func optionExists(opts []domain.Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}
