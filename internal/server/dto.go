package server

import (
	"hindsight/internal/domain"
	"hindsight/internal/repo"
)

// Response payloads. Request bodies are the validate package's input types;
// the validators are the single source of truth for what a payload means.

type OutcomeResponse struct {
	ID               string `json:"id"`
	DecisionID       string `json:"decision_id"`
	OwnerID          string `json:"owner_id"`
	Result           string `json:"result" enum:"good,bad,mixed"`
	ImpactScore      int    `json:"impact_score"`
	WasCorrectChoice bool   `json:"was_correct_choice"`
	LessonsLearned   string `json:"lessons_learned"`
	CreatedAt        string `json:"created_at" format:"date-time"`
}

type DecisionResponse struct {
	ID             string           `json:"id"`
	OwnerID        string           `json:"owner_id"`
	Title          string           `json:"title"`
	Context        string           `json:"context"`
	Reasoning      string           `json:"reasoning"`
	Options        []domain.Option  `json:"options"`
	ChosenOptionID string           `json:"chosen_option_id"`
	Prediction     string           `json:"prediction"`
	Confidence     int              `json:"confidence"`
	ReviewDate     string           `json:"review_date" format:"date-time"`
	Tags           []string         `json:"tags"`
	Status         string           `json:"status" enum:"pending,completed"`
	CreatedAt      string           `json:"created_at" format:"date-time"`
	Outcome        *OutcomeResponse `json:"outcome,omitempty"`
}

type StatsResponse struct {
	Pending   int            `json:"pending"`
	Completed int            `json:"completed"`
	ByResult  map[string]int `json:"by_result"`
}

type DevLoginRequest struct {
	UserID string `json:"user_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Conversion helpers

func outcomeResponse(o domain.Outcome) OutcomeResponse {
	return OutcomeResponse(o)
}

func decisionResponse(d domain.Decision) DecisionResponse {
	res := DecisionResponse{
		ID:             d.ID,
		OwnerID:        d.OwnerID,
		Title:          d.Title,
		Context:        d.Context,
		Reasoning:      d.Reasoning,
		Options:        d.Options,
		ChosenOptionID: d.ChosenOptionID,
		Prediction:     d.Prediction,
		Confidence:     d.Confidence,
		ReviewDate:     d.ReviewDate,
		Tags:           nonNilSlice(d.Tags),
		Status:         d.Status,
		CreatedAt:      d.CreatedAt,
	}
	if d.Outcome != nil {
		o := outcomeResponse(*d.Outcome)
		res.Outcome = &o
	}
	return res
}

func mapDecisions(in []domain.Decision) []DecisionResponse {
	out := make([]DecisionResponse, 0, len(in))
	for _, d := range in {
		out = append(out, decisionResponse(d))
	}
	return out
}

func statsResponse(s repo.Stats) StatsResponse {
	byResult := s.ByResult
	if byResult == nil {
		byResult = map[string]int{}
	}
	return StatsResponse{
		Pending:   s.Pending,
		Completed: s.Completed,
		ByResult:  byResult,
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
