package validate_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hindsight/internal/domain"
	"hindsight/internal/validate"
)

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func validDecisionInput() validate.DecisionInput {
	return validate.DecisionInput{
		Title:     "Switch payment provider",
		Context:   "Current provider fees climbed past budget.",
		Reasoning: "Lower fees and a better fraud toolkit outweigh the migration cost.",
		Options: []domain.Option{
			{ID: "stay", Text: "Stay with current provider"},
			{ID: "switch", Text: "Migrate to the new provider"},
		},
		ChosenOptionID: "switch",
		Prediction:     "Fees drop 20% within two quarters",
		Confidence:     intPtr(4),
		ReviewDate:     "2024-06-01T00:00:00Z",
		Tags:           []string{"finance"},
	}
}

func TestDecisionValid(t *testing.T) {
	d, errs := validate.Decision(validDecisionInput(), testNow)
	require.Nil(t, errs)
	assert.Equal(t, domain.StatusPending, d.Status)
	assert.Equal(t, 4, d.Confidence)
	assert.Equal(t, "2024-06-01T00:00:00Z", d.ReviewDate)
	assert.Equal(t, []string{"finance"}, d.Tags)
}

func TestDecisionCollectsAllViolations(t *testing.T) {
	in := validate.DecisionInput{
		Title:      "ab",
		Options:    []domain.Option{{ID: "only", Text: "one"}},
		Confidence: intPtr(6),
		ReviewDate: "not-a-date",
	}
	_, errs := validate.Decision(in, testNow)
	require.NotNil(t, errs)
	for _, field := range []string{
		"title", "context", "reasoning", "options",
		"chosen_option_id", "prediction", "confidence", "review_date",
	} {
		assert.Contains(t, errs, field)
	}
}

func TestDecisionTitleBounds(t *testing.T) {
	in := validDecisionInput()
	in.Title = strings.Repeat("x", 201)
	_, errs := validate.Decision(in, testNow)
	require.NotNil(t, errs)
	assert.Contains(t, errs, "title")

	in.Title = strings.Repeat("x", 200)
	_, errs = validate.Decision(in, testNow)
	assert.Nil(t, errs)
}

func TestDecisionChosenMustReferenceOption(t *testing.T) {
	in := validDecisionInput()
	in.ChosenOptionID = "neither"
	_, errs := validate.Decision(in, testNow)
	require.NotNil(t, errs)
	assert.Contains(t, errs, "chosen_option_id")
	assert.Len(t, errs, 1)
}

func TestDecisionOptionCount(t *testing.T) {
	in := validDecisionInput()
	for i := 0; i < 4; i++ {
		in.Options = append(in.Options, domain.Option{ID: "extra", Text: "extra"})
	}
	_, errs := validate.Decision(in, testNow)
	require.NotNil(t, errs)
	assert.Contains(t, errs, "options")
}

func TestDecisionReviewDateMustBeFuture(t *testing.T) {
	in := validDecisionInput()
	in.ReviewDate = testNow.Format(time.RFC3339) // equal to now is not future
	_, errs := validate.Decision(in, testNow)
	require.NotNil(t, errs)
	assert.Contains(t, errs, "review_date")

	in.ReviewDate = testNow.Add(time.Second).Format(time.RFC3339)
	_, errs = validate.Decision(in, testNow)
	assert.Nil(t, errs)
}

func TestDecisionConfidenceRequired(t *testing.T) {
	in := validDecisionInput()
	in.Confidence = nil
	_, errs := validate.Decision(in, testNow)
	require.NotNil(t, errs)
	assert.Contains(t, errs, "confidence")
}

func TestDecisionTagsDefaultEmpty(t *testing.T) {
	in := validDecisionInput()
	in.Tags = nil
	d, errs := validate.Decision(in, testNow)
	require.Nil(t, errs)
	assert.NotNil(t, d.Tags)
	assert.Empty(t, d.Tags)
}

func TestOutcomeValid(t *testing.T) {
	o, errs := validate.Outcome(validate.OutcomeInput{
		DecisionID:       "d-1",
		Result:           domain.ResultMixed,
		ImpactScore:      intPtr(3),
		WasCorrectChoice: boolPtr(true),
		LessonsLearned:   "Should have benchmarked fees earlier.",
	})
	require.Nil(t, errs)
	assert.Equal(t, "d-1", o.DecisionID)
	assert.True(t, o.WasCorrectChoice)
}

func TestOutcomeCollectsAllViolations(t *testing.T) {
	_, errs := validate.Outcome(validate.OutcomeInput{
		Result:         "great",
		ImpactScore:    intPtr(0),
		LessonsLearned: "ok",
	})
	require.NotNil(t, errs)
	for _, field := range []string{
		"decision_id", "result", "impact_score", "was_correct_choice", "lessons_learned",
	} {
		assert.Contains(t, errs, field)
	}
}

func TestErrorsMessageListsFields(t *testing.T) {
	errs := validate.Errors{"title": "bad", "confidence": "bad"}
	assert.Equal(t, "invalid fields: confidence, title", errs.Error())
}
