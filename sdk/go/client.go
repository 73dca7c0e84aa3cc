package hindsightsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Hindsight HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Option is one alternative weighed for a decision.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Rationale string `json:"rationale,omitempty"`
}

// Decision represents the API decision model.
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
	ReviewDate     string   `json:"review_date"`
	Tags           []string `json:"tags"`
	Status         string   `json:"status"`
	CreatedAt      string   `json:"created_at"`
	Outcome        *Outcome `json:"outcome,omitempty"`
}

// Outcome represents the single logged outcome of a decision.
type Outcome struct {
	ID               string `json:"id"`
	DecisionID       string `json:"decision_id"`
	OwnerID          string `json:"owner_id"`
	Result           string `json:"result"`
	ImpactScore      int    `json:"impact_score"`
	WasCorrectChoice bool   `json:"was_correct_choice"`
	LessonsLearned   string `json:"lessons_learned"`
	CreatedAt        string `json:"created_at"`
}

// DecisionInput is the payload for recording a decision.
type DecisionInput struct {
	Title          string   `json:"title"`
	Context        string   `json:"context"`
	Reasoning      string   `json:"reasoning"`
	Options        []Option `json:"options"`
	ChosenOptionID string   `json:"chosen_option_id"`
	Prediction     string   `json:"prediction"`
	Confidence     int      `json:"confidence"`
	ReviewDate     string   `json:"review_date"`
	Tags           []string `json:"tags,omitempty"`
}

// OutcomeInput is the payload for logging an outcome.
type OutcomeInput struct {
	DecisionID       string `json:"decision_id"`
	Result           string `json:"result"`
	ImpactScore      int    `json:"impact_score"`
	WasCorrectChoice bool   `json:"was_correct_choice"`
	LessonsLearned   string `json:"lessons_learned"`
}

// Stats summarizes a journal.
type Stats struct {
	Pending   int            `json:"pending"`
	Completed int            `json:"completed"`
	ByResult  map[string]int `json:"by_result"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateDecision records a new decision.
func (c *Client) CreateDecision(ctx context.Context, in DecisionInput) (Decision, error) {
	var resp Decision
	err := c.do(ctx, http.MethodPost, "v0/decisions", in, &resp)
	return resp, err
}

// ListDecisions returns all decisions for the authenticated user,
// pending first, newest first.
func (c *Client) ListDecisions(ctx context.Context) ([]Decision, error) {
	var resp []Decision
	err := c.do(ctx, http.MethodGet, "v0/decisions", nil, &resp)
	return resp, err
}

// GetDecision fetches a decision by id, outcome attached when present.
func (c *Client) GetDecision(ctx context.Context, id string) (Decision, error) {
	var resp Decision
	err := c.do(ctx, http.MethodGet, "v0/decisions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// DeleteDecision deletes a decision. The server refuses with 409 once
// an outcome has been logged.
func (c *Client) DeleteDecision(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/decisions/"+url.PathEscape(id), nil, nil)
}

// LogOutcome logs the single outcome for a decision and completes it.
func (c *Client) LogOutcome(ctx context.Context, in OutcomeInput) (Outcome, error) {
	var resp Outcome
	err := c.do(ctx, http.MethodPost, "v0/outcomes", in, &resp)
	return resp, err
}

// Stats returns journal counters for the authenticated user.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "v0/decisions/stats", nil, &resp)
	return resp, err
}

// DevLogin mints a development token and stores it on the client.
func (c *Client) DevLogin(ctx context.Context, userID string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]any{"user_id": userID}
	if err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", body, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
