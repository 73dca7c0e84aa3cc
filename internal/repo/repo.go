package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"hindsight/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// IsUniqueViolation reports whether err is a sqlite unique-constraint failure.
// The outcomes.decision_id constraint is the authoritative cardinality check;
// callers translate this into a conflict.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const decisionColumns = `id,owner_id,title,context,reasoning,options_json,chosen_option_id,prediction,confidence,review_date,tags_json,status,created_at`

func (r Repo) InsertDecisionTx(ctx context.Context, tx *sql.Tx, d domain.Decision) error {
	optionsJSON, err := json.Marshal(d.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	tagsJSON, err := json.Marshal(d.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO decisions(`+decisionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.OwnerID, d.Title, d.Context, d.Reasoning, string(optionsJSON), d.ChosenOptionID,
		d.Prediction, d.Confidence, d.ReviewDate, string(tagsJSON), d.Status, d.CreatedAt)
	return err
}

func scanDecision(scan func(dest ...any) error) (domain.Decision, error) {
	var d domain.Decision
	var optionsJSON, tagsJSON string
	err := scan(&d.ID, &d.OwnerID, &d.Title, &d.Context, &d.Reasoning, &optionsJSON, &d.ChosenOptionID,
		&d.Prediction, &d.Confidence, &d.ReviewDate, &tagsJSON, &d.Status, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal([]byte(optionsJSON), &d.Options); err != nil {
		return d, fmt.Errorf("decode options: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &d.Tags); err != nil {
		return d, fmt.Errorf("decode tags: %w", err)
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return d, nil
}

func (r Repo) GetDecision(ctx context.Context, id string) (domain.Decision, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE id=?`, id)
	return scanDecision(row.Scan)
}

// GetDecisionForUpdate fetches a decision inside a transaction together with
// its outcome existence; the single join keeps the guard's snapshot and the
// subsequent writes on one consistent view.
func (r Repo) GetDecisionForUpdate(ctx context.Context, tx *sql.Tx, id string) (domain.Decision, bool, error) {
	row := tx.QueryRowContext(ctx, `SELECT d.id,d.owner_id,d.title,d.context,d.reasoning,d.options_json,d.chosen_option_id,
d.prediction,d.confidence,d.review_date,d.tags_json,d.status,d.created_at,
EXISTS (SELECT 1 FROM outcomes o WHERE o.decision_id=d.id) AS has_outcome
FROM decisions d WHERE d.id=?`, id)
	var d domain.Decision
	var optionsJSON, tagsJSON string
	var hasOutcome bool
	err := row.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Context, &d.Reasoning, &optionsJSON, &d.ChosenOptionID,
		&d.Prediction, &d.Confidence, &d.ReviewDate, &tagsJSON, &d.Status, &d.CreatedAt, &hasOutcome)
	if err == sql.ErrNoRows {
		return d, false, ErrNotFound
	}
	if err != nil {
		return d, false, err
	}
	if err := json.Unmarshal([]byte(optionsJSON), &d.Options); err != nil {
		return d, false, fmt.Errorf("decode options: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &d.Tags); err != nil {
		return d, false, fmt.Errorf("decode tags: %w", err)
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return d, hasOutcome, nil
}

// ListDecisionsByOwner returns the owner's decisions with outcomes attached,
// pending before completed, then newest created first. The status order is an
// explicit comparator rather than a lexical accident.
func (r Repo) ListDecisionsByOwner(ctx context.Context, ownerID string) ([]domain.Decision, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE owner_id=?
ORDER BY CASE status WHEN 'pending' THEN 0 ELSE 1 END, created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Decision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachOutcomes(ctx, ownerID, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r Repo) attachOutcomes(ctx context.Context, ownerID string, decisions []domain.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+outcomeColumns+` FROM outcomes WHERE owner_id=?`, ownerID)
	if err != nil {
		return err
	}
	defer rows.Close()
	byDecision := map[string]domain.Outcome{}
	for rows.Next() {
		o, err := scanOutcome(rows.Scan)
		if err != nil {
			return err
		}
		byDecision[o.DecisionID] = o
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range decisions {
		if o, ok := byDecision[decisions[i].ID]; ok {
			out := o
			decisions[i].Outcome = &out
		}
	}
	return nil
}

func (r Repo) DeleteDecisionTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM decisions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateDecisionStatusTx(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE decisions SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const outcomeColumns = `id,decision_id,owner_id,result,impact_score,was_correct_choice,lessons_learned,created_at`

func (r Repo) InsertOutcomeTx(ctx context.Context, tx *sql.Tx, o domain.Outcome) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO outcomes(`+outcomeColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		o.ID, o.DecisionID, o.OwnerID, o.Result, o.ImpactScore, o.WasCorrectChoice, o.LessonsLearned, o.CreatedAt)
	return err
}

func scanOutcome(scan func(dest ...any) error) (domain.Outcome, error) {
	var o domain.Outcome
	err := scan(&o.ID, &o.DecisionID, &o.OwnerID, &o.Result, &o.ImpactScore, &o.WasCorrectChoice, &o.LessonsLearned, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

func (r Repo) GetOutcomeByDecision(ctx context.Context, decisionID string) (domain.Outcome, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+outcomeColumns+` FROM outcomes WHERE decision_id=?`, decisionID)
	return scanOutcome(row.Scan)
}

// Stats summarizes an owner's journal for the read-only stats endpoint.
type Stats struct {
	Pending   int            `json:"pending"`
	Completed int            `json:"completed"`
	ByResult  map[string]int `json:"by_result"`
}

func (r Repo) OwnerStats(ctx context.Context, ownerID string) (Stats, error) {
	stats := Stats{ByResult: map[string]int{}}
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM decisions WHERE owner_id=? GROUP BY status`, ownerID)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		switch status {
		case domain.StatusPending:
			stats.Pending = count
		case domain.StatusCompleted:
			stats.Completed = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}
	resRows, err := r.DB.QueryContext(ctx, `SELECT result, count(*) FROM outcomes WHERE owner_id=? GROUP BY result`, ownerID)
	if err != nil {
		return stats, err
	}
	defer resRows.Close()
	for resRows.Next() {
		var result string
		var count int
		if err := resRows.Scan(&result, &count); err != nil {
			return stats, err
		}
		stats.ByResult[result] = count
	}
	return stats, resRows.Err()
}

// EventsAfter returns events with IDs greater than the cursor in ascending
// order, across all owners. Used by the webhook dispatcher.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,owner_id,entity_kind,COALESCE(entity_id,''),payload_json
FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.OwnerID, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// LatestEvents returns the newest audit entries for an owner.
func (r Repo) LatestEvents(ctx context.Context, ownerID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,owner_id,entity_kind,COALESCE(entity_id,''),payload_json
FROM events WHERE owner_id=? ORDER BY id DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.OwnerID, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
