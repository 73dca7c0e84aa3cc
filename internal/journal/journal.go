// Package journal orchestrates the decision/outcome lifecycle: creation,
// the single outcome log, and deletion while still pending. It composes the
// validators, the ownership guard, and the repo; all multi-write sequences
// run in one sql transaction.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"hindsight/internal/domain"
	"hindsight/internal/events"
	"hindsight/internal/guard"
	"hindsight/internal/repo"
	"hindsight/internal/validate"
)

type Journal struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func New(db *sql.DB) Journal {
	return Journal{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Now:    time.Now,
	}
}

func (j Journal) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// CreateDecision validates the payload and persists a new pending decision
// owned by ownerID. On validation failure no persistence call is made.
func (j Journal) CreateDecision(ctx context.Context, ownerID string, in validate.DecisionInput) (domain.Decision, error) {
	now := j.now().UTC()
	d, errs := validate.Decision(in, now)
	if errs != nil {
		return domain.Decision{}, errs
	}
	d.ID = uuid.NewString()
	d.OwnerID = ownerID
	d.CreatedAt = now.Format(time.RFC3339)

	tx, err := j.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Decision{}, err
	}
	defer tx.Rollback()

	if err := j.Repo.InsertDecisionTx(ctx, tx, d); err != nil {
		return domain.Decision{}, err
	}
	if err := j.Events.Append(ctx, tx, "decision.created", ownerID, "decision", d.ID, events.EventPayload{
		"title":  d.Title,
		"status": d.Status,
	}); err != nil {
		return domain.Decision{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Decision{}, err
	}
	return d, nil
}

// LogOutcome validates the payload, authorizes the mutation against the
// referenced decision, and inserts the outcome together with the pending →
// completed status flip in a single transaction. The outcome's owner is
// copied from the decision, never from the payload.
func (j Journal) LogOutcome(ctx context.Context, ownerID string, in validate.OutcomeInput) (domain.Outcome, error) {
	o, errs := validate.Outcome(in)
	if errs != nil {
		return domain.Outcome{}, errs
	}

	tx, err := j.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Outcome{}, err
	}
	defer tx.Rollback()

	d, hasOutcome, err := j.Repo.GetDecisionForUpdate(ctx, tx, o.DecisionID)
	if err != nil {
		return domain.Outcome{}, err
	}
	if err := guard.Authorize(ownerID, d, hasOutcome, guard.OpLogOutcome); err != nil {
		return domain.Outcome{}, err
	}

	o.ID = uuid.NewString()
	o.OwnerID = d.OwnerID
	o.CreatedAt = j.now().UTC().Format(time.RFC3339)
	if err := j.Repo.InsertOutcomeTx(ctx, tx, o); err != nil {
		if repo.IsUniqueViolation(err) {
			// A concurrent log won the race between snapshot and insert.
			return domain.Outcome{}, guard.ConflictError{Reason: guard.ReasonAlreadyLogged}
		}
		return domain.Outcome{}, err
	}
	if err := j.Repo.UpdateDecisionStatusTx(ctx, tx, d.ID, domain.StatusCompleted); err != nil {
		return domain.Outcome{}, err
	}
	if err := j.Events.Append(ctx, tx, "outcome.logged", d.OwnerID, "outcome", o.ID, events.EventPayload{
		"decision_id": d.ID,
		"result":      o.Result,
	}); err != nil {
		return domain.Outcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Outcome{}, err
	}
	return o, nil
}

// DeleteDecision removes a decision that has no outcome yet. A decision with
// a logged outcome is permanently locked; there is no force path.
func (j Journal) DeleteDecision(ctx context.Context, ownerID, id string) error {
	tx, err := j.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	d, hasOutcome, err := j.Repo.GetDecisionForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := guard.Authorize(ownerID, d, hasOutcome, guard.OpDelete); err != nil {
		return err
	}
	if err := j.Repo.DeleteDecisionTx(ctx, tx, id); err != nil {
		return err
	}
	if err := j.Events.Append(ctx, tx, "decision.deleted", ownerID, "decision", id, events.EventPayload{
		"title": d.Title,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDecisions returns the caller's journal, pending first, newest first,
// with outcomes embedded.
func (j Journal) ListDecisions(ctx context.Context, ownerID string) ([]domain.Decision, error) {
	return j.Repo.ListDecisionsByOwner(ctx, ownerID)
}

// GetDecision returns a single decision with its outcome. Ownership is
// checked only after existence so unknown ids never leak as forbidden.
func (j Journal) GetDecision(ctx context.Context, ownerID, id string) (domain.Decision, error) {
	d, err := j.Repo.GetDecision(ctx, id)
	if err != nil {
		return domain.Decision{}, err
	}
	if d.OwnerID != ownerID {
		return domain.Decision{}, guard.ForbiddenError{DecisionID: id}
	}
	o, err := j.Repo.GetOutcomeByDecision(ctx, id)
	if err == nil {
		d.Outcome = &o
	} else if err != repo.ErrNotFound {
		return domain.Decision{}, err
	}
	return d, nil
}

// Stats summarizes the caller's journal.
func (j Journal) Stats(ctx context.Context, ownerID string) (repo.Stats, error) {
	return j.Repo.OwnerStats(ctx, ownerID)
}
