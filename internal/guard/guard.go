// Package guard decides whether a caller may mutate a fetched decision
// snapshot. It is a pure decision function: existence is resolved by the
// caller first (repo.ErrNotFound), then ownership, then outcome cardinality,
// so a non-owner probing an unknown id sees not-found rather than forbidden.
package guard

import (
	"hindsight/internal/domain"
)

// Op is an intended mutation on an existing decision.
type Op string

const (
	OpDelete     Op = "delete"
	OpLogOutcome Op = "log_outcome"
)

// Conflict reasons surfaced to clients.
const (
	ReasonLocked        = "decision is permanently locked: an outcome has been logged"
	ReasonAlreadyLogged = "an outcome already exists for this decision"
)

// ForbiddenError indicates the caller does not own the decision.
type ForbiddenError struct {
	DecisionID string
}

func (e ForbiddenError) Error() string {
	return "you do not have permission to modify this decision"
}

// ConflictError indicates the decision's state rules out the operation.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string { return e.Reason }

// Authorize reports whether userID may perform op on the decision snapshot.
// hasOutcome reflects the outcome-existence join at fetch time; the store's
// unique constraint on decision_id remains the authoritative enforcement for
// races that slip past this check.
func Authorize(userID string, d domain.Decision, hasOutcome bool, op Op) error {
	if d.OwnerID != userID {
		return ForbiddenError{DecisionID: d.ID}
	}
	if hasOutcome {
		switch op {
		case OpDelete:
			return ConflictError{Reason: ReasonLocked}
		case OpLogOutcome:
			return ConflictError{Reason: ReasonAlreadyLogged}
		}
	}
	return nil
}
