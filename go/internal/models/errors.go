package models

import (
	"errors"
	"fmt"
)

// Precondition failures for session intents.
var (
	ErrNoActiveIssue  = errors.New("no issue is being voted on")
	ErrIssueNotFound  = errors.New("issue not found")
	ErrIssueFinalized = errors.New("issue already has a final estimate")
	ErrSpectator      = errors.New("spectators cannot vote")
	ErrVotesRevealed  = errors.New("votes are already revealed")
	ErrVotesHidden    = errors.New("votes have not been revealed")
	ErrNotEnoughVotes = errors.New("not enough votes to reveal")
	ErrNotPermitted   = errors.New("participant is not permitted to do that")
)

// ValidationError is raised client-side before any store call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// RepositoryError is a store operation that kept failing after retries.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// Anomaly kinds.
const (
	AnomalyMultipleActive  = "multiple_active_issues"
	AnomalyVotesAfterReset = "votes_after_reset"
)

// ConsistencyAnomaly describes observed remote state that breaks a room
// invariant. It is logged and healed, never fatal.
type ConsistencyAnomaly struct {
	GameID string
	Kind   string
	Detail string
}

func (e *ConsistencyAnomaly) Error() string {
	return fmt.Sprintf("consistency anomaly in game %s (%s): %s", e.GameID, e.Kind, e.Detail)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsRepository reports whether err is (or wraps) a RepositoryError.
func IsRepository(err error) bool {
	var r *RepositoryError
	return errors.As(err, &r)
}
