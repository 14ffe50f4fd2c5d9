package controller

import (
	"github.com/oukeidos/bstudio/internal/apperrors"
	"github.com/oukeidos/bstudio/internal/result"
)

// Phase is the lifecycle position of the controller.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Settled reports whether the phase accepts a new submission.
func (p Phase) Settled() bool { return p != PhaseSubmitting }

// State is an immutable value; every transition publishes a new one.
type State struct {
	Phase Phase
	// Seq is the submission the state belongs to; zero before the first.
	Seq uint64
	// Result is set only in PhaseSucceeded.
	Result *result.Translation
	// Err is set only in PhaseFailed.
	Err error
}

// Failure returns the user-facing message of a failed state.
func (s State) Failure() string {
	if s.Phase != PhaseFailed {
		return ""
	}
	return apperrors.PublicMessage(s.Err)
}

// FailureKind returns the error kind of a failed state.
func (s State) FailureKind() apperrors.Kind {
	kind, _ := apperrors.KindOf(s.Err)
	return kind
}
