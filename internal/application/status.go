// Package application defines the application lifecycle state machine
// and the services that drive it.
//
// Valid status graph:
//
//	PENDING_GENERATION ──► GENERATING ──► PENDING_REVIEW ──► READY_TO_SUBMIT ──► SUBMITTING ──► SUBMITTED
//	        ▲                   │               │    │              │                 │
//	        │                   ▼               │    │              │                 ▼
//	        ├─────── GENERATION_FAILED ◄────────┘    │              │         SUBMISSION_FAILED
//	        │   (regenerate)                         │              │          │ (retry)   │
//	        └────────────────────────────────────────┘              │          ▼           │
//	                    (regenerate)                                │   READY_TO_SUBMIT    │
//	                                                                ▼                      ▼
//	                                                            WITHDRAWN ◄────────────────┘
//
// SUBMITTED and WITHDRAWN are terminal. SUBMITTING → READY_TO_SUBMIT is
// the assisted hand-back: the dispatcher resolved the method to ASSISTED
// and releases its claim for the user to act. PENDING_REVIEW → SUBMITTED and
// READY_TO_SUBMIT → SUBMITTED are reserved for the user reporting an
// assisted submission (mark-submitted). PENDING_REVIEW → READY_TO_SUBMIT
// happens either on user confirmation or automatically when
// requiresConfirm is false — auto-apply is legal in test mode too; the
// dispatcher's test-mode gate is what keeps it safe.
package application

import "fmt"

// Status values mirror the application_status enum in PostgreSQL.
type Status string

const (
	StatusPendingGeneration Status = "PENDING_GENERATION"
	StatusGenerating        Status = "GENERATING"
	StatusGenerationFailed  Status = "GENERATION_FAILED"
	StatusPendingReview     Status = "PENDING_REVIEW"
	StatusReadyToSubmit     Status = "READY_TO_SUBMIT"
	StatusSubmitting        Status = "SUBMITTING"
	StatusSubmitted         Status = "SUBMITTED"
	StatusSubmissionFailed  Status = "SUBMISSION_FAILED"
	StatusWithdrawn         Status = "WITHDRAWN"
)

// Method values mirror the application_method enum in PostgreSQL.
const (
	MethodAutoAPI  = "AUTO_API"
	MethodAutoForm = "AUTO_FORM"
	MethodEmail    = "EMAIL"
	MethodAssisted = "ASSISTED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusPendingGeneration: {StatusGenerating},
	StatusGenerating:        {StatusPendingReview, StatusGenerationFailed},
	StatusGenerationFailed:  {StatusPendingGeneration, StatusWithdrawn},
	StatusPendingReview:     {StatusReadyToSubmit, StatusPendingGeneration, StatusSubmitted, StatusWithdrawn},
	StatusReadyToSubmit:     {StatusSubmitting, StatusSubmitted, StatusWithdrawn},
	StatusSubmitting:        {StatusSubmitted, StatusSubmissionFailed, StatusReadyToSubmit},
	StatusSubmissionFailed:  {StatusReadyToSubmit, StatusWithdrawn},
	// SUBMITTED and WITHDRAWN are terminal — no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPendingGeneration, StatusGenerating, StatusGenerationFailed,
		StatusPendingReview, StatusReadyToSubmit, StatusSubmitting,
		StatusSubmitted, StatusSubmissionFailed, StatusWithdrawn:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by
// the state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state — no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for SUBMITTED and WITHDRAWN.
func IsTerminal(s Status) bool {
	return s == StatusSubmitted || s == StatusWithdrawn
}
