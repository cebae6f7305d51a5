// Package campaign owns the campaign lifecycle state machine and the
// orchestrator-exposed transitions (start/pause/stop).
//
// Valid status graph:
//
//	DRAFT ──► ACTIVE ◄──► PAUSED
//	            │            │
//	            ├────────────┴──► COMPLETED   (stop — terminal)
//	            └────────────┬──► FAILED      (infrastructure failure — terminal)
//	                      PAUSED
//
// COMPLETED and FAILED are terminal states. Only ACTIVE campaigns are
// eligible for discovery ticks and pipeline claims.
package campaign

import "fmt"

// Status values mirror the campaign_status enum in PostgreSQL.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusDraft:  {StatusActive},
	StatusActive: {StatusPaused, StatusCompleted, StatusFailed},
	StatusPaused: {StatusActive, StatusCompleted, StatusFailed},
	// COMPLETED and FAILED are terminal — no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusDraft, StatusActive, StatusPaused, StatusCompleted, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown campaign status %q", s)
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

// IsActive returns true when status is ACTIVE (gates discovery and claims).
func IsActive(s Status) bool { return s == StatusActive }

// IsTerminal returns true for COMPLETED and FAILED.
func IsTerminal(s Status) bool { return s == StatusCompleted || s == StatusFailed }
