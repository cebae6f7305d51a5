// Package joboffer owns job offer statuses and the status-gated claim
// logic that serialises pipeline work per offer.
//
// Valid status graph:
//
//	DISCOVERED ──► ANALYZING ──► MATCHED ──► APPLIED
//	     ▲             │   │
//	     │             │   └──► REJECTED
//	  (rescore)        └──────► ERROR
//	     │                        │
//	     └────────────────────────┘
//
// ANALYZING → DISCOVERED is a claim release (scoring not ready yet, e.g.
// the profile embedding is still missing), not a result.
// Any non-terminal offer may move to EXPIRED. APPLIED, REJECTED, EXPIRED
// and ERROR are terminal for the automated pipeline; ERROR and REJECTED
// can be reset to DISCOVERED by an explicit user rescore request.
package joboffer

import "fmt"

// Status values mirror the job_offer_status enum in PostgreSQL.
type Status string

const (
	StatusDiscovered Status = "DISCOVERED"
	StatusAnalyzing  Status = "ANALYZING"
	StatusMatched    Status = "MATCHED"
	StatusRejected   Status = "REJECTED"
	StatusApplied    Status = "APPLIED"
	StatusExpired    Status = "EXPIRED"
	StatusError      Status = "ERROR"
)

// validTransitions lists every allowed (from → to) pair. Rescore paths
// (ERROR/REJECTED → DISCOVERED) are user-triggered, never automatic.
var validTransitions = map[Status][]Status{
	StatusDiscovered: {StatusAnalyzing, StatusExpired},
	StatusAnalyzing:  {StatusMatched, StatusRejected, StatusError, StatusDiscovered},
	StatusMatched:    {StatusApplied, StatusExpired},
	StatusRejected:   {StatusDiscovered},
	StatusError:      {StatusDiscovered},
	// APPLIED and EXPIRED have no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusDiscovered, StatusAnalyzing, StatusMatched, StatusRejected,
		StatusApplied, StatusExpired, StatusError:
		return st, nil
	}
	return "", fmt.Errorf("unknown job offer status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by
// the state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
