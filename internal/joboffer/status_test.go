package joboffer_test

import (
	"testing"

	"jobmate/campaign-service/internal/joboffer"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{"DISCOVERED", "ANALYZING", "MATCHED", "REJECTED", "APPLIED", "EXPIRED", "ERROR"}
	for _, s := range valid {
		got, err := joboffer.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"UNKNOWN", "", "discovered", " MATCHED"} {
		if _, err := joboffer.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

// ── Analysis lifecycle ─────────────────────────────────────────────────────

func TestIsTransitionAllowed_AnalysisPath(t *testing.T) {
	cases := []struct {
		from joboffer.Status
		to   joboffer.Status
	}{
		{joboffer.StatusDiscovered, joboffer.StatusAnalyzing},
		{joboffer.StatusAnalyzing, joboffer.StatusMatched},
		{joboffer.StatusAnalyzing, joboffer.StatusRejected},
		{joboffer.StatusAnalyzing, joboffer.StatusError},
		{joboffer.StatusMatched, joboffer.StatusApplied},
	}
	for _, c := range cases {
		if !joboffer.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

// A worker that cannot proceed (profile not ready) releases its claim
// instead of recording an error.
func TestIsTransitionAllowed_ClaimRelease(t *testing.T) {
	if !joboffer.IsTransitionAllowed(joboffer.StatusAnalyzing, joboffer.StatusDiscovered) {
		t.Error("IsTransitionAllowed(ANALYZING → DISCOVERED) should be true")
	}
}

// ── Rescore ────────────────────────────────────────────────────────────────

// Rescore re-enters ERROR and REJECTED offers into the analysis queue on
// explicit user request.
func TestIsTransitionAllowed_Rescore(t *testing.T) {
	for _, from := range []joboffer.Status{joboffer.StatusError, joboffer.StatusRejected} {
		if !joboffer.IsTransitionAllowed(from, joboffer.StatusDiscovered) {
			t.Errorf("IsTransitionAllowed(%s → DISCOVERED) should be true", from)
		}
	}
}

// A MATCHED offer already has an application attached; it must not be
// rescorable.
func TestIsTransitionAllowed_MatchedCannotRescore(t *testing.T) {
	if joboffer.IsTransitionAllowed(joboffer.StatusMatched, joboffer.StatusDiscovered) {
		t.Error("IsTransitionAllowed(MATCHED → DISCOVERED) should be false")
	}
}

// ── Expiry ─────────────────────────────────────────────────────────────────

func TestIsTransitionAllowed_Expiry(t *testing.T) {
	for _, from := range []joboffer.Status{joboffer.StatusDiscovered, joboffer.StatusMatched} {
		if !joboffer.IsTransitionAllowed(from, joboffer.StatusExpired) {
			t.Errorf("IsTransitionAllowed(%s → EXPIRED) should be true", from)
		}
	}
	// A claimed offer cannot expire underneath its worker.
	if joboffer.IsTransitionAllowed(joboffer.StatusAnalyzing, joboffer.StatusExpired) {
		t.Error("IsTransitionAllowed(ANALYZING → EXPIRED) should be false")
	}
}

// ── Terminal states ────────────────────────────────────────────────────────

func TestIsTransitionAllowed_FromTerminal(t *testing.T) {
	terminals := []joboffer.Status{joboffer.StatusApplied, joboffer.StatusExpired}
	targets := []joboffer.Status{
		joboffer.StatusDiscovered, joboffer.StatusAnalyzing, joboffer.StatusMatched,
		joboffer.StatusRejected, joboffer.StatusApplied, joboffer.StatusExpired,
		joboffer.StatusError,
	}
	for _, from := range terminals {
		for _, to := range targets {
			if joboffer.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false (terminal state)", from, to)
			}
		}
	}
}

// ── Self-transitions ───────────────────────────────────────────────────────

func TestIsTransitionAllowed_Self(t *testing.T) {
	all := []joboffer.Status{
		joboffer.StatusDiscovered, joboffer.StatusAnalyzing, joboffer.StatusMatched,
		joboffer.StatusRejected, joboffer.StatusApplied, joboffer.StatusExpired,
		joboffer.StatusError,
	}
	for _, s := range all {
		if joboffer.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false (self)", s, s)
		}
	}
}
