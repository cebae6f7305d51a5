package application_test

import (
	"testing"

	"jobmate/campaign-service/internal/application"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{
		"PENDING_GENERATION", "GENERATING", "GENERATION_FAILED",
		"PENDING_REVIEW", "READY_TO_SUBMIT", "SUBMITTING",
		"SUBMITTED", "SUBMISSION_FAILED", "WITHDRAWN",
	}
	for _, s := range valid {
		got, err := application.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"UNKNOWN", "", "pending_generation", " SUBMITTED"} {
		if _, err := application.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

// ── Happy path: generation → review → submission ──────────────────────────

func TestIsTransitionAllowed_PipelinePath(t *testing.T) {
	cases := []struct {
		from application.Status
		to   application.Status
	}{
		{application.StatusPendingGeneration, application.StatusGenerating},
		{application.StatusGenerating, application.StatusPendingReview},
		{application.StatusPendingReview, application.StatusReadyToSubmit},
		{application.StatusReadyToSubmit, application.StatusSubmitting},
		{application.StatusSubmitting, application.StatusSubmitted},
	}
	for _, c := range cases {
		if !application.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

// ── Failure and recovery paths ─────────────────────────────────────────────

func TestIsTransitionAllowed_FailureRecovery(t *testing.T) {
	cases := []struct {
		from application.Status
		to   application.Status
	}{
		{application.StatusGenerating, application.StatusGenerationFailed},
		{application.StatusGenerationFailed, application.StatusPendingGeneration}, // regenerate
		{application.StatusPendingReview, application.StatusPendingGeneration},    // regenerate
		{application.StatusSubmitting, application.StatusSubmissionFailed},
		{application.StatusSubmissionFailed, application.StatusReadyToSubmit}, // retry
	}
	for _, c := range cases {
		if !application.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

// The dispatcher hands an ASSISTED application back to the user instead
// of completing the submission itself.
func TestIsTransitionAllowed_AssistedHandBack(t *testing.T) {
	if !application.IsTransitionAllowed(application.StatusSubmitting, application.StatusReadyToSubmit) {
		t.Error("IsTransitionAllowed(SUBMITTING → READY_TO_SUBMIT) should be true")
	}
}

// mark-submitted: the user reports a manual submission from review states.
func TestIsTransitionAllowed_MarkSubmitted(t *testing.T) {
	for _, from := range []application.Status{
		application.StatusPendingReview,
		application.StatusReadyToSubmit,
	} {
		if !application.IsTransitionAllowed(from, application.StatusSubmitted) {
			t.Errorf("IsTransitionAllowed(%s → SUBMITTED) should be true", from)
		}
	}
}

// ── Withdrawal ─────────────────────────────────────────────────────────────

func TestIsTransitionAllowed_Withdraw(t *testing.T) {
	withdrawable := []application.Status{
		application.StatusGenerationFailed,
		application.StatusPendingReview,
		application.StatusReadyToSubmit,
		application.StatusSubmissionFailed,
	}
	for _, from := range withdrawable {
		if !application.IsTransitionAllowed(from, application.StatusWithdrawn) {
			t.Errorf("IsTransitionAllowed(%s → WITHDRAWN) should be true", from)
		}
	}
}

// A SUBMITTED application cannot be withdrawn: the real-world submission
// already happened.
func TestIsTransitionAllowed_SubmittedCannotWithdraw(t *testing.T) {
	if application.IsTransitionAllowed(application.StatusSubmitted, application.StatusWithdrawn) {
		t.Error("IsTransitionAllowed(SUBMITTED → WITHDRAWN) should be false")
	}
}

// In-flight worker claims cannot be withdrawn out from under the worker.
func TestIsTransitionAllowed_ClaimedCannotWithdraw(t *testing.T) {
	for _, from := range []application.Status{
		application.StatusPendingGeneration,
		application.StatusGenerating,
		application.StatusSubmitting,
	} {
		if application.IsTransitionAllowed(from, application.StatusWithdrawn) {
			t.Errorf("IsTransitionAllowed(%s → WITHDRAWN) should be false", from)
		}
	}
}

// ── Terminal states ────────────────────────────────────────────────────────

func TestIsTransitionAllowed_FromTerminal(t *testing.T) {
	terminals := []application.Status{application.StatusSubmitted, application.StatusWithdrawn}
	targets := []application.Status{
		application.StatusPendingGeneration, application.StatusGenerating,
		application.StatusGenerationFailed, application.StatusPendingReview,
		application.StatusReadyToSubmit, application.StatusSubmitting,
		application.StatusSubmitted, application.StatusSubmissionFailed,
		application.StatusWithdrawn,
	}
	for _, from := range terminals {
		for _, to := range targets {
			if application.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false (terminal state)", from, to)
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !application.IsTerminal(application.StatusSubmitted) {
		t.Error("IsTerminal(SUBMITTED) should be true")
	}
	if !application.IsTerminal(application.StatusWithdrawn) {
		t.Error("IsTerminal(WITHDRAWN) should be true")
	}
	for _, s := range []application.Status{
		application.StatusPendingGeneration, application.StatusGenerating,
		application.StatusPendingReview, application.StatusReadyToSubmit,
		application.StatusSubmitting, application.StatusSubmissionFailed,
		application.StatusGenerationFailed,
	} {
		if application.IsTerminal(s) {
			t.Errorf("IsTerminal(%s) should be false", s)
		}
	}
}

// ── Self-transitions ───────────────────────────────────────────────────────

func TestIsTransitionAllowed_Self(t *testing.T) {
	all := []application.Status{
		application.StatusPendingGeneration, application.StatusGenerating,
		application.StatusGenerationFailed, application.StatusPendingReview,
		application.StatusReadyToSubmit, application.StatusSubmitting,
		application.StatusSubmitted, application.StatusSubmissionFailed,
		application.StatusWithdrawn,
	}
	for _, s := range all {
		if application.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false (self)", s, s)
		}
	}
}
