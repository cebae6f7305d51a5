package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ── Fakes ─────────────────────────────────────────────────────────────────

type fakeJanitor struct {
	released int
	err      error
	calls    int
}

func (f *fakeJanitor) SweepStale(ctx context.Context) (int, error) {
	f.calls++
	return f.released, f.err
}

type fakeFailer struct {
	failed map[string]string
}

func (f *fakeFailer) MarkFailed(ctx context.Context, campaignID, reason string) error {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[campaignID] = reason
	return nil
}

// ── Tests ─────────────────────────────────────────────────────────────────

// Every janitor runs on every sweep; one janitor erroring must not stop
// the others.
func TestScheduler_JanitorsRunEachSweep(t *testing.T) {
	broken := &fakeJanitor{err: errors.New("db gone")}
	healthy := &fakeJanitor{released: 2}
	s := New(nil, nil, &fakeFailer{}, 30, broken, healthy)

	s.runJanitors(context.Background())
	s.runJanitors(context.Background())

	assert.Equal(t, 2, broken.calls)
	assert.Equal(t, 2, healthy.calls)
}

// A campaign is marked FAILED only after maxConsecutiveFailures outage
// cycles in a row, and the counter resets once it fires.
func TestScheduler_MarksFailedAfterConsecutiveOutages(t *testing.T) {
	failer := &fakeFailer{}
	s := New(nil, nil, failer, 30)
	cause := errors.New("all 2 enabled sources failed")

	for i := 0; i < maxConsecutiveFailures-1; i++ {
		s.recordFailure(context.Background(), "camp-1", cause)
	}
	assert.Empty(t, failer.failed, "below the threshold nothing is failed")

	s.recordFailure(context.Background(), "camp-1", cause)
	assert.Contains(t, failer.failed, "camp-1")
	assert.Contains(t, failer.failed["camp-1"], cause.Error())

	assert.Empty(t, s.failures, "counter resets after firing")
}

// A successful cycle between outages resets the count: only consecutive
// failures accumulate.
func TestScheduler_SuccessResetsOutageCount(t *testing.T) {
	failer := &fakeFailer{}
	s := New(nil, nil, failer, 30)
	cause := errors.New("all 1 enabled sources failed")

	s.recordFailure(context.Background(), "camp-1", cause)
	s.recordFailure(context.Background(), "camp-1", cause)
	s.recordSuccess("camp-1")
	s.recordFailure(context.Background(), "camp-1", cause)
	s.recordFailure(context.Background(), "camp-1", cause)

	assert.Empty(t, failer.failed)
}
