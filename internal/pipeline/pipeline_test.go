package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// queueStage pops one item per poll from a fixed backlog.
type queueStage struct {
	mu      sync.Mutex
	backlog int
	polled  int
}

func (q *queueStage) poll(ctx context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.polled++
	if q.backlog == 0 {
		return false, nil
	}
	q.backlog--
	return true, nil
}

func (q *queueStage) remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.backlog
}

func TestRunner_DrainsBacklog(t *testing.T) {
	q := &queueStage{backlog: 10}
	r := NewRunner(10*time.Millisecond, Stage{Name: "test", Workers: 3, Poll: q.poll})

	r.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for q.remaining() > 0 {
		select {
		case <-deadline:
			t.Fatalf("backlog not drained, %d left", q.remaining())
		case <-time.After(5 * time.Millisecond):
		}
	}
	r.Stop()
}

func TestRunner_StopWaitsForWorkers(t *testing.T) {
	var mu sync.Mutex
	inFlight := 0

	slow := Stage{Name: "slow", Workers: 2, Poll: func(ctx context.Context) (bool, error) {
		mu.Lock()
		inFlight++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return false, nil
	}}

	r := NewRunner(10*time.Millisecond, slow)
	r.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	r.Stop()

	mu.Lock()
	defer mu.Unlock()
	if inFlight != 0 {
		t.Errorf("Stop returned with %d poll(s) still in flight", inFlight)
	}
}

// A poll error must not kill the worker: polling continues afterwards.
func TestRunner_SurvivesPollErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	flaky := Stage{Name: "flaky", Workers: 1, Poll: func(ctx context.Context) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return false, errors.New("transient")
		}
		return false, nil
	}}

	r := NewRunner(5*time.Millisecond, flaky)
	r.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker stopped polling after error (calls=%d)", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
	r.Stop()
}
