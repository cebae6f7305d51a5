// Package pipeline runs the background workers that move offers and
// applications through their lifecycles. Each stage is a pool of
// pollers over a claim function; the database claim protocol (SKIP
// LOCKED) makes concurrent pollers safe, so the pool needs no
// coordination beyond a shutdown signal.
package pipeline

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"
)

// A Stage claims and processes one work item per poll. Poll reports
// whether it found work, so idle workers can back off.
type Stage struct {
	Name    string
	Workers int
	Poll    func(ctx context.Context) (bool, error)
}

// Runner owns the worker pools for all registered stages.
type Runner struct {
	stages   []Stage
	interval time.Duration
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewRunner creates a Runner polling each idle stage every interval.
func NewRunner(interval time.Duration, stages ...Stage) *Runner {
	return &Runner{stages: stages, interval: interval}
}

// Start launches every stage's workers. They run until Stop.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for _, st := range r.stages {
		for i := 0; i < st.Workers; i++ {
			r.wg.Add(1)
			go r.work(ctx, st, i)
		}
		log.Printf("[pipeline] Stage %s: %d worker(s) started", st.Name, st.Workers)
	}
}

// Stop signals all workers and waits for in-flight items to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	log.Println("[pipeline] All workers stopped")
}

func (r *Runner) work(ctx context.Context, st Stage, id int) {
	defer r.wg.Done()

	for {
		found, err := st.Poll(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("[pipeline] %s worker %d: %v", st.Name, id, err)
		}
		if found && err == nil {
			// More work may be queued; claim again immediately.
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.jittered()):
		}
	}
}

// jittered spreads workers out so they do not hit the database in
// lockstep.
func (r *Runner) jittered() time.Duration {
	half := r.interval / 2
	return half + time.Duration(rand.Int63n(int64(r.interval)))
}
