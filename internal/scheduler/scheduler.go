// Package scheduler wires up the cron job that periodically triggers
// discovery for all ACTIVE campaigns.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"jobmate/campaign-service/internal/discovery"
)

// maxConsecutiveFailures is how many discovery cycles in a row may end in
// total source outage before the campaign is marked FAILED.
const maxConsecutiveFailures = 3

// FailureRecorder marks a campaign FAILED after discovery stops making
// progress. Satisfied by campaign.Service.
type FailureRecorder interface {
	MarkFailed(ctx context.Context, campaignID, reason string) error
}

// Janitor releases work abandoned by a crashed worker process so a
// restart never leaves entities stuck in an in-progress status.
// Satisfied by application.Service and joboffer.Repo.
type Janitor interface {
	SweepStale(ctx context.Context) (int, error)
}

// Scheduler wraps robfig/cron and manages the discovery loop.
type Scheduler struct {
	cron     *cron.Cron
	pool     *pgxpool.Pool
	worker   *discovery.Worker
	failer   FailureRecorder
	janitors []Janitor
	spec     string // cron spec, e.g. "@every 30m"

	mu       sync.Mutex
	failures map[string]int // campaign ID → consecutive failed cycles
}

// New creates a Scheduler that fires every intervalMinutes minutes.
func New(pool *pgxpool.Pool, worker *discovery.Worker, failer FailureRecorder, intervalMinutes int, janitors ...Janitor) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cron.DefaultLogger)),
		pool:     pool,
		worker:   worker,
		failer:   failer,
		janitors: janitors,
		spec:     fmt.Sprintf("@every %dm", intervalMinutes),
		failures: make(map[string]int),
	}
}

// Start registers the job and starts the scheduler. Also runs one sweep
// immediately so active campaigns are populated without waiting for the
// first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s", s.spec)

	// Run immediately on startup (non-blocking)
	go s.runSweep(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// TriggerCampaign runs discovery for one campaign on demand (the
// "discover now" dashboard action). The campaign must be ACTIVE.
func (s *Scheduler) TriggerCampaign(ctx context.Context, campaignID string) error {
	c, err := discovery.LoadActiveCampaign(ctx, s.pool, campaignID)
	if err != nil {
		return err
	}
	return s.worker.Run(ctx, *c)
}

// runSweep loads all ACTIVE campaigns and runs a discovery cycle for each.
func (s *Scheduler) runSweep(ctx context.Context) {
	log.Println("[scheduler] Discovery sweep started")

	s.runJanitors(ctx)

	campaigns, err := discovery.LoadActiveCampaigns(ctx, s.pool)
	if err != nil {
		log.Printf("[scheduler] LoadActiveCampaigns error: %v", err)
		return
	}

	if len(campaigns) == 0 {
		log.Println("[scheduler] No active campaigns — nothing to discover")
		return
	}

	log.Printf("[scheduler] Running discovery for %d campaign(s)", len(campaigns))
	for _, c := range campaigns {
		if err := s.worker.Run(ctx, c); err != nil {
			log.Printf("[scheduler] Worker error for campaign %s: %v", c.ID, err)
			s.recordFailure(ctx, c.ID, err)
			continue
		}
		s.recordSuccess(c.ID)
	}

	log.Println("[scheduler] Discovery sweep complete")
}

// runJanitors releases stale claims before discovery, so work abandoned
// by a crashed process re-enters the pipeline on the same tick.
func (s *Scheduler) runJanitors(ctx context.Context) {
	for _, j := range s.janitors {
		released, err := j.SweepStale(ctx)
		if err != nil {
			log.Printf("[scheduler] Stale sweep error: %v", err)
			continue
		}
		if released > 0 {
			log.Printf("[scheduler] Stale sweep released %d entit(ies)", released)
		}
	}
}

func (s *Scheduler) recordFailure(ctx context.Context, campaignID string, cause error) {
	s.mu.Lock()
	s.failures[campaignID]++
	count := s.failures[campaignID]
	s.mu.Unlock()

	if count < maxConsecutiveFailures {
		return
	}

	reason := fmt.Sprintf("discovery failed %d consecutive cycles: %v", count, cause)
	if err := s.failer.MarkFailed(ctx, campaignID, reason); err != nil {
		log.Printf("[scheduler] MarkFailed error for campaign %s: %v", campaignID, err)
		return
	}
	log.Printf("[scheduler] Campaign %s marked FAILED after %d consecutive outages", campaignID, count)
	s.recordSuccess(campaignID) // reset counter; campaign is no longer ACTIVE
}

func (s *Scheduler) recordSuccess(campaignID string) {
	s.mu.Lock()
	delete(s.failures, campaignID)
	s.mu.Unlock()
}
