package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/campaign-service/internal/actionlog"
	"jobmate/campaign-service/internal/model"
	"jobmate/campaign-service/internal/source"
)

// defaultLookback bounds the first fetch window for a campaign that has
// never been discovered.
const defaultLookback = 7 * 24 * time.Hour

// OfferStore is the slice of the job offer repository discovery needs.
type OfferStore interface {
	InsertDiscovered(ctx context.Context, campaignID, sourceID string, job model.JobResult) (bool, error)
}

// Worker runs one discovery cycle for a single campaign.
// It fetches offers from every enabled source, applies red-flag
// filtering, and inserts new offers in DISCOVERED status; persistence
// dedups on (campaign, source, external id) so re-runs are idempotent.
type Worker struct {
	store OfferStore
	reg   *source.Registry
	rdb   *redis.Client
	alog  actionlog.Logger
}

// NewWorker constructs a Worker.
func NewWorker(store OfferStore, reg *source.Registry, rdb *redis.Client, alog actionlog.Logger) *Worker {
	return &Worker{store: store, reg: reg, rdb: rdb, alog: alog}
}

// Run executes one discovery cycle for the given campaign.
// A total outage of one source fails that source only — the remaining
// sources continue, and the failed one is retried on the next scheduled
// tick rather than in a tight loop.
func (w *Worker) Run(ctx context.Context, c model.Campaign) error {
	log.Printf("[discovery] Starting cycle for campaign %s: roles=%v sources=%v",
		c.ID, c.Criteria.TargetRoles, c.EnabledSources)

	since := w.loadSince(ctx, c.ID)
	var totalInserted, totalFiltered, totalDuplicate, attempted, failedSources int

	for _, sourceID := range c.EnabledSources {
		src, err := w.reg.Get(sourceID)
		if err != nil {
			log.Printf("[discovery] Campaign %s: %v — skipping", c.ID, err)
			continue
		}
		attempted++

		inserted, filtered, dupes, err := w.runSource(ctx, c, src, since)
		if err != nil {
			failedSources++
			log.Printf("[discovery] Source %s error for campaign %s: %v — continuing", sourceID, c.ID, err)
			w.alog.Append(ctx, actionlog.Entry{
				EntityType: "campaign", EntityID: c.ID,
				Action: "discovery.source", Status: actionlog.StatusFailure,
				TestMode: c.TestMode,
				Detail:   map[string]any{"source": sourceID, "error": err.Error()},
			})
			continue
		}
		totalInserted += inserted
		totalFiltered += filtered
		totalDuplicate += dupes
	}

	// Total outage: every enabled source failed this cycle. Keep the cursor
	// where it was so the next cycle re-fetches the same window.
	if attempted > 0 && failedSources == attempted {
		w.alog.Append(ctx, actionlog.Entry{
			EntityType: "campaign", EntityID: c.ID,
			Action: "discovery.run", Status: actionlog.StatusFailure,
			TestMode: c.TestMode,
			Detail:   map[string]any{"failedSources": failedSources},
		})
		return fmt.Errorf("all %d enabled sources failed", failedSources)
	}

	w.storeSince(ctx, c.ID, time.Now().UTC())

	log.Printf("[discovery] Campaign %s done — inserted=%d filtered=%d duplicates=%d failedSources=%d",
		c.ID, totalInserted, totalFiltered, totalDuplicate, failedSources)

	w.alog.Append(ctx, actionlog.Entry{
		EntityType: "campaign", EntityID: c.ID,
		Action: "discovery.run", Status: actionlog.StatusSuccess,
		TestMode: c.TestMode,
		Detail: map[string]any{
			"inserted": totalInserted, "filtered": totalFiltered,
			"duplicates": totalDuplicate, "failedSources": failedSources,
		},
	})

	if totalInserted > 0 {
		event, _ := json.Marshal(map[string]any{
			"type":       "EVENT_OFFERS_DISCOVERED",
			"campaignId": c.ID,
			"userId":     c.UserID,
			"count":      totalInserted,
		})
		if err := w.rdb.Publish(ctx, "EVENT_OFFERS_DISCOVERED", event).Err(); err != nil {
			slog.Warn("publish EVENT_OFFERS_DISCOVERED failed", "err", err)
		}
	}

	return nil
}

func (w *Worker) runSource(ctx context.Context, c model.Campaign, src source.Source, since time.Time) (inserted, filtered, dupes int, err error) {
	results, err := src.Fetch(ctx, c.ID, c.Criteria, since)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("fetch: %w", err)
	}

	for _, job := range results {
		if job.ExternalID == "" || job.Title == "" {
			log.Printf("[discovery] Malformed posting from %s (missing id or title) — skipping", src.ID())
			continue
		}

		// ── Red-flag filter ────────────────────────────────
		if ContainsRedFlag(job.Title, job.Company, job.Description, c.Criteria.RedFlags) {
			filtered++
			continue
		}

		ok, err := w.store.InsertDiscovered(ctx, c.ID, src.ID(), job)
		if err != nil {
			log.Printf("[discovery] Insert error for %s/%s: %v", src.ID(), job.ExternalID, err)
			continue
		}
		if ok {
			inserted++
		} else {
			dupes++
		}
	}

	return inserted, filtered, dupes, nil
}

// loadSince reads the campaign's last discovery timestamp from redis,
// falling back to the default lookback window.
func (w *Worker) loadSince(ctx context.Context, campaignID string) time.Time {
	val, err := w.rdb.Get(ctx, sinceKey(campaignID)).Result()
	if err == nil {
		if t, perr := time.Parse(time.RFC3339, val); perr == nil {
			return t
		}
	}
	return time.Now().UTC().Add(-defaultLookback)
}

func (w *Worker) storeSince(ctx context.Context, campaignID string, t time.Time) {
	if err := w.rdb.Set(ctx, sinceKey(campaignID), t.Format(time.RFC3339), 0).Err(); err != nil {
		slog.Warn("store discovery cursor failed", "campaignId", campaignID, "err", err)
	}
}

func sinceKey(campaignID string) string {
	return "discovery:since:" + campaignID
}
