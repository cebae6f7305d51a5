package discovery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/campaign-service/internal/actionlog"
	"jobmate/campaign-service/internal/discovery"
	"jobmate/campaign-service/internal/model"
	"jobmate/campaign-service/internal/source"
)

// ── Fakes ─────────────────────────────────────────────────────────────────

type insertCall struct {
	campaignID string
	sourceID   string
	externalID string
}

// fakeStore dedups on external id like the real repository.
type fakeStore struct {
	inserted []insertCall
	seen     map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{seen: map[string]bool{}}
}

func (f *fakeStore) InsertDiscovered(ctx context.Context, campaignID, sourceID string, job model.JobResult) (bool, error) {
	key := campaignID + "/" + sourceID + "/" + job.ExternalID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	f.inserted = append(f.inserted, insertCall{campaignID, sourceID, job.ExternalID})
	return true, nil
}

type failingSource struct{}

func (failingSource) ID() string { return "api" }
func (failingSource) Fetch(ctx context.Context, campaignID string, criteria model.SearchCriteria, since time.Time) ([]model.JobResult, error) {
	return nil, errors.New("upstream 503")
}

// ── Fixtures ──────────────────────────────────────────────────────────────

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testCampaign(sources ...string) model.Campaign {
	return model.Campaign{
		ID:     "camp-1",
		UserID: "user-1",
		Criteria: model.SearchCriteria{
			TargetRoles: []string{"Backend Engineer"},
			Locations:   []string{"Paris"},
		},
		EnabledSources: sources,
		TestMode:       true,
	}
}

func posting(id, title string) model.JobResult {
	return model.JobResult{
		ExternalID:  id,
		Title:       title,
		Company:     "Acme",
		Location:    "Paris",
		Description: "Go services",
		PublishedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────

func TestWorker_InsertsNewOffers(t *testing.T) {
	store := newFakeStore()
	mock := source.NewMockSource()
	mock.Postings = []model.JobResult{
		posting("p-1", "Backend Engineer"),
		posting("p-2", "Platform Engineer"),
		posting("p-3", "SRE"),
	}
	w := discovery.NewWorker(store, source.NewRegistry(mock), testRedis(t), &actionlog.Memory{})

	err := w.Run(context.Background(), testCampaign("mock"))
	require.NoError(t, err)

	require.Len(t, store.inserted, 3)
	assert.Equal(t, "camp-1", store.inserted[0].campaignID)
	assert.Equal(t, "mock", store.inserted[0].sourceID)
}

// A re-run of the same cycle inserts nothing: dedup is external-id based.
func TestWorker_RerunIsIdempotent(t *testing.T) {
	store := newFakeStore()
	mock := source.NewMockSource()
	mock.Postings = []model.JobResult{posting("p-1", "Backend Engineer")}
	w := discovery.NewWorker(store, source.NewRegistry(mock), testRedis(t), &actionlog.Memory{})

	require.NoError(t, w.Run(context.Background(), testCampaign("mock")))
	require.NoError(t, w.Run(context.Background(), testCampaign("mock")))

	assert.Len(t, store.inserted, 1)
}

// Red-flagged postings never reach storage.
func TestWorker_RedFlagFilter(t *testing.T) {
	store := newFakeStore()
	mock := source.NewMockSource()
	flagged := posting("p-2", "Backend Engineer")
	flagged.Description = "Unpaid internship with great exposure"
	mock.Postings = []model.JobResult{posting("p-1", "Backend Engineer"), flagged}

	c := testCampaign("mock")
	c.Criteria.RedFlags = []string{"unpaid"}

	w := discovery.NewWorker(store, source.NewRegistry(mock), testRedis(t), &actionlog.Memory{})
	require.NoError(t, w.Run(context.Background(), c))

	require.Len(t, store.inserted, 1)
	assert.Equal(t, "p-1", store.inserted[0].externalID)
}

// Malformed postings (no external id or title) are skipped, not stored.
func TestWorker_SkipsMalformedPostings(t *testing.T) {
	store := newFakeStore()
	mock := source.NewMockSource()
	mock.Postings = []model.JobResult{
		posting("", "Backend Engineer"),
		posting("p-2", ""),
		posting("p-3", "Backend Engineer"),
	}
	w := discovery.NewWorker(store, source.NewRegistry(mock), testRedis(t), &actionlog.Memory{})

	require.NoError(t, w.Run(context.Background(), testCampaign("mock")))
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "p-3", store.inserted[0].externalID)
}

// One failing source must not take down the cycle: the healthy source
// still inserts and the failure is recorded in the action log.
func TestWorker_SourceFailureIsIsolated(t *testing.T) {
	store := newFakeStore()
	mock := source.NewMockSource()
	mock.Postings = []model.JobResult{posting("p-1", "Backend Engineer")}
	alog := &actionlog.Memory{}

	w := discovery.NewWorker(store, source.NewRegistry(failingSource{}, mock), testRedis(t), alog)
	err := w.Run(context.Background(), testCampaign("api", "mock"))
	require.NoError(t, err)

	assert.Len(t, store.inserted, 1, "healthy source should still run")

	var failures int
	for _, e := range alog.Entries {
		if e.Action == "discovery.source" && e.Status == actionlog.StatusFailure {
			failures++
		}
	}
	assert.Equal(t, 1, failures, "source failure should be recorded")
}

// When every enabled source fails the run reports the outage and keeps
// the cursor, so the next cycle re-fetches the same window.
func TestWorker_TotalOutageReturnsError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	w := discovery.NewWorker(newFakeStore(), source.NewRegistry(failingSource{}), rdb, &actionlog.Memory{})
	err := w.Run(context.Background(), testCampaign("api"))
	require.Error(t, err)

	_, err = rdb.Get(context.Background(), "discovery:since:camp-1").Result()
	assert.ErrorIs(t, err, redis.Nil, "cursor must not advance on total outage")
}

// An enabled source with no registered adapter is skipped silently.
func TestWorker_UnknownSourceSkipped(t *testing.T) {
	store := newFakeStore()
	mock := source.NewMockSource()
	mock.Postings = []model.JobResult{posting("p-1", "Backend Engineer")}

	w := discovery.NewWorker(store, source.NewRegistry(mock), testRedis(t), &actionlog.Memory{})
	require.NoError(t, w.Run(context.Background(), testCampaign("linkedin", "mock")))

	assert.Len(t, store.inserted, 1)
}

// The discovery cursor advances after a run so the next tick fetches
// incrementally.
func TestWorker_StoresCursor(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := newFakeStore()
	mock := source.NewMockSource()
	mock.Postings = []model.JobResult{posting("p-1", "Backend Engineer")}

	w := discovery.NewWorker(store, source.NewRegistry(mock), rdb, &actionlog.Memory{})
	require.NoError(t, w.Run(context.Background(), testCampaign("mock")))

	val, err := rdb.Get(context.Background(), "discovery:since:camp-1").Result()
	require.NoError(t, err)
	cursor, err := time.Parse(time.RFC3339, val)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), cursor, time.Minute)
}
