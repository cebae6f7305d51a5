package source

import (
	"context"
	"fmt"
	"time"

	"jobmate/campaign-service/internal/model"
)

// MockSource returns deterministic fixture postings derived from the
// campaign criteria. It exists so a campaign in test mode can exercise
// the full pipeline (discovery → scoring → generation → dry-run
// dispatch) without touching a real job board.
type MockSource struct {
	// Postings, when non-nil, overrides the derived fixtures (tests).
	Postings []model.JobResult
}

// NewMockSource constructs the adapter.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// ID implements Source.
func (s *MockSource) ID() string { return "mock" }

// Fetch returns one fixture posting per target role. External ids are
// stable per (campaign, role) so repeated runs dedup to no-ops.
func (s *MockSource) Fetch(ctx context.Context, campaignID string, criteria model.SearchCriteria, since time.Time) ([]model.JobResult, error) {
	if s.Postings != nil {
		return s.Postings, nil
	}

	location := "Remote"
	if len(criteria.Locations) > 0 {
		location = criteria.Locations[0]
	}

	results := make([]model.JobResult, 0, len(criteria.TargetRoles))
	for i, role := range criteria.TargetRoles {
		results = append(results, model.JobResult{
			ExternalID: fmt.Sprintf("mock-%s-%d", campaignID, i),
			Title:      role,
			Company:    "Acme Corp",
			Location:   location,
			Description: fmt.Sprintf(
				"We are hiring a %s. You will join a small team shipping weekly. "+
					"Contact jobs@acme.example to apply.", role),
			SourceURL:   fmt.Sprintf("https://jobs.acme.example/%s-%d", campaignID, i),
			PublishedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return results, nil
}

var _ Source = (*MockSource)(nil)
