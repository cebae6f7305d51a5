package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"jobmate/campaign-service/internal/model"
)

// RSSSource pulls postings from operator-configured RSS/Atom job feeds.
// The external id is the item GUID (falling back to the link), which
// keeps re-polling the same feed idempotent at the dedup layer.
type RSSSource struct {
	FeedURLs []string
	parser   *gofeed.Parser
}

// NewRSSSource constructs the adapter for the given feed URLs.
func NewRSSSource(feedURLs []string) *RSSSource {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: httpTimeout}
	return &RSSSource{FeedURLs: feedURLs, parser: parser}
}

// ID implements Source.
func (s *RSSSource) ID() string { return "rss" }

// Fetch parses every configured feed and returns items published after
// since that mention one of the campaign's target roles. A failing feed
// is logged and skipped; the remaining feeds continue. Items without a
// usable id or title are skipped.
func (s *RSSSource) Fetch(ctx context.Context, campaignID string, criteria model.SearchCriteria, since time.Time) ([]model.JobResult, error) {
	var results []model.JobResult

	for _, feedURL := range s.FeedURLs {
		feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			log.Printf("[source/rss] Error parsing %s: %v — continuing", feedURL, err)
			continue
		}

		for _, item := range feed.Items {
			job, ok := itemToResult(item, criteria, since)
			if !ok {
				continue
			}
			results = append(results, job)
		}
	}

	return results, nil
}

// itemToResult normalises one feed item, returning ok=false for items
// that are malformed, stale, or irrelevant to the criteria.
func itemToResult(item *gofeed.Item, criteria model.SearchCriteria, since time.Time) (model.JobResult, bool) {
	externalID := item.GUID
	if externalID == "" {
		externalID = item.Link
	}
	if externalID == "" || item.Title == "" {
		return model.JobResult{}, false
	}

	if item.PublishedParsed != nil && item.PublishedParsed.Before(since) {
		return model.JobResult{}, false
	}

	if !matchesRoles(item.Title+" "+item.Description, criteria.TargetRoles) {
		return model.JobResult{}, false
	}

	job := model.JobResult{
		ExternalID:  externalID,
		Title:       item.Title,
		Description: item.Description,
		SourceURL:   item.Link,
	}
	if item.PublishedParsed != nil {
		job.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		job.Company = item.Authors[0].Name
	}
	return job, true
}

// matchesRoles returns true when any target role appears
// (case-insensitive) in text. Empty roles means no filtering.
func matchesRoles(text string, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, role := range roles {
		if role == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(role)) {
			return true
		}
	}
	return false
}

// String helps debugging multi-feed adapters.
func (s *RSSSource) String() string {
	return fmt.Sprintf("rss(%d feeds)", len(s.FeedURLs))
}

var _ Source = (*RSSSource)(nil)
