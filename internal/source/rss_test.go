package source

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"jobmate/campaign-service/internal/model"
)

func rssCriteria(roles ...string) model.SearchCriteria {
	return model.SearchCriteria{TargetRoles: roles}
}

func feedItem(guid, title, desc string, published time.Time) *gofeed.Item {
	return &gofeed.Item{
		GUID:            guid,
		Title:           title,
		Description:     desc,
		Link:            "https://jobs.example/" + guid,
		PublishedParsed: &published,
	}
}

func TestItemToResult_Valid(t *testing.T) {
	now := time.Now().UTC()
	item := feedItem("g-1", "Senior Go Developer", "Build backend services", now)

	job, ok := itemToResult(item, rssCriteria("go developer"), now.Add(-time.Hour))
	if !ok {
		t.Fatal("expected item to be accepted")
	}
	if job.ExternalID != "g-1" {
		t.Errorf("ExternalID = %q, want %q", job.ExternalID, "g-1")
	}
	if job.SourceURL != "https://jobs.example/g-1" {
		t.Errorf("SourceURL = %q", job.SourceURL)
	}
	if job.PublishedAt == "" {
		t.Error("PublishedAt should be set from the feed item")
	}
}

func TestItemToResult_FallsBackToLink(t *testing.T) {
	now := time.Now().UTC()
	item := feedItem("", "Go Developer", "", now)
	item.Link = "https://jobs.example/fallback"

	job, ok := itemToResult(item, rssCriteria("go"), now.Add(-time.Hour))
	if !ok {
		t.Fatal("expected item to be accepted")
	}
	if job.ExternalID != "https://jobs.example/fallback" {
		t.Errorf("ExternalID = %q, want the link", job.ExternalID)
	}
}

func TestItemToResult_RejectsMalformed(t *testing.T) {
	now := time.Now().UTC()

	noID := feedItem("", "Go Developer", "", now)
	noID.Link = ""
	if _, ok := itemToResult(noID, rssCriteria(), now.Add(-time.Hour)); ok {
		t.Error("item without guid or link should be rejected")
	}

	noTitle := feedItem("g-2", "", "", now)
	if _, ok := itemToResult(noTitle, rssCriteria(), now.Add(-time.Hour)); ok {
		t.Error("item without title should be rejected")
	}
}

func TestItemToResult_RejectsStale(t *testing.T) {
	published := time.Now().UTC().Add(-48 * time.Hour)
	item := feedItem("g-3", "Go Developer", "", published)

	if _, ok := itemToResult(item, rssCriteria("go"), time.Now().UTC().Add(-time.Hour)); ok {
		t.Error("item published before since should be rejected")
	}
}

func TestItemToResult_FiltersByRole(t *testing.T) {
	now := time.Now().UTC()
	item := feedItem("g-4", "Accountant", "Bookkeeping role", now)

	if _, ok := itemToResult(item, rssCriteria("backend engineer"), now.Add(-time.Hour)); ok {
		t.Error("item not matching any target role should be rejected")
	}
}

func TestMatchesRoles(t *testing.T) {
	cases := []struct {
		text  string
		roles []string
		want  bool
	}{
		{"Senior Backend Engineer wanted", []string{"backend engineer"}, true},
		{"SENIOR BACKEND ENGINEER", []string{"backend engineer"}, true},
		{"Frontend position", []string{"backend engineer"}, false},
		{"anything", nil, true},
		{"anything", []string{""}, false},
	}
	for _, c := range cases {
		if got := matchesRoles(c.text, c.roles); got != c.want {
			t.Errorf("matchesRoles(%q, %v) = %v, want %v", c.text, c.roles, got, c.want)
		}
	}
}
