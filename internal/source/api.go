package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"jobmate/campaign-service/internal/model"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
	adzunaMaxPages = 3 // max 150 results per (role × location) pair
	httpTimeout    = 15 * time.Second
)

// APISource fetches job offers from the Adzuna public API for every
// (target role × location) pair of the campaign criteria.
// If AppID or AppKey is empty, Fetch returns (nil, nil) gracefully — the
// discovery run simply skips this source and logs a warning.
type APISource struct {
	AppID   string
	AppKey  string
	Country string // "fr", "gb", "us", …
	baseURL string
	client  *http.Client
}

// NewAPISource constructs the adapter with a shared HTTP client.
func NewAPISource(appID, appKey, country string) *APISource {
	return &APISource{
		AppID:   appID,
		AppKey:  appKey,
		Country: country,
		baseURL: adzunaBaseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// ID implements Source.
func (s *APISource) ID() string { return "api" }

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

// adzunaResult mirrors a single Adzuna job listing.
type adzunaResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      adzunaCompany  `json:"company"`
	Location     adzunaLocation `json:"location"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	RedirectURL  string         `json:"redirect_url"`
	Created      string         `json:"created"`
	ContractTime string         `json:"contract_time"`
	ContractType string         `json:"contract_type"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

// Fetch retrieves offers for every (role × location) pair, iterating
// through pages until no more results or adzunaMaxPages is reached.
// A failing pair is logged and skipped; the remaining pairs continue.
func (s *APISource) Fetch(ctx context.Context, campaignID string, criteria model.SearchCriteria, since time.Time) ([]model.JobResult, error) {
	if s.AppID == "" || s.AppKey == "" {
		log.Println("[source/api] ADZUNA_APP_ID / ADZUNA_APP_KEY not set — skipping")
		return nil, nil
	}

	locations := criteria.Locations
	if len(locations) == 0 {
		locations = []string{""}
	}

	maxDays := maxDaysOld(since, time.Now().UTC())

	var results []model.JobResult
	for _, role := range criteria.TargetRoles {
		for _, location := range locations {
			batch, err := s.fetchPair(ctx, role, location, maxDays)
			if err != nil {
				log.Printf("[source/api] Error fetching (%q, %q): %v — continuing", role, location, err)
				continue
			}
			results = append(results, batch...)
		}
	}

	return results, nil
}

// maxDaysOld converts the discovery cursor into Adzuna's max_days_old
// window, so incremental runs only re-fetch postings since the last
// cycle. A zero cursor (first run) means no window at all.
func maxDaysOld(since, now time.Time) int {
	if since.IsZero() {
		return 0
	}
	days := int(now.Sub(since).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days
}

func (s *APISource) fetchPair(ctx context.Context, role, location string, maxDays int) ([]model.JobResult, error) {
	var results []model.JobResult

	for page := 1; page <= adzunaMaxPages; page++ {
		batch, err := s.fetchPage(ctx, role, location, page, maxDays)
		if err != nil {
			return results, fmt.Errorf("page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break // No more results
		}
		results = append(results, batch...)
		if len(batch) < adzunaPageSize {
			break // Last page
		}
	}

	return results, nil
}

func (s *APISource) fetchPage(ctx context.Context, role, location string, page, maxDays int) ([]model.JobResult, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", s.baseURL, s.Country, page)

	params := url.Values{}
	params.Set("app_id", s.AppID)
	params.Set("app_key", s.AppKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	params.Set("what", role)
	params.Set("where", location)
	params.Set("content-type", "application/json")
	params.Set("sort_by", "date")
	if maxDays > 0 {
		params.Set("max_days_old", strconv.Itoa(maxDays))
	}

	reqURL := endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("adzuna returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp adzunaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	results := make([]model.JobResult, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		results = append(results, model.JobResult{
			ExternalID:   r.ID,
			Title:        r.Title,
			Company:      r.Company.DisplayName,
			Location:     r.Location.DisplayName,
			Description:  r.Description,
			SalaryMin:    r.SalaryMin,
			SalaryMax:    r.SalaryMax,
			SourceURL:    r.RedirectURL,
			ContractType: r.ContractType,
			PublishedAt:  r.Created,
		})
	}

	return results, nil
}

var _ Source = (*APISource)(nil)
