// Package campaign contains the pure business logic for campaign
// lifecycle management. It is transport-agnostic: used by the HTTP
// handlers (handler.go) and by the scheduler/pipeline workers.
package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"jobmate/campaign-service/internal/actionlog"
	"jobmate/campaign-service/internal/model"
)

// ─── Service ─────────────────────────────────────────────────────────────────

// Service encapsulates campaign business logic.
type Service struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	alog actionlog.Logger
}

// NewService returns a configured Service.
func NewService(pool *pgxpool.Pool, rdb *redis.Client, alog actionlog.Logger) *Service {
	return &Service{pool: pool, rdb: rdb, alog: alog}
}

const campaignColumns = `
	id, user_id, name, target_roles, locations, contract_types,
	salary_min, salary_max, remote, red_flags, match_threshold,
	test_mode, auto_apply, enabled_sources, status, created_at, updated_at`

// CreateInput carries the user-supplied campaign definition.
type CreateInput struct {
	Name           string               `json:"name"`
	Criteria       model.SearchCriteria `json:"criteria"`
	MatchThreshold int                  `json:"matchThreshold"`
	TestMode       *bool                `json:"testMode"`
	AutoApply      bool                 `json:"autoApply"`
	EnabledSources []string             `json:"enabledSources"`
}

// Create inserts a new campaign in DRAFT status.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Campaign, error) {
	if in.Name == "" {
		return nil, &ValidationError{Msg: "name is required"}
	}
	if in.MatchThreshold < 0 || in.MatchThreshold > 100 {
		return nil, &ValidationError{Msg: "matchThreshold must be between 0 and 100"}
	}
	if len(in.Criteria.TargetRoles) == 0 {
		return nil, &ValidationError{Msg: "criteria.targetRoles must not be empty"}
	}

	// Campaigns default to test mode: going live is an explicit choice.
	testMode := true
	if in.TestMode != nil {
		testMode = *in.TestMode
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO campaigns
		   (user_id, name, target_roles, locations, contract_types, salary_min,
		    salary_max, remote, red_flags, match_threshold, test_mode, auto_apply,
		    enabled_sources, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'DRAFT')
		 RETURNING`+campaignColumns,
		userID, in.Name, in.Criteria.TargetRoles, in.Criteria.Locations,
		in.Criteria.ContractTypes, in.Criteria.SalaryMin, in.Criteria.SalaryMax,
		in.Criteria.Remote, in.Criteria.RedFlags, in.MatchThreshold,
		testMode, in.AutoApply, in.EnabledSources,
	)

	c, err := scanCampaign(row)
	if err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	s.alog.Append(ctx, actionlog.Entry{
		EntityType: "campaign", EntityID: c.ID, Action: "campaign.create",
		Status: actionlog.StatusSuccess, TestMode: c.TestMode,
	})

	return c, nil
}

// List returns all campaigns for the given user, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]model.Campaign, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+campaignColumns+` FROM campaigns WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := make([]model.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("list campaigns scan: %w", err)
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// Get returns a single campaign by ID, validating ownership.
func (s *Service) Get(ctx context.Context, userID, campaignID string) (*model.Campaign, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+campaignColumns+` FROM campaigns WHERE id = $1 AND user_id = $2`,
		campaignID, userID,
	)
	c, err := scanCampaign(row)
	if err != nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// Transition moves a campaign to a new lifecycle status (start/pause/stop).
// The update is compare-and-set on the current status so concurrent
// transitions cannot race each other.
func (s *Service) Transition(ctx context.Context, userID, campaignID string, to Status) (*model.Campaign, error) {
	var currentStr string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM campaigns WHERE id = $1 AND user_id = $2`,
		campaignID, userID,
	).Scan(&currentStr)
	if err != nil {
		return nil, ErrNotFound
	}

	current, _ := ParseStatus(currentStr)
	if !IsTransitionAllowed(current, to) {
		return nil, &ValidationError{
			Msg: fmt.Sprintf("transition %s → %s is not allowed", current, to),
		}
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE campaigns SET status = $1::campaign_status, updated_at = NOW()
		 WHERE id = $2 AND user_id = $3 AND status = $4::campaign_status
		 RETURNING`+campaignColumns,
		string(to), campaignID, userID, currentStr,
	)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ValidationError{Msg: "campaign status changed concurrently, retry"}
		}
		return nil, fmt.Errorf("campaign transition update: %w", err)
	}

	s.alog.Append(ctx, actionlog.Entry{
		EntityType: "campaign", EntityID: c.ID,
		Action: "campaign.transition", Status: actionlog.StatusSuccess,
		TestMode: c.TestMode,
		Detail:   map[string]any{"from": string(current), "to": string(to)},
	})
	s.publish(ctx, "EVENT_CAMPAIGN_UPDATED", map[string]string{
		"campaignId": c.ID, "userId": c.UserID,
		"from": string(current), "to": string(to),
	})

	return c, nil
}

// MarkFailed force-fails a campaign. Reserved for workers reporting an
// infrastructure-level failure; individual entity failures never call this.
func (s *Service) MarkFailed(ctx context.Context, campaignID, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET status = 'FAILED', updated_at = NOW()
		 WHERE id = $1 AND status IN ('ACTIVE', 'PAUSED', 'DRAFT')`,
		campaignID,
	)
	if err != nil {
		return fmt.Errorf("mark campaign failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil // already terminal
	}

	s.alog.Append(ctx, actionlog.Entry{
		EntityType: "campaign", EntityID: campaignID,
		Action: "campaign.failed", Status: actionlog.StatusFailure,
		Detail: map[string]any{"reason": reason},
	})
	return nil
}

// ListOffers returns the campaign's job offers, optionally filtered by status.
func (s *Service) ListOffers(ctx context.Context, userID, campaignID, statusFilter string) ([]model.JobOffer, error) {
	// Ownership check first — avoids leaking offer existence across users.
	if _, err := s.Get(ctx, userID, campaignID); err != nil {
		return nil, err
	}

	const base = `
		SELECT id, campaign_id, source_id, external_id, title, company, location,
		       description, salary_min, salary_max, source_url, contract_type,
		       published_at, match_score, match_analysis, status, created_at, updated_at
		FROM job_offers
		WHERE campaign_id = $1`

	var (
		rows pgx.Rows
		err  error
	)
	if statusFilter != "" {
		rows, err = s.pool.Query(ctx, base+` AND status = $2::job_offer_status ORDER BY updated_at DESC`, campaignID, statusFilter)
	} else {
		rows, err = s.pool.Query(ctx, base+` ORDER BY updated_at DESC`, campaignID)
	}
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	offers := make([]model.JobOffer, 0)
	for rows.Next() {
		var o model.JobOffer
		if err := rows.Scan(
			&o.ID, &o.CampaignID, &o.SourceID, &o.ExternalID, &o.Title, &o.Company,
			&o.Location, &o.Description, &o.SalaryMin, &o.SalaryMax, &o.SourceURL,
			&o.ContractType, &o.PublishedAt, &o.MatchScore, &o.MatchAnalysis,
			&o.Status, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("list offers scan: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// AddManualPosting queues a user-supplied posting for the manual source.
// The next discovery run ingests it through the same dedup path as any
// other source. A posting without an external id gets a generated one
// (pasted postings rarely carry a stable id).
func (s *Service) AddManualPosting(ctx context.Context, userID, campaignID string, posting model.JobResult) error {
	if posting.Title == "" {
		return &ValidationError{Msg: "posting requires a title"}
	}
	if posting.ExternalID == "" {
		posting.ExternalID = "manual-" + uuid.NewString()
	}
	if _, err := s.Get(ctx, userID, campaignID); err != nil {
		return err
	}

	raw, err := json.Marshal(posting)
	if err != nil {
		return fmt.Errorf("marshal posting: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO manual_postings (campaign_id, posting) VALUES ($1, $2::jsonb)`,
		campaignID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("insert manual posting: %w", err)
	}
	return nil
}

// publish sends a gateway event on redis pub/sub (non-fatal).
func (s *Service) publish(ctx context.Context, channel string, payload map[string]string) {
	event, _ := json.Marshal(payload)
	if err := s.rdb.Publish(ctx, channel, event).Err(); err != nil {
		slog.Warn("publish event failed", "channel", channel, "err", err)
	}
}

// scanCampaign reads one campaign row from a pgx.Row or pgx.Rows.
func scanCampaign(row pgx.Row) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Criteria.TargetRoles, &c.Criteria.Locations,
		&c.Criteria.ContractTypes, &c.Criteria.SalaryMin, &c.Criteria.SalaryMax,
		&c.Criteria.Remote, &c.Criteria.RedFlags, &c.MatchThreshold,
		&c.TestMode, &c.AutoApply, &c.EnabledSources, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNotFound is returned when a campaign is missing or does not belong to the user.
var ErrNotFound = fmt.Errorf("campaign not found")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }
