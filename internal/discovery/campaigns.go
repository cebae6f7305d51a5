package discovery

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/campaign-service/internal/model"
)

const campaignColumns = `
	id, user_id, name, target_roles, locations, contract_types,
	salary_min, salary_max, remote, red_flags, match_threshold,
	test_mode, auto_apply, enabled_sources, status, created_at, updated_at`

// LoadActiveCampaigns fetches all ACTIVE campaigns from the DB.
func LoadActiveCampaigns(ctx context.Context, pool *pgxpool.Pool) ([]model.Campaign, error) {
	rows, err := pool.Query(ctx,
		`SELECT`+campaignColumns+` FROM campaigns WHERE status = 'ACTIVE'`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.Name, &c.Criteria.TargetRoles, &c.Criteria.Locations,
			&c.Criteria.ContractTypes, &c.Criteria.SalaryMin, &c.Criteria.SalaryMax,
			&c.Criteria.Remote, &c.Criteria.RedFlags, &c.MatchThreshold,
			&c.TestMode, &c.AutoApply, &c.EnabledSources, &c.Status,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, rows.Err()
}

// LoadActiveCampaign fetches one campaign by id, only when ACTIVE.
func LoadActiveCampaign(ctx context.Context, pool *pgxpool.Pool, campaignID string) (*model.Campaign, error) {
	rows, err := pool.Query(ctx,
		`SELECT`+campaignColumns+` FROM campaigns WHERE id = $1 AND status = 'ACTIVE'`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("query campaign: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("campaign %s is not active", campaignID)
	}

	var c model.Campaign
	if err := rows.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Criteria.TargetRoles, &c.Criteria.Locations,
		&c.Criteria.ContractTypes, &c.Criteria.SalaryMin, &c.Criteria.SalaryMax,
		&c.Criteria.Remote, &c.Criteria.RedFlags, &c.MatchThreshold,
		&c.TestMode, &c.AutoApply, &c.EnabledSources, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}

	return &c, nil
}
