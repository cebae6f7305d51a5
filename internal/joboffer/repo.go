package joboffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"jobmate/campaign-service/internal/model"
)

// ErrNotFound is returned when an offer is missing or not owned by the user.
var ErrNotFound = fmt.Errorf("job offer not found")

// ErrIllegalTransition is returned for a user action the state machine rejects.
type ErrIllegalTransition struct{ From, To Status }

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("transition %s → %s is not allowed", e.From, e.To)
}

// Repo persists job offers with raw pgx SQL.
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepo returns a configured Repo.
func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// InsertDiscovered upserts one normalised posting in DISCOVERED status.
// Returns false when the (campaign, source, external id) triple already
// exists — discovery stays idempotent across re-runs and concurrent runs.
func (r *Repo) InsertDiscovered(ctx context.Context, campaignID, sourceID string, job model.JobResult) (bool, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("marshal posting: %w", err)
	}

	var salaryMin, salaryMax *float64
	if job.SalaryMin > 0 {
		salaryMin = &job.SalaryMin
	}
	if job.SalaryMax > 0 {
		salaryMax = &job.SalaryMax
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO job_offers
		   (campaign_id, source_id, external_id, title, company, location,
		    description, salary_min, salary_max, source_url, contract_type,
		    published_at, raw_data, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, 'DISCOVERED')
		 ON CONFLICT (campaign_id, source_id, external_id) DO NOTHING`,
		campaignID, sourceID, job.ExternalID, job.Title, job.Company, job.Location,
		job.Description, salaryMin, salaryMax, job.SourceURL, job.ContractType,
		job.PublishedAt, string(raw),
	)
	if err != nil {
		return false, fmt.Errorf("insert job offer: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimedOffer is one offer claimed for analysis, together with the
// campaign fields the scorer needs.
type ClaimedOffer struct {
	Offer          model.JobOffer
	UserID         string
	MatchThreshold int
	TestMode       bool
	AutoApply      bool
}

// ClaimForAnalysis atomically claims the oldest DISCOVERED offer of an
// ACTIVE campaign, moving it to ANALYZING. Returns (nil, nil) when no
// offer is claimable. SKIP LOCKED guarantees at-most-one worker wins a
// given offer; pausing a campaign blocks new claims without touching
// offers already in flight.
func (r *Repo) ClaimForAnalysis(ctx context.Context) (*ClaimedOffer, error) {
	row := r.pool.QueryRow(ctx, `
		WITH next AS (
		  SELECT o.id
		  FROM job_offers o
		  JOIN campaigns c ON c.id = o.campaign_id
		  WHERE o.status = 'DISCOVERED' AND c.status = 'ACTIVE'
		  ORDER BY o.created_at
		  LIMIT 1
		  FOR UPDATE OF o SKIP LOCKED
		)
		UPDATE job_offers o
		SET status = 'ANALYZING', updated_at = NOW()
		FROM next, campaigns c
		WHERE o.id = next.id AND c.id = o.campaign_id
		RETURNING o.id, o.campaign_id, o.source_id, o.external_id, o.title,
		          o.company, o.location, o.description, o.salary_min, o.salary_max,
		          o.source_url, o.contract_type, o.published_at, o.status,
		          c.user_id, c.match_threshold, c.test_mode, c.auto_apply`)

	var co ClaimedOffer
	o := &co.Offer
	err := row.Scan(
		&o.ID, &o.CampaignID, &o.SourceID, &o.ExternalID, &o.Title,
		&o.Company, &o.Location, &o.Description, &o.SalaryMin, &o.SalaryMax,
		&o.SourceURL, &o.ContractType, &o.PublishedAt, &o.Status,
		&co.UserID, &co.MatchThreshold, &co.TestMode, &co.AutoApply,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim offer: %w", err)
	}
	return &co, nil
}

// SetEmbedding stores the posting embedding computed during analysis.
func (r *Repo) SetEmbedding(ctx context.Context, offerID string, embedding []float32) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE job_offers SET embedding = $1, updated_at = NOW() WHERE id = $2`,
		pgvector.NewVector(embedding), offerID,
	)
	if err != nil {
		return fmt.Errorf("set offer embedding: %w", err)
	}
	return nil
}

// CompleteAnalysis records the score and analysis and moves the offer
// from ANALYZING to MATCHED or REJECTED. Status-gated so a stale worker
// cannot overwrite a concurrent transition.
func (r *Repo) CompleteAnalysis(ctx context.Context, offerID string, score int, analysis json.RawMessage, matched bool) error {
	to := StatusRejected
	if matched {
		to = StatusMatched
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE job_offers
		 SET status = $1::job_offer_status, match_score = $2,
		     match_analysis = $3::jsonb, updated_at = NOW()
		 WHERE id = $4 AND status = 'ANALYZING'`,
		string(to), score, string(analysis), offerID,
	)
	if err != nil {
		return fmt.Errorf("complete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("offer %s left ANALYZING underneath us", offerID)
	}
	return nil
}

// ReleaseClaim returns an ANALYZING offer to DISCOVERED without a
// result. Used when scoring cannot run yet (profile embedding missing).
func (r *Repo) ReleaseClaim(ctx context.Context, offerID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE job_offers SET status = 'DISCOVERED', updated_at = NOW()
		 WHERE id = $1 AND status = 'ANALYZING'`,
		offerID,
	)
	if err != nil {
		return fmt.Errorf("release offer claim: %w", err)
	}
	return nil
}

// MarkError moves an ANALYZING offer to ERROR. The offer is excluded
// from further pipeline work until an explicit rescore.
func (r *Repo) MarkError(ctx context.Context, offerID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE job_offers SET status = 'ERROR', updated_at = NOW()
		 WHERE id = $1 AND status = 'ANALYZING'`,
		offerID,
	)
	if err != nil {
		return fmt.Errorf("mark offer error: %w", err)
	}
	return nil
}

// MarkApplied moves a MATCHED offer to APPLIED once its application is
// submitted.
func (r *Repo) MarkApplied(ctx context.Context, offerID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE job_offers SET status = 'APPLIED', updated_at = NOW()
		 WHERE id = $1 AND status = 'MATCHED'`,
		offerID,
	)
	if err != nil {
		return fmt.Errorf("mark offer applied: %w", err)
	}
	return nil
}

// Sweep bounds: how long an ANALYZING claim may sit before the owning
// worker is assumed dead, and how long a DISCOVERED offer stays
// claimable before it expires.
const (
	staleClaimAge = "15 minutes"
	offerMaxAge   = "60 days"
)

// SweepStale returns abandoned ANALYZING claims to DISCOVERED so the
// next analysis poll picks them up again, and expires DISCOVERED offers
// past offerMaxAge. The expiry cutoff runs on discovery time: source
// publication dates are free-form text and not comparable.
func (r *Repo) SweepStale(ctx context.Context) (int, error) {
	released, err := r.pool.Exec(ctx,
		`UPDATE job_offers SET status = 'DISCOVERED', updated_at = NOW()
		 WHERE status = 'ANALYZING'
		   AND updated_at < NOW() - interval '`+staleClaimAge+`'`)
	if err != nil {
		return 0, fmt.Errorf("sweep stale analyzing: %w", err)
	}

	expired, err := r.pool.Exec(ctx,
		`UPDATE job_offers SET status = 'EXPIRED', updated_at = NOW()
		 WHERE status = 'DISCOVERED'
		   AND created_at < NOW() - interval '`+offerMaxAge+`'`)
	if err != nil {
		return int(released.RowsAffected()), fmt.Errorf("expire old offers: %w", err)
	}

	return int(released.RowsAffected() + expired.RowsAffected()), nil
}

// Rescore resets an ERROR or REJECTED offer to DISCOVERED on explicit
// user request, re-entering it into the analysis queue. Ownership is
// validated through the campaign.
func (r *Repo) Rescore(ctx context.Context, userID, offerID string) error {
	var statusStr string
	err := r.pool.QueryRow(ctx,
		`SELECT o.status FROM job_offers o
		 JOIN campaigns c ON c.id = o.campaign_id
		 WHERE o.id = $1 AND c.user_id = $2`,
		offerID, userID,
	).Scan(&statusStr)
	if err != nil {
		return ErrNotFound
	}

	from, _ := ParseStatus(statusStr)
	if !IsTransitionAllowed(from, StatusDiscovered) {
		return &ErrIllegalTransition{From: from, To: StatusDiscovered}
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE job_offers
		 SET status = 'DISCOVERED', match_score = NULL, match_analysis = NULL,
		     updated_at = NOW()
		 WHERE id = $1 AND status = $2::job_offer_status`,
		offerID, statusStr,
	)
	if err != nil {
		return fmt.Errorf("rescore offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("offer %s changed status concurrently", offerID)
	}
	return nil
}
