package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/campaign-service/internal/model"
)

// ManualSource drains postings queued by the user through the API
// (manual_postings table). Returned rows are flagged ingested so the
// next run does not re-fetch them; the dedup layer catches any overlap
// from concurrent runs anyway.
type ManualSource struct {
	pool *pgxpool.Pool
}

// NewManualSource constructs the adapter.
func NewManualSource(pool *pgxpool.Pool) *ManualSource {
	return &ManualSource{pool: pool}
}

// ID implements Source.
func (s *ManualSource) ID() string { return "manual" }

// Fetch returns the campaign's pending manual postings. A malformed
// posting row is logged and skipped.
func (s *ManualSource) Fetch(ctx context.Context, campaignID string, criteria model.SearchCriteria, since time.Time) ([]model.JobResult, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE manual_postings
		 SET ingested = true
		 WHERE campaign_id = $1 AND ingested = false
		 RETURNING id, posting`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("drain manual postings: %w", err)
	}
	defer rows.Close()

	var results []model.JobResult
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan manual posting: %w", err)
		}

		var job model.JobResult
		if err := json.Unmarshal(raw, &job); err != nil {
			log.Printf("[source/manual] Malformed posting %s: %v — skipping", id, err)
			continue
		}
		results = append(results, job)
	}

	return results, rows.Err()
}

var _ Source = (*ManualSource)(nil)
