// Application business logic. Transport-agnostic: used by the HTTP
// handlers (handler.go) and by the pipeline workers.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"jobmate/campaign-service/internal/actionlog"
	"jobmate/campaign-service/internal/model"
)

// ─── Service ─────────────────────────────────────────────────────────────────

// Service encapsulates application state-machine logic. All transitions
// go through claim-then-transition: the UPDATE is gated on the expected
// pre-status so a stale caller loses instead of double-processing.
type Service struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	alog actionlog.Logger
}

// NewService returns a configured Service.
func NewService(pool *pgxpool.Pool, rdb *redis.Client, alog actionlog.Logger) *Service {
	return &Service{pool: pool, rdb: rdb, alog: alog}
}

const appColumns = `
	id, job_offer_id, campaign_id, user_id, status, method, requires_confirm,
	test_mode, confirmed_at, submitted_at, created_at, updated_at`

// ─── User-facing reads ───────────────────────────────────────────────────────

// List returns all applications for the given user, newest first.
// If statusFilter is non-empty, only applications with that status are returned.
func (s *Service) List(ctx context.Context, userID, statusFilter string) ([]model.Application, error) {
	const base = `SELECT` + appColumns + ` FROM applications WHERE user_id = $1`

	var (
		rows pgx.Rows
		err  error
	)
	if statusFilter != "" {
		rows, err = s.pool.Query(ctx, base+` AND status = $2::application_status ORDER BY updated_at DESC`, userID, statusFilter)
	} else {
		rows, err = s.pool.Query(ctx, base+` ORDER BY updated_at DESC`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	apps := make([]model.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("list applications scan: %w", err)
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

// Get returns a single application by ID, validating ownership.
func (s *Service) Get(ctx context.Context, userID, appID string) (*model.Application, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+appColumns+` FROM applications WHERE id = $1 AND user_id = $2`,
		appID, userID,
	)
	a, err := scanApplication(row)
	if err != nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// Documents returns the generated documents for an application, newest
// versions first.
func (s *Service) Documents(ctx context.Context, userID, appID string) ([]model.GeneratedDocument, error) {
	if _, err := s.Get(ctx, userID, appID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, application_id, doc_type, version, content, artifact_ref, created_at
		 FROM generated_documents
		 WHERE application_id = $1
		 ORDER BY doc_type, version DESC`,
		appID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]model.GeneratedDocument, 0)
	for rows.Next() {
		var d model.GeneratedDocument
		if err := rows.Scan(&d.ID, &d.ApplicationID, &d.DocType, &d.Version,
			&d.Content, &d.ArtifactRef, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("list documents scan: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ─── User actions ────────────────────────────────────────────────────────────

// Confirm moves an application from PENDING_REVIEW to READY_TO_SUBMIT on
// explicit user approval.
func (s *Service) Confirm(ctx context.Context, userID, appID string) (*model.Application, error) {
	return s.userTransition(ctx, userID, appID, StatusReadyToSubmit, "application.confirm",
		`confirmed_at = NOW()`)
}

// Withdraw terminates an application. A SUBMITTED application cannot be
// withdrawn — the real-world submission already happened.
func (s *Service) Withdraw(ctx context.Context, userID, appID string) (*model.Application, error) {
	return s.userTransition(ctx, userID, appID, StatusWithdrawn, "application.withdraw", "")
}

// Regenerate re-queues document generation. Valid from GENERATION_FAILED
// and from PENDING_REVIEW (the user wants a better version).
func (s *Service) Regenerate(ctx context.Context, userID, appID string) (*model.Application, error) {
	return s.userTransition(ctx, userID, appID, StatusPendingGeneration, "application.regenerate", "")
}

// RetrySubmission re-enters READY_TO_SUBMIT after a SUBMISSION_FAILED.
// The dispatcher never retries on its own: a duplicate real-world
// submission is worse than a stuck one.
func (s *Service) RetrySubmission(ctx context.Context, userID, appID string) (*model.Application, error) {
	app, err := s.Get(ctx, userID, appID)
	if err != nil {
		return nil, err
	}
	if Status(app.Status) != StatusSubmissionFailed {
		return nil, &ValidationError{Msg: "only a failed submission can be retried"}
	}
	return s.userTransition(ctx, userID, appID, StatusReadyToSubmit, "application.retry", "")
}

// MarkSubmitted records that the user completed an assisted submission
// themselves. Sets method=ASSISTED when no method was selected yet and
// flips the job offer to APPLIED.
func (s *Service) MarkSubmitted(ctx context.Context, userID, appID string) (*model.Application, error) {
	app, err := s.userTransition(ctx, userID, appID, StatusSubmitted, "application.mark-submitted",
		`submitted_at = NOW(), method = COALESCE(method, 'ASSISTED')`)
	if err != nil {
		return nil, err
	}
	s.markOfferApplied(ctx, app.JobOfferID)
	return app, nil
}

// userTransition validates and applies one user-requested transition.
// extraSet is appended to the UPDATE SET clause (no bind parameters).
func (s *Service) userTransition(ctx context.Context, userID, appID string, to Status, action, extraSet string) (*model.Application, error) {
	var currentStr string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM applications WHERE id = $1 AND user_id = $2`,
		appID, userID,
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

	set := `status = $1::application_status, updated_at = NOW()`
	if extraSet != "" {
		set += ", " + extraSet
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE applications SET `+set+`
		 WHERE id = $2 AND user_id = $3 AND status = $4::application_status
		 RETURNING`+appColumns,
		string(to), appID, userID, currentStr,
	)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ValidationError{Msg: "application status changed concurrently, retry"}
		}
		return nil, fmt.Errorf("%s update: %w", action, err)
	}

	s.logAndPublish(ctx, app, action, string(current))
	return app, nil
}

// ─── Pipeline operations ─────────────────────────────────────────────────────

// CreateForOffer inserts the application for a freshly matched offer.
// One application per offer: a concurrent duplicate insert is a no-op.
// testMode is copied from the campaign here and never updated again, so
// a later campaign edit cannot change the safety mode of work already
// in flight.
func (s *Service) CreateForOffer(ctx context.Context, offerID, campaignID, userID string, testMode, requiresConfirm bool) (*model.Application, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO applications
		   (job_offer_id, campaign_id, user_id, status, requires_confirm, test_mode)
		 VALUES ($1, $2, $3, 'PENDING_GENERATION', $4, $5)
		 ON CONFLICT (job_offer_id) DO NOTHING
		 RETURNING`+appColumns,
		offerID, campaignID, userID, requiresConfirm, testMode,
	)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // already created by a concurrent run
		}
		return nil, fmt.Errorf("create application: %w", err)
	}

	s.logAndPublish(ctx, app, "application.create", "")
	return app, nil
}

// ClaimedApplication is one application claimed by a pipeline stage,
// together with its job offer.
type ClaimedApplication struct {
	App   model.Application
	Offer model.JobOffer
}

// ClaimForGeneration atomically claims the oldest PENDING_GENERATION
// application of an ACTIVE campaign, moving it to GENERATING.
// Returns (nil, nil) when nothing is claimable.
func (s *Service) ClaimForGeneration(ctx context.Context) (*ClaimedApplication, error) {
	return s.claim(ctx, StatusPendingGeneration, StatusGenerating, "")
}

// ClaimForDispatch atomically claims the oldest READY_TO_SUBMIT
// application of an ACTIVE campaign, moving it to SUBMITTING.
// ASSISTED applications are never claimed: they already went through
// the dispatcher once and now wait for the user's mark-submitted.
func (s *Service) ClaimForDispatch(ctx context.Context) (*ClaimedApplication, error) {
	return s.claim(ctx, StatusReadyToSubmit, StatusSubmitting,
		`AND (a.method IS NULL OR a.method <> 'ASSISTED')`)
}

// extraCond is appended to the claim predicate (no bind parameters).
func (s *Service) claim(ctx context.Context, from, to Status, extraCond string) (*ClaimedApplication, error) {
	row := s.pool.QueryRow(ctx, `
		WITH next AS (
		  SELECT a.id
		  FROM applications a
		  JOIN campaigns c ON c.id = a.campaign_id
		  WHERE a.status = $1::application_status AND c.status = 'ACTIVE' `+extraCond+`
		  ORDER BY a.created_at
		  LIMIT 1
		  FOR UPDATE OF a SKIP LOCKED
		)
		UPDATE applications a
		SET status = $2::application_status, updated_at = NOW()
		FROM next, job_offers o
		WHERE a.id = next.id AND o.id = a.job_offer_id
		RETURNING a.id, a.job_offer_id, a.campaign_id, a.user_id, a.status,
		          a.method, a.requires_confirm, a.test_mode, a.confirmed_at,
		          a.submitted_at, a.created_at, a.updated_at,
		          o.id, o.campaign_id, o.source_id, o.external_id, o.title,
		          o.company, o.location, o.description, o.salary_min, o.salary_max,
		          o.source_url, o.contract_type, o.published_at, o.status`,
		string(from), string(to))

	var ca ClaimedApplication
	a, o := &ca.App, &ca.Offer
	err := row.Scan(
		&a.ID, &a.JobOfferID, &a.CampaignID, &a.UserID, &a.Status,
		&a.Method, &a.RequiresConfirm, &a.TestMode, &a.ConfirmedAt,
		&a.SubmittedAt, &a.CreatedAt, &a.UpdatedAt,
		&o.ID, &o.CampaignID, &o.SourceID, &o.ExternalID, &o.Title,
		&o.Company, &o.Location, &o.Description, &o.SalaryMin, &o.SalaryMax,
		&o.SourceURL, &o.ContractType, &o.PublishedAt, &o.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim application %s: %w", from, err)
	}
	return &ca, nil
}

// workerTransition applies a status-gated transition on behalf of a
// pipeline worker. Returns the updated application.
func (s *Service) workerTransition(ctx context.Context, appID string, from, to Status, action, extraSet string) (*model.Application, error) {
	set := `status = $1::application_status, updated_at = NOW()`
	if extraSet != "" {
		set += ", " + extraSet
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE applications SET `+set+`
		 WHERE id = $2 AND status = $3::application_status
		 RETURNING`+appColumns,
		string(to), appID, string(from),
	)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("application %s left %s underneath us", appID, from)
		}
		return nil, fmt.Errorf("%s update: %w", action, err)
	}

	s.logAndPublish(ctx, app, action, string(from))
	return app, nil
}

// FinishGeneration records the outcome of a generation attempt. On
// success the application lands in PENDING_REVIEW, then auto-advances to
// READY_TO_SUBMIT when no confirmation is required (auto-apply).
func (s *Service) FinishGeneration(ctx context.Context, appID string, ok bool) (*model.Application, error) {
	if !ok {
		return s.workerTransition(ctx, appID,
			StatusGenerating, StatusGenerationFailed, "application.generation-failed", "")
	}

	app, err := s.workerTransition(ctx, appID,
		StatusGenerating, StatusPendingReview, "application.generated", "")
	if err != nil {
		return nil, err
	}

	if !app.RequiresConfirm {
		return s.workerTransition(ctx, appID,
			StatusPendingReview, StatusReadyToSubmit, "application.auto-confirm",
			`confirmed_at = NOW()`)
	}
	return app, nil
}

// SetMethod records the dispatch method selected for the application.
func (s *Service) SetMethod(ctx context.Context, appID, method string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE applications SET method = $1::application_method, updated_at = NOW()
		 WHERE id = $2`,
		method, appID,
	)
	if err != nil {
		return fmt.Errorf("set method: %w", err)
	}
	return nil
}

// FinishDispatch records the outcome of a dispatch attempt.
func (s *Service) FinishDispatch(ctx context.Context, appID string, ok bool) (*model.Application, error) {
	if !ok {
		return s.workerTransition(ctx, appID,
			StatusSubmitting, StatusSubmissionFailed, "application.submission-failed", "")
	}

	app, err := s.workerTransition(ctx, appID,
		StatusSubmitting, StatusSubmitted, "application.submitted",
		`submitted_at = NOW()`)
	if err != nil {
		return nil, err
	}
	s.markOfferApplied(ctx, app.JobOfferID)
	return app, nil
}

// HandBackAssisted releases a SUBMITTING claim for an application whose
// method resolved to ASSISTED: the user must act, so it returns to
// READY_TO_SUBMIT with the method recorded. The recorded method keeps
// the application out of ClaimForDispatch, so the hand-back is final
// until the user's mark-submitted or withdraw.
func (s *Service) HandBackAssisted(ctx context.Context, appID string) (*model.Application, error) {
	return s.workerTransition(ctx, appID,
		StatusSubmitting, StatusReadyToSubmit, "application.assisted",
		`method = 'ASSISTED'`)
}

// staleClaimAge bounds how long an in-progress claim may sit before the
// sweep assumes the owning worker died.
const staleClaimAge = "15 minutes"

// SweepStale fails in-progress claims abandoned by a crashed worker.
// GENERATING falls to GENERATION_FAILED, where regenerate re-queues it.
// SUBMITTING falls to SUBMISSION_FAILED, not back into the dispatch
// queue: the crash may have happened after the transmission, so the
// retry is the user's call.
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	released := 0
	for _, c := range []struct{ from, to Status }{
		{StatusGenerating, StatusGenerationFailed},
		{StatusSubmitting, StatusSubmissionFailed},
	} {
		rows, err := s.pool.Query(ctx,
			`UPDATE applications
			 SET status = $1::application_status, updated_at = NOW()
			 WHERE status = $2::application_status
			   AND updated_at < NOW() - interval '`+staleClaimAge+`'
			 RETURNING`+appColumns,
			string(c.to), string(c.from),
		)
		if err != nil {
			return released, fmt.Errorf("sweep stale %s: %w", c.from, err)
		}

		var swept []*model.Application
		for rows.Next() {
			app, err := scanApplication(rows)
			if err != nil {
				rows.Close()
				return released, fmt.Errorf("sweep stale %s scan: %w", c.from, err)
			}
			swept = append(swept, app)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return released, fmt.Errorf("sweep stale %s: %w", c.from, err)
		}

		for _, app := range swept {
			s.logAndPublish(ctx, app, "application.stale-release", string(c.from))
			released++
		}
	}
	return released, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (s *Service) markOfferApplied(ctx context.Context, offerID string) {
	_, err := s.pool.Exec(ctx,
		`UPDATE job_offers SET status = 'APPLIED', updated_at = NOW()
		 WHERE id = $1 AND status = 'MATCHED'`,
		offerID,
	)
	if err != nil {
		slog.Warn("mark offer applied failed", "offerId", offerID, "err", err)
	}
}

func (s *Service) logAndPublish(ctx context.Context, app *model.Application, action, from string) {
	detail := map[string]any{"to": app.Status}
	if from != "" {
		detail["from"] = from
	}
	s.alog.Append(ctx, actionlog.Entry{
		EntityType: "application", EntityID: app.ID,
		Action: action, Status: actionlog.StatusSuccess,
		TestMode: app.TestMode, Detail: detail,
	})

	event, _ := json.Marshal(map[string]string{
		"type":          "EVENT_APPLICATION_UPDATED",
		"applicationId": app.ID,
		"userId":        app.UserID,
		"status":        app.Status,
	})
	if err := s.rdb.Publish(ctx, "EVENT_APPLICATION_UPDATED", event).Err(); err != nil {
		slog.Warn("publish EVENT_APPLICATION_UPDATED failed", "err", err)
	}
}

// scanApplication reads one application row.
func scanApplication(row pgx.Row) (*model.Application, error) {
	var a model.Application
	err := row.Scan(
		&a.ID, &a.JobOfferID, &a.CampaignID, &a.UserID, &a.Status,
		&a.Method, &a.RequiresConfirm, &a.TestMode,
		&a.ConfirmedAt, &a.SubmittedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNotFound is returned when an application is missing or does not belong to the user.
var ErrNotFound = fmt.Errorf("application not found")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }
