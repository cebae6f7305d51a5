// Package match scores discovered job offers against the candidate
// profile in two stages: a cheap embedding-space similarity pre-filter,
// then a structured reasoning call for offers passing the floor. The
// two-stage design bounds provider cost — the expensive reasoning step
// never runs on postings that are obviously unrelated.
package match

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"jobmate/campaign-service/internal/actionlog"
	"jobmate/campaign-service/internal/joboffer"
	"jobmate/campaign-service/internal/model"
	"jobmate/campaign-service/internal/profile"
)

// DefaultPrefilterFloor is the cosine similarity below which the
// reasoning call is skipped and the similarity itself becomes the score.
const DefaultPrefilterFloor = 0.30

// Embedder is the embedding provider contract (implemented by ai.Client).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Analyzer is the reasoning stage contract.
type Analyzer interface {
	AnalyzeMatch(ctx context.Context, p *model.Profile, offer model.JobOffer) (*model.MatchAnalysis, error)
}

// OfferStore is the slice of the job offer repository the scorer needs.
type OfferStore interface {
	SetEmbedding(ctx context.Context, offerID string, embedding []float32) error
	CompleteAnalysis(ctx context.Context, offerID string, score int, analysis json.RawMessage, matched bool) error
	MarkError(ctx context.Context, offerID string) error
	ReleaseClaim(ctx context.Context, offerID string) error
}

// ApplicationCreator creates the application when an offer crosses the
// campaign threshold.
type ApplicationCreator interface {
	CreateForOffer(ctx context.Context, offerID, campaignID, userID string, testMode, requiresConfirm bool) (*model.Application, error)
}

// Scorer processes claimed offers end to end: embed → pre-filter →
// analyze → threshold gate → application creation.
type Scorer struct {
	store    OfferStore
	apps     ApplicationCreator
	profiles profile.Provider
	embedder Embedder
	analyzer Analyzer
	rdb      *redis.Client
	alog     actionlog.Logger
	floor    float64
}

// NewScorer constructs a Scorer with the default pre-filter floor.
func NewScorer(store OfferStore, apps ApplicationCreator, profiles profile.Provider,
	embedder Embedder, analyzer Analyzer, rdb *redis.Client, alog actionlog.Logger) *Scorer {
	return &Scorer{
		store:    store,
		apps:     apps,
		profiles: profiles,
		embedder: embedder,
		analyzer: analyzer,
		rdb:      rdb,
		alog:     alog,
		floor:    DefaultPrefilterFloor,
	}
}

// SetFloor overrides the pre-filter floor (tests, operator tuning).
func (s *Scorer) SetFloor(floor float64) { s.floor = floor }

// Process scores one claimed offer. Scoring errors mark the offer ERROR
// and are not returned as worker failures — the offer stays out of the
// pipeline until a user requests a rescore.
func (s *Scorer) Process(ctx context.Context, co *joboffer.ClaimedOffer) error {
	offer := co.Offer

	profileEmbedding, err := s.profiles.GetProfileEmbedding(ctx, co.UserID)
	if err != nil {
		return s.fail(ctx, co, fmt.Errorf("load profile embedding: %w", err))
	}
	if profileEmbedding == nil {
		// Profile embedding not generated yet: not an error, the offer
		// just is not scoreable yet. Release the claim for a later run.
		log.Printf("[match] Profile %s has no embedding yet — releasing offer %s", co.UserID, offer.ID)
		return s.store.ReleaseClaim(ctx, offer.ID)
	}

	p, err := s.profiles.GetProfile(ctx, co.UserID)
	if err != nil {
		return s.fail(ctx, co, fmt.Errorf("load profile: %w", err))
	}

	offerEmbedding, err := s.embedder.Embed(ctx, offerText(offer))
	if err != nil {
		return s.fail(ctx, co, fmt.Errorf("embed posting: %w", err))
	}
	if err := s.store.SetEmbedding(ctx, offer.ID, offerEmbedding); err != nil {
		slog.Warn("store offer embedding failed", "offerId", offer.ID, "err", err)
	}

	similarity := Cosine(profileEmbedding, offerEmbedding)

	var analysis *model.MatchAnalysis
	if similarity < s.floor {
		// Stage A short-circuit: the similarity itself becomes the
		// score so the threshold gate applies uniformly.
		analysis = prefilterAnalysis(similarity)
	} else {
		analysis, err = s.analyzer.AnalyzeMatch(ctx, p, offer)
		if err != nil {
			return s.fail(ctx, co, fmt.Errorf("reasoning: %w", err))
		}
	}

	matched := analysis.MatchScore >= co.MatchThreshold

	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return s.fail(ctx, co, fmt.Errorf("marshal analysis: %w", err))
	}
	if err := s.store.CompleteAnalysis(ctx, offer.ID, analysis.MatchScore, analysisJSON, matched); err != nil {
		return fmt.Errorf("complete analysis: %w", err)
	}

	s.alog.Append(ctx, actionlog.Entry{
		EntityType: "job_offer", EntityID: offer.ID,
		Action: "offer.analyze", Status: actionlog.StatusSuccess,
		TestMode: co.TestMode,
		Detail: map[string]any{
			"score": analysis.MatchScore, "matched": matched,
			"similarity": similarity,
		},
	})
	s.publishScored(ctx, co, analysis.MatchScore, matched)

	if !matched {
		return nil
	}

	// requiresConfirm is false only for auto-apply campaigns; the
	// dispatcher's test-mode gate keeps auto-apply safe in test mode.
	app, err := s.apps.CreateForOffer(ctx, offer.ID, offer.CampaignID, co.UserID,
		co.TestMode, !co.AutoApply)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	if app != nil {
		log.Printf("[match] Offer %s matched (score %d ≥ %d) — application %s created",
			offer.ID, analysis.MatchScore, co.MatchThreshold, app.ID)
	}
	return nil
}

// fail marks the offer ERROR and records the reason.
func (s *Scorer) fail(ctx context.Context, co *joboffer.ClaimedOffer, cause error) error {
	log.Printf("[match] Scoring offer %s failed: %v", co.Offer.ID, cause)

	if err := s.store.MarkError(ctx, co.Offer.ID); err != nil {
		return fmt.Errorf("mark offer error: %w", err)
	}
	s.alog.Append(ctx, actionlog.Entry{
		EntityType: "job_offer", EntityID: co.Offer.ID,
		Action: "offer.analyze", Status: actionlog.StatusFailure,
		TestMode: co.TestMode,
		Detail:   map[string]any{"error": cause.Error()},
	})
	return nil
}

func (s *Scorer) publishScored(ctx context.Context, co *joboffer.ClaimedOffer, score int, matched bool) {
	event, _ := json.Marshal(map[string]any{
		"type":       "EVENT_OFFER_SCORED",
		"offerId":    co.Offer.ID,
		"campaignId": co.Offer.CampaignID,
		"userId":     co.UserID,
		"score":      score,
		"matched":    matched,
	})
	if err := s.rdb.Publish(ctx, "EVENT_OFFER_SCORED", event).Err(); err != nil {
		slog.Warn("publish EVENT_OFFER_SCORED failed", "err", err)
	}
}

// prefilterAnalysis builds the analysis recorded for offers rejected by
// the similarity floor, scaling cosine similarity onto the 0-100 score.
func prefilterAnalysis(similarity float64) *model.MatchAnalysis {
	score := int(similarity * 100)
	if score < 0 {
		score = 0
	}
	return &model.MatchAnalysis{
		MatchScore: score,
		MatchBreakdown: model.MatchBreakdown{
			Skills: score, Experience: score, Education: score, Location: score,
		},
		Recommendation: "skip",
		Reasoning:      "Posting is below the embedding similarity floor; detailed analysis skipped.",
	}
}

func offerText(o model.JobOffer) string {
	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		o.Title, o.Company, o.Location, o.ContractType, o.Description)
}
