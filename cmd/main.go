// jobmate-campaign-service
//
// Automated job-search campaigns: discovery → match scoring → document
// generation → submission dispatch, behind a per-campaign test mode.
// Exposes a REST API used by the Gateway to implement:
//   - campaign management (create / start / pause / stop / discover now)
//   - offer review (list, rescore)
//   - application review (confirm, withdraw, regenerate, retry,
//     mark-submitted, documents)
//
// Publishes EVENT_OFFERS_DISCOVERED, EVENT_OFFER_SCORED and
// EVENT_APPLICATION_UPDATED to Redis for Gateway SSE forward.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobmate/campaign-service/internal/actionlog"
	"jobmate/campaign-service/internal/ai"
	"jobmate/campaign-service/internal/application"
	"jobmate/campaign-service/internal/campaign"
	"jobmate/campaign-service/internal/config"
	"jobmate/campaign-service/internal/db"
	"jobmate/campaign-service/internal/discovery"
	"jobmate/campaign-service/internal/dispatch"
	"jobmate/campaign-service/internal/docgen"
	"jobmate/campaign-service/internal/joboffer"
	"jobmate/campaign-service/internal/match"
	"jobmate/campaign-service/internal/pipeline"
	"jobmate/campaign-service/internal/profile"
	"jobmate/campaign-service/internal/scheduler"
	"jobmate/campaign-service/internal/source"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("[campaign-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[campaign-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[campaign-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[campaign-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[campaign-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[campaign-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[campaign-service] Redis connected ✓")

	// ── OpenAI ───────────────────────────────────────────────────────────────
	aiClient, err := ai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel,
		cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.ProviderConcurrency)
	if err != nil {
		log.Fatalf("[campaign-service] OpenAI: %v", err)
	}

	// ── Services ─────────────────────────────────────────────────────────────
	alog := actionlog.NewPGLogger(pool)
	offers := joboffer.NewRepo(pool)
	profiles := profile.NewPGProvider(pool)
	campaigns := campaign.NewService(pool, rdb, alog)
	apps := application.NewService(pool, rdb, alog)

	// ── Discovery ────────────────────────────────────────────────────────────
	registry := source.NewRegistry(
		source.NewAPISource(cfg.AdzunaAppID, cfg.AdzunaAppKey, cfg.AdzunaCountry),
		source.NewRSSSource(cfg.RSSFeeds),
		source.NewManualSource(pool),
		source.NewMockSource(),
	)
	worker := discovery.NewWorker(offers, registry, rdb, alog)
	sched := scheduler.New(pool, worker, campaigns, cfg.DiscoveryIntervalMinutes, offers, apps)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[campaign-service] Scheduler: %v", err)
	}
	defer sched.Stop()

	// ── Pipeline workers ─────────────────────────────────────────────────────
	scorer := match.NewScorer(offers, apps, profiles, aiClient,
		match.NewLLMAnalyzer(aiClient), rdb, alog)

	docs := docgen.NewPGStore(pool)
	generator := docgen.NewGenerator(aiClient, profiles, docs,
		docgen.NewHTTPRenderer(cfg.RendererURL), alog)

	mailer := dispatch.NewSMTPMailer(pool, cfg.SMTPHost, cfg.SMTPPort,
		cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass)
	dispatcher := dispatch.NewDispatcher(apps, docs, nil, nil, mailer, mailer, alog)

	runner := pipeline.NewRunner(5*time.Second,
		pipeline.NewAnalysisStage(cfg.AnalysisWorkers, offers, scorer),
		pipeline.NewGenerationStage(cfg.GenerationWorkers, apps, generator),
		pipeline.NewDispatchStage(cfg.DispatchWorkers, apps, dispatcher),
	)
	runner.Start(ctx)
	defer runner.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	campaign.NewHandler(campaigns, sched, offers).RegisterRoutes(mux)
	application.NewHandler(apps).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("[campaign-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[campaign-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[campaign-service] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[campaign-service] Shutdown error: %v", err)
	}
	log.Println("[campaign-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "campaign-service",
		"version": version,
	})
}
