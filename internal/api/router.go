package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/convictionhq/conviction/internal/api/handlers"
	mw "github.com/convictionhq/conviction/internal/api/middleware"
	"github.com/convictionhq/conviction/internal/buildconfig"
	"github.com/convictionhq/conviction/internal/config"
	"github.com/convictionhq/conviction/internal/corpus"
	"github.com/convictionhq/conviction/internal/document"
	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/embedding"
	"github.com/convictionhq/conviction/internal/events"
	"github.com/convictionhq/conviction/internal/findata"
	"github.com/convictionhq/conviction/internal/jobs"
	"github.com/convictionhq/conviction/internal/llm"
	"github.com/convictionhq/conviction/internal/research"
	"github.com/convictionhq/conviction/internal/scoring"
	"github.com/convictionhq/conviction/internal/search"
	"github.com/convictionhq/conviction/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and the background worker pool for lifecycle
// management.
type App struct {
	Router *chi.Mux
	Pool   *jobs.Pool
	Bus    *events.Bus

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	// Stores
	engagementStore := store.NewEngagementStore(db)
	hypothesisStore := store.NewHypothesisStore(db)
	edgeStore := store.NewEdgeStore(db)
	contentStore := store.NewContentStore(db)
	evidenceStore := store.NewEvidenceStore(db)
	contradictionStore := store.NewContradictionStore(db)
	jobStore := store.NewJobStore(db)

	// Credibility scorer with optional reputation overrides
	overrides, err := scoring.LoadReputation(config.ReputationFile())
	if err != nil {
		logger.Warn("reputation overrides not loaded", zap.Error(err))
	}
	scorer := scoring.NewScorer(overrides)

	// External clients via provider factories
	llmClient, err := llm.NewClient(config.LLMProvider(), config.LLMAPIKey())
	if err != nil {
		return nil, err
	}
	logger.Info("llm client initialized", zap.String("provider", config.LLMProvider()))

	embeddingClient, err := embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingAPIKey())
	if err != nil {
		return nil, err
	}
	logger.Info("embedding client initialized", zap.String("provider", config.EmbeddingProvider()))

	searchClient, err := search.NewClient(config.SearchProvider(), config.SearchAPIKey())
	if err != nil {
		return nil, err
	}
	logger.Info("search client initialized", zap.String("provider", config.SearchProvider()))

	finDataClient, err := findata.NewClient(config.FinDataProvider(), config.FinDataAPIKey())
	if err != nil {
		return nil, err
	}
	logger.Info("findata client initialized", zap.String("provider", config.FinDataProvider()))

	// Research workers and conductor
	bus := events.NewBus(logger)
	updater := research.NewUpdater(hypothesisStore, research.DefaultUpdatePolicy())
	gatherer := research.NewGatherer(searchClient, finDataClient, llmClient, embeddingClient, scorer, updater, logger)
	workers := []research.Worker{
		research.NewBuilder(llmClient, embeddingClient, logger),
		research.NewComparables(searchClient, finDataClient, llmClient, logger),
		gatherer,
		research.NewHunter(gatherer, llmClient, logger),
		research.NewSynthesizer(llmClient, logger),
	}
	conductor := research.NewConductor(workers, bus, jobStore,
		hypothesisStore, edgeStore, contentStore, evidenceStore, contradictionStore, logger)
	conductor.ThrottleWindow = config.EventThrottleWindow()

	// Job queue and worker pool
	queue := jobs.NewQueue(jobStore, engagementStore, config.JobRateLimit(), config.JobRateBurst(), logger)
	pool := jobs.NewPool(jobStore, engagementStore, conductor, bus,
		config.WorkerCount(), config.JobLeaseTTL(), config.MaxJobAttempts(), logger)

	// Corpus ingestion
	ingestor := corpus.NewIngestor(document.NewParser(), embeddingClient, scorer, contentStore, evidenceStore, logger)

	// Handlers
	engagementHandler := handlers.NewEngagementHandler(engagementStore)
	jobHandler := handlers.NewJobHandler(queue)
	eventsHandler := handlers.NewEventsHandler(queue, bus)
	hypothesisHandler := handlers.NewHypothesisHandler(hypothesisStore, edgeStore)
	evidenceHandler := handlers.NewEvidenceHandler(evidenceStore)
	contradictionHandler := handlers.NewContradictionHandler(contradictionStore)
	documentHandler := handlers.NewDocumentHandler(ingestor)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Pool:      pool,
		Bus:       bus,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/healthz", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/engagements", func(r chi.Router) {
			r.Post("/", engagementHandler.Create)
			r.Get("/", engagementHandler.List)
			r.Route("/{engagementID}", func(r chi.Router) {
				r.Get("/", engagementHandler.GetByID)
				r.Post("/research", jobHandler.SubmitResearch)
				r.Post("/stress-tests", jobHandler.SubmitStressTest)
				r.Get("/jobs", jobHandler.ListByEngagement)
				r.Get("/hypotheses", hypothesisHandler.ListByEngagement)
				r.Get("/evidence", evidenceHandler.ListByEngagement)
				r.Get("/contradictions", contradictionHandler.ListByEngagement)
				r.Post("/documents", documentHandler.Upload)
				r.Get("/corpus/search", documentHandler.SearchCorpus)
			})
		})

		r.Route("/jobs/{id}", func(r chi.Router) {
			r.Get("/", jobHandler.GetByID)
			r.Get("/events", eventsHandler.Stream)
		})

		r.Route("/hypotheses/{id}", func(r chi.Router) {
			r.Get("/", hypothesisHandler.GetByID)
			r.Patch("/", hypothesisHandler.Update)
		})

		r.Route("/evidence/{id}", func(r chi.Router) {
			r.Get("/", evidenceHandler.GetByID)
			r.Patch("/", evidenceHandler.Review)
		})

		r.Route("/contradictions/{id}", func(r chi.Router) {
			r.Get("/", contradictionHandler.GetByID)
			r.Patch("/", contradictionHandler.Resolve)
		})
	})

	return app, nil
}

// Start launches the background worker pool.
func (app *App) Start() {
	app.Pool.Start()
}

// Stop drains the worker pool.
func (app *App) Stop() {
	app.Pool.Stop()
}

// healthz reports build metadata alongside the db ping so deploys are
// identifiable from the probe alone.
func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": buildconfig.Version(),
			"commit":  buildconfig.Commit(),
		})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy their ports at compile time.
var (
	_ domain.EngagementStore    = (*store.EngagementStore)(nil)
	_ domain.HypothesisStore    = (*store.HypothesisStore)(nil)
	_ domain.EdgeStore          = (*store.EdgeStore)(nil)
	_ domain.ContentStore       = (*store.ContentStore)(nil)
	_ domain.EvidenceStore      = (*store.EvidenceStore)(nil)
	_ domain.ContradictionStore = (*store.ContradictionStore)(nil)
	_ domain.JobStore           = (*store.JobStore)(nil)
	_ domain.EmbeddingClient    = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient    = (*embedding.MockClient)(nil)
	_ domain.LLMClient          = (*llm.OpenAIClient)(nil)
	_ domain.LLMClient          = (*llm.AnthropicClient)(nil)
	_ domain.LLMClient          = (*llm.GeminiClient)(nil)
	_ domain.LLMClient          = (*llm.CerebrasClient)(nil)
	_ domain.LLMClient          = (*llm.MockClient)(nil)
	_ domain.SearchClient       = (*search.TavilyClient)(nil)
	_ domain.SearchClient       = (*search.MockClient)(nil)
	_ domain.FinDataClient      = (*findata.AlphaVantageClient)(nil)
	_ domain.FinDataClient      = (*findata.MockClient)(nil)
	_ domain.DocumentParser     = (*document.Parser)(nil)
	_ jobs.Runner               = (*research.Conductor)(nil)
)
