package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Harshitk-cp/beliefmarket/internal/api/handlers"
	mw "github.com/Harshitk-cp/beliefmarket/internal/api/middleware"
	"github.com/Harshitk-cp/beliefmarket/internal/buildconfig"
	"github.com/Harshitk-cp/beliefmarket/internal/config"
	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/metrics"
	"github.com/Harshitk-cp/beliefmarket/internal/service"
	"github.com/Harshitk-cp/beliefmarket/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the application services behind the HTTP API.
type Services struct {
	Agents      *service.AgentService
	Beliefs     *service.BeliefService
	Submissions *service.SubmissionService
	Epochs      *service.EpochService
	Aggregation *service.AggregationService
}

// App holds the router and the services it serves.
type App struct {
	Router   *chi.Mux
	Services Services
	Metrics  *metrics.Metrics
}

// EpochConfigFromEnv builds the epoch pipeline configuration from the
// environment.
func EpochConfigFromEnv() service.EpochConfig {
	cfg := service.DefaultEpochConfig()
	cfg.Decomposition.Ridge = config.RidgeLambda()
	cfg.Decomposition.QualityThreshold = config.QualityThreshold()
	cfg.Decomposition.Parallelism = config.LOOParallelism()
	cfg.FallbackAggregation = config.FallbackAggregation()
	cfg.Parallelism = config.EpochParallelism()
	return cfg
}

// NewServices wires the Postgres stores into the application services.
func NewServices(db *pgxpool.Pool, cfg service.EpochConfig, m *metrics.Metrics, logger *zap.Logger) Services {
	// Stores
	agentStore := store.NewAgentStore(db)
	beliefStore := store.NewBeliefStore(db)
	submissionStore := store.NewSubmissionStore(db)
	weightStore := store.NewWeightStore(db)
	historyStore := store.NewHistoryStore(db)
	epochStore := store.NewEpochStore(db)

	return Services{
		Agents:      service.NewAgentService(agentStore, agentStore),
		Beliefs:     service.NewBeliefService(beliefStore, agentStore, historyStore, logger),
		Submissions: service.NewSubmissionService(submissionStore, beliefStore, agentStore, weightStore, logger),
		Epochs: service.NewEpochService(service.EpochStores{
			Beliefs:     beliefStore,
			Submissions: submissionStore,
			Weights:     weightStore,
			Locks:       weightStore,
			Stakes:      agentStore,
			History:     historyStore,
			Committer:   epochStore,
		}, cfg, m, logger),
		Aggregation: service.NewAggregationService(beliefStore, submissionStore, weightStore, cfg, logger),
	}
}

func NewApp(db *pgxpool.Pool, m *metrics.Metrics, logger *zap.Logger) *App {
	svcs := NewServices(db, EpochConfigFromEnv(), m, logger)
	return &App{
		Router:   NewRouter(svcs, db, m, logger),
		Services: svcs,
		Metrics:  m,
	}
}

// NewRouter mounts the HTTP API over svcs.
func NewRouter(svcs Services, db Pinger, m *metrics.Metrics, logger *zap.Logger) *chi.Mux {
	// Handlers
	agentHandler := handlers.NewAgentHandler(svcs.Agents)
	beliefHandler := handlers.NewBeliefHandler(svcs.Beliefs)
	submissionHandler := handlers.NewSubmissionHandler(svcs.Submissions)
	epochHandler := handlers.NewEpochHandler(svcs.Epochs, svcs.Aggregation)

	r := chi.NewRouter()

	metricsCollector := mw.NewMetricsCollector(m)

	// Global middleware (order matters)
	r.Use(mw.RequestID)                                                 // Generate/extract request ID first
	r.Use(middleware.RealIP)                                            // Extract real IP
	r.Use(metricsCollector.Middleware)                                  // Collect metrics
	r.Use(mw.Logging(logger))                                           // Log all requests
	r.Use(middleware.Recoverer)                                         // Recover from panics
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst())) // Rate limiting

	r.Get("/health", healthHandler(db))
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Agents
		r.Route("/agents", func(r chi.Router) {
			r.Post("/", agentHandler.Create)
			r.Get("/{id}", agentHandler.GetByID)
		})

		// Beliefs
		r.Route("/beliefs", func(r chi.Router) {
			r.Post("/", beliefHandler.Create)
			r.Post("/archive", beliefHandler.ArchiveExpired)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", beliefHandler.GetByID)
				r.Get("/history", beliefHandler.History)
				r.Post("/submissions", submissionHandler.Submit)
				r.Route("/epochs/{epoch}", func(r chi.Router) {
					r.Post("/process", epochHandler.Process)
					r.Post("/decompose", epochHandler.Decompose)
					r.Post("/leave-one-out", epochHandler.LeaveOneOut)
				})
			})
		})

		// Batch epoch processing
		r.Post("/epochs/{epoch}/process", epochHandler.ProcessAll)
	})

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"version": buildconfig.VersionInfo(),
		})
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.AgentStore      = (*store.AgentStore)(nil)
	_ domain.StakeStore      = (*store.AgentStore)(nil)
	_ domain.BeliefStore     = (*store.BeliefStore)(nil)
	_ domain.SubmissionStore = (*store.SubmissionStore)(nil)
	_ domain.WeightProvider  = (*store.WeightStore)(nil)
	_ domain.LockStore       = (*store.WeightStore)(nil)
	_ domain.LockReader      = (*store.WeightStore)(nil)
	_ domain.HistorySink     = (*store.HistoryStore)(nil)
	_ domain.EpochCommitter  = (*store.EpochStore)(nil)
	_ Pinger                 = (*pgxpool.Pool)(nil)
)
