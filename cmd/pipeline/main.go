// Command pipeline is the news ingestion, curation & synthesis pipeline's
// single binary: `run-once` executes exactly one cycle and exits;
// `serve` exposes the HTTP trigger/health endpoints plus a cron fallback
// around the same cycle orchestrator.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"newsloom/internal/config"
	"newsloom/internal/domain/catalogue"
	"newsloom/internal/handler/http/requestid"
	"newsloom/internal/handler/http/trigger"
	"newsloom/internal/infra/adapter/feed"
	"newsloom/internal/infra/adapter/fulltext"
	imageadapter "newsloom/internal/infra/adapter/image"
	"newsloom/internal/infra/adapter/llm"
	"newsloom/internal/infra/adapter/persistence/postgres"
	"newsloom/internal/infra/db"
	"newsloom/internal/infra/worker"
	"newsloom/internal/observability/logging"
	"newsloom/internal/observability/tracing"
	pkgconfig "newsloom/internal/pkg/config"
	"newsloom/internal/usecase/cluster"
	"newsloom/internal/usecase/dedup"
	"newsloom/internal/usecase/display"
	"newsloom/internal/usecase/enrich"
	"newsloom/internal/usecase/fetch"
	"newsloom/internal/usecase/image"
	"newsloom/internal/usecase/lifecycle"
	"newsloom/internal/usecase/orchestrator"
	"newsloom/internal/usecase/publish"
	"newsloom/internal/usecase/score"
	"newsloom/internal/usecase/synthesize"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: pipeline run-once|serve")
		os.Exit(1)
	}

	logger := initLogger()
	database := initDatabase(logger)
	defer database.Close()

	metrics := worker.NewOrchestratorMetrics()
	serveCfg, err := worker.LoadConfigFromEnv(logger, metrics)
	if err != nil {
		logger.Error("failed to load cycle/serve configuration", slog.Any("error", err))
		os.Exit(1)
	}

	svc := buildOrchestrator(logger, database, serveCfg.CycleDeadline)

	switch os.Args[1] {
	case "run-once":
		result := svc.Run(context.Background())
		logger.Info("cycle finished",
			slog.String("outcome", string(result.Outcome)),
			slog.String("message", result.Message))
		if result.Outcome == orchestrator.OutcomeFailed {
			os.Exit(1)
		}
	case "serve":
		runServe(logger, svc, serveCfg, metrics)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q: usage: pipeline run-once|serve\n", os.Args[1])
		os.Exit(1)
	}
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate schema", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// buildOrchestrator wires every use case, adapter, and repository this
// module has built into one orchestrator.Service, with flat, explicit
// constructor calls rather than a DI container.
func buildOrchestrator(logger *slog.Logger, database *sql.DB, deadline time.Duration) *orchestrator.Service {
	vendorMetrics := pkgconfig.NewConfigMetrics("vendor")
	feedMetrics := pkgconfig.NewConfigMetrics("feed")
	scoreMetrics := pkgconfig.NewConfigMetrics("score")
	clusterMetrics := pkgconfig.NewConfigMetrics("cluster")
	publishMetrics := pkgconfig.NewConfigMetrics("publish")
	lockMetrics := pkgconfig.NewConfigMetrics("lock")
	fulltextMetrics := pkgconfig.NewConfigMetrics("fulltext")

	vendorCfg := config.LoadVendorConfig(logger, vendorMetrics)
	feedCfg := config.LoadFeedConfig(logger, feedMetrics)
	scoreCfg := config.LoadScoreConfig(logger, scoreMetrics)
	clusterCfg := config.LoadClusterConfig(logger, clusterMetrics)
	publishCfg := config.LoadPublishConfig(logger, publishMetrics)
	lockCfg := config.LoadLockConfig(logger, lockMetrics)
	fulltextCfg := config.LoadFulltextConfig(logger, fulltextMetrics)

	cat, err := catalogue.Load()
	if err != nil {
		logger.Error("failed to load source catalogue", slog.Any("error", err))
		os.Exit(1)
	}

	sourceRepo := postgres.NewSourceArticleRepo(database)
	clusterRepo := postgres.NewClusterRepo(database)
	publishedRepo := postgres.NewPublishedArticleRepo(database)
	lockRepo := postgres.NewRunLockRepo(database)
	cycleRepo := postgres.NewCycleRepo(database)

	rssFetcher := feed.NewRSSFetcher(feedCfg.FetchTimeout)
	fetchSvc := fetch.NewService(rssFetcher, feedCfg.Workers)
	dedupGate := dedup.NewGate(sourceRepo)

	contract := score.NewAdmissionContract(scoreCfg)
	scorerClient := llm.NewAnthropicScorer(vendorCfg.AnthropicAPIKey, contract)
	scoreSvc := score.NewService(scorerClient, contract, sourceRepo, scoreCfg.BatchSize)

	embeddingKey := vendorCfg.EmbeddingAPIKey
	if embeddingKey == "" {
		embeddingKey = vendorCfg.OpenAIAPIKey
	}
	embedder := llm.NewOpenAIEmbedder(embeddingKey)
	clusterEngine := cluster.NewEngine(clusterRepo, embedder, clusterCfg)

	tier1 := fulltext.NewReadabilityFetcher(fulltextCfg)
	tier2 := fulltext.NewReaderAPIFetcher(vendorCfg.OutboundProxyURL, vendorCfg.OutboundProxyKey, fulltextCfg.Timeout)
	tieredFetcher := fulltext.NewTieredFetcher(tier1, tier2)

	prober := imageadapter.NewHTTPProber()
	imageSelector := image.NewSelector(prober)

	synthesizer := synthesize.NewService(llm.NewAnthropicSynthesizer(vendorCfg.AnthropicAPIKey))
	enricher := enrich.NewService(llm.NewAnthropicEnricher(vendorCfg.AnthropicAPIKey))
	displaySvc := display.NewService(
		llm.NewAnthropicDisplayScorer(vendorCfg.AnthropicAPIKey),
		llm.NewAnthropicTagger(vendorCfg.AnthropicAPIKey),
	)
	publisher := publish.NewService(publishedRepo, publishCfg)

	lockManager := lifecycle.NewLockManager(lockRepo, lockCfg)
	sweeper := lifecycle.NewSweeper(clusterRepo, clusterCfg)

	return orchestrator.NewService(
		lockManager,
		sweeper,
		cat,
		fetchSvc,
		dedupGate,
		sourceRepo,
		clusterRepo,
		publishedRepo,
		cycleRepo,
		scoreSvc,
		contract,
		clusterEngine,
		tieredFetcher,
		fulltextCfg.Workers,
		imageSelector,
		synthesizer,
		enricher,
		displaySvc,
		publisher,
		deadline,
	)
}

// runnerAdapter lets orchestrator.Service satisfy trigger.Runner without
// the handler package importing the orchestrator package, keeping the
// dependency direction handler -> usecase one-way.
type runnerAdapter struct {
	svc *orchestrator.Service
}

func (a runnerAdapter) Run(ctx context.Context) trigger.Result {
	r := a.svc.Run(ctx)
	return trigger.Result{
		Outcome: string(r.Outcome),
		Message: r.Message,
		Stats: trigger.Stats{
			Fetched:     r.Stats.Fetched,
			New:         r.Stats.New,
			Scored:      r.Stats.Scored,
			Rejected:    r.Stats.Rejected,
			Clustered:   r.Stats.Clustered,
			Synthesized: r.Stats.Synthesized,
			Published:   r.Stats.Published,
			Revised:     r.Stats.Revised,
			Errors:      r.Stats.Errors,
		},
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// runServe exposes the trigger/health endpoints and, as a fallback for
// deployments with no external scheduler, a cron tick that invokes the
// same cycle, with graceful HTTP shutdown on SIGINT/SIGTERM.
func runServe(logger *slog.Logger, svc *orchestrator.Service, cfg *worker.OrchestratorConfig, metrics *worker.OrchestratorMetrics) {
	healthServer := worker.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	mux := http.NewServeMux()
	triggerHandler := trigger.NewHandler(runnerAdapter{svc: svc})
	triggerHandler.Routes(mux)

	httpSrv := &http.Server{
		Addr:              ":8080",
		Handler:           requestid.Middleware(tracing.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("trigger server starting", slog.String("addr", ":8080"))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("trigger server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	startCronFallback(logger, svc, cfg, metrics)
	healthServer.SetReady(true)
	logger.Info("pipeline serving", slog.String("cron_schedule", cfg.CronSchedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("trigger server shutdown failed", slog.Any("error", err))
	}
	logger.Info("pipeline stopped")
}

// startCronFallback schedules a periodic cycle run for deployments with no
// external trigger. Each tick is independent of the HTTP trigger: the run
// lock (C12) is what keeps the two from racing if both fire close together.
func startCronFallback(logger *slog.Logger, svc *orchestrator.Service, cfg *worker.OrchestratorConfig, metrics *worker.OrchestratorMetrics) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runScheduledCycle(logger, svc, metrics)
	})
	if err != nil {
		logger.Error("failed to schedule cron fallback", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()
}

func runScheduledCycle(logger *slog.Logger, svc *orchestrator.Service, metrics *worker.OrchestratorMetrics) {
	started := time.Now()
	result := svc.Run(context.Background())

	metrics.RecordCycleRun(string(result.Outcome))
	metrics.RecordCycleDuration(time.Since(started).Seconds())
	metrics.RecordArticlesFetched(result.Stats.Fetched)
	if result.Outcome == orchestrator.OutcomeSuccess {
		metrics.RecordLastSuccess()
	}

	logger.Info("scheduled cycle finished",
		slog.String("outcome", string(result.Outcome)),
		slog.String("message", result.Message),
		slog.Int("fetched", result.Stats.Fetched),
		slog.Int("published", result.Stats.Published))
}
