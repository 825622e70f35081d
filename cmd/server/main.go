// Package main is the entry point for the Overseer agent execution service.
// It wires the storage layer, the decision engine, the market data provider
// and the execution orchestrator, then serves the HTTP API until shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/analysis"
	"github.com/aristath/overseer/internal/clients/marketdata"
	"github.com/aristath/overseer/internal/config"
	"github.com/aristath/overseer/internal/database"
	"github.com/aristath/overseer/internal/engine"
	"github.com/aristath/overseer/internal/events"
	"github.com/aristath/overseer/internal/execution"
	executionhandlers "github.com/aristath/overseer/internal/execution/handlers"
	"github.com/aristath/overseer/internal/modules/agents"
	agentshandlers "github.com/aristath/overseer/internal/modules/agents/handlers"
	"github.com/aristath/overseer/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/overseer/internal/modules/ledger/handlers"
	"github.com/aristath/overseer/internal/modules/performance"
	performancehandlers "github.com/aristath/overseer/internal/modules/performance/handlers"
	"github.com/aristath/overseer/internal/modules/sessions"
	sessionshandlers "github.com/aristath/overseer/internal/modules/sessions/handlers"
	"github.com/aristath/overseer/internal/modules/trading"
	tradinghandlers "github.com/aristath/overseer/internal/modules/trading/handlers"
	"github.com/aristath/overseer/internal/reliability"
	"github.com/aristath/overseer/internal/scheduler"
	"github.com/aristath/overseer/internal/server"
	"github.com/aristath/overseer/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "overseer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty})
	logger.SetGlobalLogger(log)

	log.Info().
		Int("port", cfg.Port).
		Str("engine", cfg.Engine).
		Str("market_data", cfg.MarketDataProvider).
		Msg("Starting Overseer")

	// Two databases: agents.db carries cash, holdings, sessions and the
	// transaction trail and runs at maximum durability; history.db holds
	// daily performance snapshots.
	agentsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "agents.db"),
		Profile: database.ProfileLedger,
		Name:    "agents",
	})
	if err != nil {
		return fmt.Errorf("failed to open agents database: %w", err)
	}
	defer agentsDB.Close()

	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer historyDB.Close()

	databases := map[string]*database.DB{
		"agents":  agentsDB,
		"history": historyDB,
	}

	if err := applySchemas(agentsDB, historyDB); err != nil {
		return err
	}

	// Events
	eventBus := events.NewBus(log)
	eventManager := events.NewManager(eventBus, log)

	// Repositories and module services
	agentsRepo := agents.NewRepository(agentsDB.Conn(), log)
	agentsService := agents.NewService(agentsRepo, eventManager, cfg.StartingCash, log)

	feePolicy := ledger.RateFeePolicy{
		CommissionRate: cfg.CommissionRate,
		MinCommission:  cfg.MinCommission,
		SellTaxRate:    cfg.SellTaxRate,
	}
	positionsRepo := ledger.NewRepository(agentsDB.Conn(), log)
	ledgerService := ledger.NewService(positionsRepo, agentsRepo, feePolicy, log)

	tradesRepo := trading.NewRepository(agentsDB.Conn(), log)

	sessionsRepo := sessions.NewRepository(agentsDB.Conn(), log)
	lifecycle := sessions.NewLifecycle(sessionsRepo, agentsRepo, tradesRepo, eventManager, agentsDB.Conn(), log)

	// Market data
	market, err := buildMarketProvider(cfg, log)
	if err != nil {
		return err
	}
	log.Info().Str("provider", market.Name()).Msg("Market data provider ready")

	// Analysis providers
	registry := analysis.NewRegistry(log)
	registry.Register(analysis.NewTechnical(log))
	registry.Register(analysis.NewFundamental(log))
	registry.Register(analysis.NewSentiment(log))
	registry.Register(analysis.NewRisk(0, log))

	// Decision engine
	decisionEngine, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}
	log.Info().Str("engine", decisionEngine.Name()).Msg("Decision engine ready")

	// Execution
	guard := execution.NewGuard(log)
	orchestrator := execution.NewOrchestrator(
		execution.Config{
			Watchlist:       cfg.Watchlist,
			DefaultMaxSteps: cfg.DefaultMaxSteps,
		},
		guard,
		agentsRepo,
		lifecycle,
		ledgerService,
		tradesRepo,
		decisionEngine,
		market,
		registry,
		eventManager,
		agentsDB.Conn(),
		log,
	)

	// Sessions left RUNNING by a crash are resolved before anything can run
	recovered, err := orchestrator.RecoverOrphans()
	if err != nil {
		return fmt.Errorf("failed to recover orphaned sessions: %w", err)
	}
	if len(recovered) > 0 {
		log.Warn().Int("count", len(recovered)).Msg("Recovered orphaned sessions from previous run")
	}

	// Performance
	performanceRepo := performance.NewRepository(historyDB.Conn(), log)
	performanceService := performance.NewService(
		performanceRepo,
		agentsRepo,
		ledgerService,
		tradesRepo,
		market,
		eventManager,
		cfg.StartingCash,
		log,
	)

	// Backups
	backupService := reliability.NewBackupService(databases, cfg.BackupDir, eventManager, log)

	// Background jobs
	sessionTimeout := time.Duration(cfg.SessionTimeoutMinutes) * time.Minute
	sched := scheduler.New(log)
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{"* * * * *", execution.NewReaperJob(orchestrator, sessionTimeout, log)},
		{"5 0 * * *", performance.NewSnapshotJob(performanceService, log)},
		{"30 2 * * *", reliability.NewBackupJob(backupService)},
		{"@hourly", reliability.NewWALCheckpointJob(databases, log)},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return fmt.Errorf("failed to schedule jobs: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Databases: databases,
		EventBus:  eventBus,
		Scheduler: sched,
		Execution: orchestrator,
		Registrars: []server.RouteRegistrar{
			agentshandlers.NewHandler(agentsService, log),
			ledgerhandlers.NewHandler(ledgerService, agentsService, log),
			tradinghandlers.NewHandler(tradesRepo, log),
			sessionshandlers.NewHandler(lifecycle, orchestrator, sessionTimeout, log),
			executionhandlers.NewHandler(orchestrator, log),
			performancehandlers.NewHandler(performanceService, log),
		},
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	// Wait for shutdown signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Flush the WAL so a restart starts from a compact database
	for name, db := range databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			log.Warn().Str("database", name).Err(err).Msg("Final WAL checkpoint failed")
		}
	}

	log.Info().Msg("Overseer stopped")
	return nil
}

// applySchemas applies each module's schema to the database it lives in
func applySchemas(agentsDB, historyDB *database.DB) error {
	agentsSchemas := []string{
		agents.AgentsSchema,
		ledger.PositionsSchema,
		trading.TransactionsSchema,
		sessions.SessionsSchema,
	}
	for _, schema := range agentsSchemas {
		if err := agentsDB.ApplySchema(schema); err != nil {
			return fmt.Errorf("failed to apply agents schema: %w", err)
		}
	}

	if err := historyDB.ApplySchema(performance.SnapshotsSchema); err != nil {
		return fmt.Errorf("failed to apply history schema: %w", err)
	}

	return nil
}

// buildMarketProvider selects the market data provider from configuration
func buildMarketProvider(cfg *config.Config, log zerolog.Logger) (marketdata.Provider, error) {
	switch cfg.MarketDataProvider {
	case config.MarketDataHTTP:
		return marketdata.NewHTTPClient(cfg.MarketDataBaseURL, log), nil
	default:
		return marketdata.NewSimulated(marketdata.SimulatedConfig{
			Timezone:  cfg.MarketTimezone,
			OpenHour:  cfg.MarketOpenHour,
			CloseHour: cfg.MarketCloseHour,
		}, log)
	}
}

// buildEngine selects the decision engine from configuration
func buildEngine(cfg *config.Config, log zerolog.Logger) (engine.Engine, error) {
	switch cfg.Engine {
	case config.EngineOpenAI:
		return engine.NewOpenAI(engine.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: time.Duration(cfg.OpenAITimeoutSeconds) * time.Second,
		}, log)
	default:
		return engine.NewRules(log), nil
	}
}
