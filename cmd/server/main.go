package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quantfold/helmsman/internal/clients/alpaca"
	"github.com/quantfold/helmsman/internal/clients/sentiment"
	"github.com/quantfold/helmsman/internal/clients/yahoo"
	"github.com/quantfold/helmsman/internal/config"
	"github.com/quantfold/helmsman/internal/database"
	"github.com/quantfold/helmsman/internal/domain"
	"github.com/quantfold/helmsman/internal/modules/market_hours"
	"github.com/quantfold/helmsman/internal/modules/rebalancing"
	"github.com/quantfold/helmsman/internal/modules/risk"
	"github.com/quantfold/helmsman/internal/modules/scanning"
	"github.com/quantfold/helmsman/internal/modules/trading"
	"github.com/quantfold/helmsman/internal/pricecache"
	"github.com/quantfold/helmsman/internal/scheduler"
	"github.com/quantfold/helmsman/internal/server"
	"github.com/quantfold/helmsman/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info", Pretty: true})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Helmsman")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Databases: the trade audit trail gets the safe profile, the price
	// cache gets the fast one. Losing the cache costs refetches, nothing
	// else.
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	tradeRepo, err := trading.NewTradeRepository(ledgerDB.Conn())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize trade repository")
	}
	priceCache, err := pricecache.NewRepository(cacheDB.Conn())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price cache")
	}

	// Clients
	broker := alpaca.NewClient(alpaca.Config{
		BaseURL:   cfg.AlpacaBaseURL,
		APIKey:    cfg.AlpacaAPIKey,
		APISecret: cfg.AlpacaAPISecret,
	}, log)

	history := yahoo.NewClient(log, yahoo.WithCache(priceCache, pricecache.TTLDailyCloses))

	// Core services
	limits := risk.DefaultLimits()
	params := config.DefaultStrategyParams()
	marketHours := market_hours.NewService()

	monitor := risk.NewCorrelationMonitor(history, limits, 0, log)
	filter := risk.NewFilterPipeline(monitor, limits, log)
	sizer := risk.NewPositionSizer(limits, log)
	rebalancer := rebalancing.NewService(marketHours, broker, limits, log)
	exits := scanning.NewExitEvaluator(history, params, log)

	producers := []domain.SignalProducer{
		scanning.NewMomentumScanner(history, params, nil, log),
	}
	if cfg.SentimentServiceURL != "" {
		producers = append(producers, sentiment.NewClient(cfg.SentimentServiceURL, log))
	}

	orchestrator := trading.NewOrchestrator(
		broker,
		producers,
		filter,
		sizer,
		rebalancer,
		exits,
		tradeRepo,
		limits,
		cfg.AllowPremarket,
		log,
	)

	// Background jobs
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.CronSchedule, scheduler.NewCycleJob(orchestrator, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register trading cycle job")
	}
	if err := sched.AddJob("0 2 * * *", scheduler.NewCachePruneJob(priceCache, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache prune job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP API
	handlers := server.NewHandlers(orchestrator, broker, tradeRepo, monitor, limits, log)
	srv := server.New(server.Config{
		Log:      log,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
		Handlers: handlers,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().
		Int("port", cfg.Port).
		Str("schedule", cfg.CronSchedule).
		Bool("premarket", cfg.AllowPremarket).
		Msg("Helmsman started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Helmsman stopped")
}
