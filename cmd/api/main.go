package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantumpay-core/config"
	httpHandler "quantumpay-core/internal/adapter/http/handler"
	pgStorage "quantumpay-core/internal/adapter/storage/postgres"
	redisStorage "quantumpay-core/internal/adapter/storage/redis"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/internal/pricing"
	"quantumpay-core/internal/provider"
	"quantumpay-core/internal/provider/adapters"
	"quantumpay-core/internal/risk"
	"quantumpay-core/internal/service"
	"quantumpay-core/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting QuantumPay Core")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	attemptRepo := pgStorage.NewAttemptRepo(pool)
	historyRepo := pgStorage.NewSenderHistoryRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	quoteCache := redisStorage.NewQuoteCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize provider rails
	healthRegistry := provider.NewHealthRegistry()
	providerRouter := provider.NewRouter(healthRegistry, cfg.Providers.CoolDown, log)
	railClient := &http.Client{Timeout: 15 * time.Second}
	providerRouter.Register(adapters.NewFlutterwave(cfg.Providers.Flutterwave.BaseURL, cfg.Providers.Flutterwave.SecretKey, railClient))
	providerRouter.Register(adapters.NewPaystack(cfg.Providers.Paystack.BaseURL, cfg.Providers.Paystack.SecretKey, railClient))

	// Probe rails at boot and keep probing in the background.
	providerRouter.RunHealthChecks(ctx)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				providerRouter.RunHealthChecks(ctx)
			}
		}
	}()

	// Initialize risk engine
	ruleCfg := risk.DefaultRuleConfig()
	ruleCfg.MaxAmount = cfg.Risk.MaxAmount
	ruleCfg.LargeAmount = cfg.Risk.LargeAmount
	ruleCfg.VelocityThreshold = cfg.Risk.VelocityThreshold

	weights := risk.DefaultEngineWeights()
	weights.Supervised = cfg.Risk.SupervisedWeight
	weights.Unsupervised = cfg.Risk.UnsupervisedWeight
	weights.Rule = cfg.Risk.RuleWeight
	weights.Threshold = cfg.Risk.Threshold

	riskEngine := risk.NewEngine(historyRepo, risk.DefaultScorer(ruleCfg, weights), log)
	trainer := risk.NewTrainer(riskEngine, historyRepo, ruleCfg, weights, cfg.Risk.TrainerInterval, cfg.Risk.TrainerWindow, log)
	go trainer.Run(ctx)

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	var notifier ports.Notifier
	if cfg.Notifications.BaseURL != "" {
		notifier = service.NewPushNotifier(cfg.Notifications.BaseURL, cfg.Notifications.APIKey, &http.Client{Timeout: 10 * time.Second}, log)
	}
	var dispatcher ports.WebhookDispatcher
	if cfg.WebhookSink.URL != "" {
		dispatcher = service.NewHTTPWebhookDispatcher(cfg.WebhookSink.URL, cfg.WebhookSink.Secret, sigSvc, &http.Client{Timeout: 10 * time.Second}, log)
	}

	// Initialize business services
	ledgerSvc := service.NewLedgerService(walletRepo, transactor, log)
	settlementSvc := service.NewSettlementService(txRepo, walletRepo, ledgerSvc, riskEngine, transactor, notifier, dispatcher, log)
	billSvc := service.NewBillPaymentService(walletRepo, txRepo, attemptRepo, transactor, providerRouter, notifier, log)
	depositSvc := service.NewDepositService(ledgerSvc, attemptRepo, transactor, providerRouter, log)
	fxSvc := service.NewFXService(walletRepo, txRepo, ledgerSvc, quoteCache, pricing.NewStaticFeed(pricing.DefaultRates()), transactor, cfg.FX.SpreadBps, cfg.FX.QuoteTTL, log)
	reconSvc := service.NewReconciliationService(walletRepo, txRepo, attemptRepo, transactor, idempotencyCache, notifier, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:     ledgerSvc,
		SettlementSvc: settlementSvc,
		BillSvc:       billSvc,
		DepositSvc:    depositSvc,
		FXSvc:         fxSvc,
		ReconSvc:      reconSvc,
		TokenSvc:      tokenSvc,
		TxRepo:        txRepo,
		SigVerifier:   sigSvc,
		WebhookSecrets: map[string]string{
			"flutterwave": cfg.Providers.Flutterwave.WebhookSecret,
			"paystack":    cfg.Providers.Paystack.WebhookSecret,
		},
		ProviderHealth: providerRouter,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
