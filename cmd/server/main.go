package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emblem/internal/audit"
	badgesvc "emblem/internal/badge/service"
	badgestore "emblem/internal/badge/store"
	"emblem/internal/eligibility"
	"emblem/internal/eligibility/attributes"
	eligmetrics "emblem/internal/eligibility/metrics"
	"emblem/internal/identity/providers"
	"emblem/internal/identity/providers/idos"
	"emblem/internal/identity/providers/polygonid"
	"emblem/internal/identity/providers/stub"
	"emblem/internal/ledger"
	mintmetrics "emblem/internal/minting/metrics"
	mintsvc "emblem/internal/minting/service"
	mintstore "emblem/internal/minting/store"
	"emblem/internal/minting/tracer"
	"emblem/internal/notify"
	notifymetrics "emblem/internal/notify/metrics"
	"emblem/internal/notify/webhook"
	"emblem/internal/notify/ws"
	"emblem/internal/platform/config"
	"emblem/internal/platform/database"
	"emblem/internal/platform/health"
	"emblem/internal/platform/httpserver"
	"emblem/internal/platform/kafka"
	"emblem/internal/platform/kafka/producer"
	"emblem/internal/platform/logger"
	platformmetrics "emblem/internal/platform/metrics"
	"emblem/internal/platform/middleware"
	platformredis "emblem/internal/platform/redis"
	"emblem/internal/seeder"
	"emblem/internal/token"
	verhandler "emblem/internal/verification/handler"
	vermetrics "emblem/internal/verification/metrics"
	versvc "emblem/internal/verification/service"
	verstore "emblem/internal/verification/store"
	"emblem/internal/verification/workers/cleanup"
	"emblem/internal/wallet"
)

// main wires storage, identity providers, the ledger adapter, the mint
// pipeline and the event fan-out together, then hosts the inbound surfaces:
// provider callbacks, the WebSocket bus, health and metrics. The service
// APIs themselves (verification, eligibility, minting) are consumed by
// embedding code; they have no REST controllers here.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	storage := "memory"
	if cfg.Database.URL != "" {
		storage = "postgres"
	}
	log.Info("initializing emblem",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"storage", storage,
	)

	ctx := context.Background()

	// Relational storage. An empty DATABASE_URL keeps every store in memory,
	// which is how tests and local demos run.
	pool, err := database.New(cfg.Database)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}

	var (
		badgeStore   badgesvc.Store
		sessionStore versvc.Store
		mintStore    mintsvc.Store
		auditStore   audit.Store
		walletStore  versvc.WalletStore
	)
	if pool != nil {
		defer pool.Close()
		if err := database.Migrate(ctx, pool.DB()); err != nil {
			log.Error("database migration failed", "error", err)
			os.Exit(1)
		}
		badgeStore = badgestore.NewPostgres(pool.DB())
		sessionStore = verstore.NewPostgres(pool.DB())
		mintStore = mintstore.NewPostgres(pool.DB())
		auditStore = audit.NewPostgres(pool.DB())
		walletStore = wallet.NewPostgresStore(pool.DB())
	} else {
		badgeStore = badgestore.New()
		sessionStore = verstore.New()
		mintStore = mintstore.New()
		auditStore = audit.NewInMemoryStore()
		walletStore = wallet.NewInMemoryStore()

		if cfg.Server.Environment == "development" {
			if err := seeder.New(badgeStore, sessionStore, walletStore, log).SeedAll(ctx); err != nil {
				log.Error("demo data seeding failed", "error", err)
				os.Exit(1)
			}
		}
	}

	rds, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if rds != nil {
		defer rds.Close()
	}

	// The audit outbox drains into Kafka when brokers are configured and
	// into a no-op producer otherwise; either way records are marked
	// processed so the outbox does not grow without bound.
	var events audit.MessageProducer = producer.NewNoopProducer(log)
	if cfg.Kafka.Brokers != "" {
		kafkaProducer, err := producer.New(producer.FromPlatformConfig(cfg.Kafka), log)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		events = kafkaProducer
	}

	bus := notify.New(log,
		notify.WithSendBuffer(cfg.Notify.SendBuffer),
		notify.WithMetrics(notifymetrics.New()),
	)
	auditor := audit.NewPublisher(auditStore, log)

	registry := providers.NewRegistry()
	if cfg.Providers.StubEnabled {
		seed := cfg.Providers.StubSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		mustRegister(log, registry, stub.NewSeeded(stub.Config{
			Latency:     cfg.Providers.StubLatency,
			SuccessRate: cfg.Providers.StubSuccessRate,
		}, seed))
	}
	if cfg.Providers.PolygonIDURL != "" {
		mustRegister(log, registry, polygonid.New(
			cfg.Providers.PolygonIDURL, cfg.Providers.PolygonIDAPIKey, cfg.Providers.PolygonIDTimeout))
	}
	if cfg.Providers.IdosURL != "" {
		mustRegister(log, registry, idos.New(
			cfg.Providers.IdosURL, cfg.Providers.IdosToken, cfg.Providers.IdosTimeout))
	}
	log.Info("identity providers registered", "providers", registry.Names())

	verMetrics := vermetrics.New()
	verification := versvc.NewService(sessionStore, walletStore, registry, log,
		versvc.WithAuditor(auditor),
		versvc.WithBus(bus),
		versvc.WithMetrics(verMetrics),
		versvc.WithSessionTTL(cfg.Verification.SessionTTL),
		versvc.WithCallbackBaseURL(cfg.Server.CallbackBaseURL),
	)

	badges := badgesvc.NewService(badgeStore, log)

	checkers := attributes.NewRegistry()
	if err := attributes.RegisterStubs(checkers, attributes.Config{}); err != nil {
		log.Error("attribute checker registration failed", "error", err)
		os.Exit(1)
	}
	evaluator := eligibility.NewService(verification, checkers, log,
		eligibility.WithMetrics(eligmetrics.New()),
	)

	var chain ledger.Adapter = ledger.NewStub(ledger.StubConfig{
		ContractAddress: cfg.Ledger.ContractAddress,
	})
	if cfg.Ledger.NodeURL != "" {
		chain = ledger.NewClient(cfg.Ledger.NodeURL, cfg.Ledger.Token, cfg.Ledger.SubmitTimeout)
	}

	mintOpts := []mintsvc.Option{
		mintsvc.WithAuditor(auditor),
		mintsvc.WithBus(bus),
		mintsvc.WithMetrics(mintmetrics.New()),
		mintsvc.WithTracer(tracer.NewOTel()),
		mintsvc.WithLockTTL(cfg.Minting.LockTTL),
		mintsvc.WithWebhook(webhook.New(http.DefaultClient, log)),
	}
	if rds != nil {
		mintOpts = append(mintOpts, mintsvc.WithLock(mintsvc.NewRedisLock(rds.Client, log)))
	}
	minting := mintsvc.NewService(mintStore, badges, evaluator, chain, log, mintOpts...)

	// Background machinery: the session expiry sweep and the outbox relay.
	sweeper, err := cleanup.New(verification, log,
		cleanup.WithInterval(cfg.Verification.SweepInterval),
		cleanup.WithMetrics(verMetrics),
	)
	if err != nil {
		log.Error("sweep worker init failed", "error", err)
		os.Exit(1)
	}
	sweepCtx, stopSweep := context.WithCancel(ctx)
	go func() {
		if err := sweeper.Start(sweepCtx); err != nil && sweepCtx.Err() == nil {
			log.Error("session sweep stopped", "error", err)
		}
	}()

	outbox := audit.NewWorker(auditStore, events, log, audit.WithTopic(cfg.Kafka.Topic))
	outbox.Start()

	verifier := token.NewVerifier(cfg.Server.JWTSigningKey)

	healthHandler := health.New(cfg.Server.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("database", checkWithTimeout(pool.Health))
	}
	if rds != nil {
		healthHandler.RegisterCheck("redis", checkWithTimeout(rds.Health))
	}
	if cfg.Kafka.Brokers != "" {
		healthHandler.RegisterCheck("kafka", checkWithTimeout(kafka.NewChecker(cfg.Kafka.Brokers).Check))
	}
	healthHandler.RegisterCheck("ledger", checkWithTimeout(chain.Health))

	httpMetrics := platformmetrics.NewHTTP()

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.Logger(log))
	router.Use(httpMetrics.Middleware)

	healthHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		verhandler.New(verification, log).RegisterRoutes(r)
	})
	ws.NewHandler(bus, verifier, cfg.Notify, log, ws.WithAuditor(auditor)).RegisterRoutes(router)

	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting http server", "addr", cfg.Server.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopSweep()
	if err := outbox.Stop(shutdownCtx); err != nil {
		log.Error("outbox worker shutdown failed", "error", err)
	}
	// Dispatched ledger submissions run to completion so no mint is left
	// stuck in processing by a restart.
	minting.Wait()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func mustRegister(log *slog.Logger, registry *providers.Registry, adapter providers.Adapter) {
	if err := registry.Register(adapter); err != nil {
		log.Error("identity provider registration failed", "provider", adapter.Name(), "error", err)
		os.Exit(1)
	}
}

// checkWithTimeout adapts a ctx-taking health probe to the handler's
// zero-argument check shape.
func checkWithTimeout(probe func(context.Context) error) health.CheckFunc {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return probe(ctx)
	}
}
