package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"biogate/internal/audit"
	"biogate/internal/biometric/capability"
	"biogate/internal/biometric/ports"
	fusionhandler "biogate/internal/fusion/handler"
	fusionmetrics "biogate/internal/fusion/metrics"
	"biogate/internal/fusion/policy"
	fusionservice "biogate/internal/fusion/service"
	livenesshandler "biogate/internal/liveness/handler"
	livenessmetrics "biogate/internal/liveness/metrics"
	livenessservice "biogate/internal/liveness/service"
	"biogate/internal/platform/config"
	"biogate/internal/platform/httpserver"
	"biogate/internal/platform/logger"
	"biogate/internal/platform/redis"
	"biogate/internal/stats"
	templatecache "biogate/internal/template/cache"
	templatehandler "biogate/internal/template/handler"
	templatemetrics "biogate/internal/template/metrics"
	templateservice "biogate/internal/template/service"
	templatestore "biogate/internal/template/store"
	"biogate/internal/token"
	httptransport "biogate/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	repo, dbHealth, cleanupRepo := buildRepository(ctx, cfg, log)
	defer cleanupRepo()

	cache, cleanupCache := buildCache(cfg, log)
	defer cleanupCache()

	publisher, cleanupAudit := buildAudit(ctx, cfg, log)
	defer cleanupAudit()

	collector := stats.NewCollector()
	sinks := audit.Fanout{collector, publisher}

	capabilities := capability.NewHeuristic()

	templates, err := templateservice.New(repo, capabilities, templateservice.Limits{
		AdmissionThreshold:      cfg.AdmissionThreshold,
		MaxTemplatesPerSubject:  cfg.MaxTemplatesPerSubject,
		MaxTemplatesPerModality: cfg.MaxTemplatesPerModality,
		TemplateTTL:             cfg.TemplateTTL,
	},
		templateservice.WithLogger(log),
		templateservice.WithCache(cache),
		templateservice.WithMetrics(templatemetrics.New()),
		templateservice.WithAuditPublisher(sinks),
	)
	if err != nil {
		log.Error("template service init failed", "error", err)
		os.Exit(1)
	}

	liveness, err := livenessservice.New(capabilities,
		livenessservice.WithLogger(log),
		livenessservice.WithMetrics(livenessmetrics.New()),
		livenessservice.WithAuditPublisher(sinks),
	)
	if err != nil {
		log.Error("liveness service init failed", "error", err)
		os.Exit(1)
	}

	issuer, err := token.NewIssuer([]byte(cfg.JWTSigningKey), cfg.TokenTTL)
	if err != nil {
		log.Error("token issuer init failed", "error", err)
		os.Exit(1)
	}

	fusion, err := fusionservice.New(templates, capabilities, policy.NewRegistry(),
		fusionservice.WithLogger(log),
		fusionservice.WithLivenessGate(liveness),
		fusionservice.WithTokenIssuer(issuer),
		fusionservice.WithMetrics(fusionmetrics.New()),
		fusionservice.WithAuditPublisher(sinks),
	)
	if err != nil {
		log.Error("fusion service init failed", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Handlers: []httptransport.Registrar{
			templatehandler.New(templates, log),
			livenesshandler.New(liveness, log),
			fusionhandler.New(fusion, log),
		},
		Collector: collector,
		Health:    dbHealth,
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting biogate", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// buildRepository picks postgres when a DSN is configured, the in-memory
// store otherwise.
func buildRepository(ctx context.Context, cfg config.Server, log *slog.Logger) (templatestore.Repository, func() error, func()) {
	if cfg.PostgresDSN == "" {
		log.Info("no postgres DSN configured, using in-memory template store")
		return templatestore.NewInMemoryRepository(), nil, func() {}
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres open failed", "error", err)
		os.Exit(1)
	}
	repo := templatestore.NewPostgres(db)
	if err := repo.Migrate(ctx); err != nil {
		log.Error("postgres migration failed", "error", err)
		os.Exit(1)
	}
	return repo, db.Ping, func() { _ = db.Close() }
}

func buildCache(cfg config.Server, log *slog.Logger) (*templatecache.TemplateCache, func()) {
	client, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if client == nil {
		return nil, func() {}
	}
	return templatecache.New(client.Client), func() { _ = client.Close() }
}

func buildAudit(ctx context.Context, cfg config.Server, log *slog.Logger) (ports.AuditPublisher, func()) {
	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		log.Info("no kafka brokers configured, buffering audit events in memory")
		return audit.NewRecorder(0), func() {}
	}
	publisher, err := audit.NewKafkaPublisher(ctx, brokers, audit.DefaultTopic)
	if err != nil {
		log.Error("kafka audit publisher init failed", "error", err)
		os.Exit(1)
	}
	return publisher, publisher.Close
}
