package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/config"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/access"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	v1 "github.com/dmehra2102/prod-golang-projects/medcycle/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/repository/postgres"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/service"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/events"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/secrets"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/tracer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errMissingAdminInput = errors.New("--email, --username and ADMIN_PASSWORD are required")

// dbStatsInterval is how often pool statistics are copied into metrics.
const dbStatsInterval = 15 * time.Second

// bootstrap loads configuration, resolves secrets and opens the database.
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(cfg.App, cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building logger: %w", err)
	}
	log = log.With(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Environment))

	if cfg.Secrets.JWTSecretARN != "" {
		resolver, err := secrets.NewResolver(ctx, cfg.Secrets.Region)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := resolver.Apply(ctx, cfg); err != nil {
			return nil, nil, nil, fmt.Errorf("resolving secrets: %w", err)
		}
		log.Info("secrets resolved from secrets manager")
	}

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}

func runMigrate(ctx context.Context) error {
	_, log, db, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()         //nolint:errcheck
	defer database.Close(db) //nolint:errcheck

	return database.Migrate(db, log)
}

func runSeedAdmin(ctx context.Context, email, username, fullName, password string) error {
	cfg, log, db, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()         //nolint:errcheck
	defer database.Close(db) //nolint:errcheck

	m := metrics.NewCollector(metricsNamespace(cfg), prometheus.NewRegistry())
	evaluator := access.NewEvaluator(access.DefaultTable())
	audit := service.NewAuditService(postgres.NewStore(db), evaluator, nil, m, log)
	defer audit.Shutdown()

	users := service.NewUserService(audit, evaluator, m, log)
	u, err := users.SeedAdmin(ctx, &domain.CreateUserCommand{
		Email:    email,
		Username: username,
		FullName: fullName,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("seeding administrator: %w", err)
	}

	log.Info("administrator created", zap.String("user_id", u.ID.String()))
	return nil
}

func runServer(ctx context.Context) error {
	cfg, log, db, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()         //nolint:errcheck
	defer database.Close(db) //nolint:errcheck

	tp, err := tracer.Init(ctx, cfg.App, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initialising tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(metricsNamespace(cfg), registry)

	// Optional collaborators stay untyped nil when disabled.
	var revoker service.TokenRevoker
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		revoker = auth.NewRedisRevocationStore(rdb)
	} else {
		log.Warn("REDIS_ADDR not set; logout will not revoke tokens")
	}

	var exporter service.Exporter
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaExporter := events.NewAuditExporter(cfg.Kafka, log)
		defer kafkaExporter.Close()
		exporter = kafkaExporter
	}

	evaluator := access.NewEvaluator(access.DefaultTable())
	audit := service.NewAuditService(postgres.NewStore(db), evaluator, exporter, m, log)
	defer audit.Shutdown()

	jwtManager := auth.NewJWTManager(cfg.JWT)
	h := v1.NewHandler(
		service.NewAuthService(postgres.NewStore(db), audit, jwtManager, revoker, cfg.MFA.Issuer, m, log),
		service.NewUserService(audit, evaluator, m, log),
		service.NewPatientService(audit, evaluator, m, log),
		service.NewConsultationService(audit, evaluator, m, log),
		service.NewPrescriptionService(audit, evaluator, m, log),
		audit,
		log,
	)
	router := v1.NewRouter(h, v1.RouterDeps{
		ServiceName: cfg.Tracing.ServiceName,
		Metrics:     m,
		Gatherer:    registry,
		RateLimit:   cfg.RateLimit,
		Log:         log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	go reportPoolStats(statsCtx, db, m)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func reportPoolStats(ctx context.Context, db *gorm.DB, m *metrics.Collector) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		m.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// metricsNamespace turns the app name into a valid prometheus namespace.
func metricsNamespace(cfg *config.Config) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, cfg.App.Name)
}
