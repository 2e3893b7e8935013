package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appservice "github.com/wrensec/keygate/internal/application/service"
	"github.com/wrensec/keygate/internal/config"
	domainservice "github.com/wrensec/keygate/internal/domain/service"
	"github.com/wrensec/keygate/internal/infrastructure/audit"
	"github.com/wrensec/keygate/internal/infrastructure/monitoring"
	"github.com/wrensec/keygate/internal/infrastructure/persistence/postgres"
	persistredis "github.com/wrensec/keygate/internal/infrastructure/persistence/redis"
	"github.com/wrensec/keygate/internal/infrastructure/ratelimit"
	storeredis "github.com/wrensec/keygate/internal/infrastructure/redis"
	"github.com/wrensec/keygate/internal/infrastructure/secrets"
	"github.com/wrensec/keygate/internal/interfaces/http/handlers"
	"github.com/wrensec/keygate/internal/interfaces/http/middleware"
	"github.com/wrensec/keygate/internal/interfaces/http/router"
	"github.com/wrensec/keygate/pkg/constants"
	"github.com/wrensec/keygate/pkg/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	ctx := context.Background()

	tracing, err := monitoring.NewTracingManager(cfg, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to initialize tracing", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	db, err := postgres.NewDBConnection(&cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to connect to database", err)
	}

	redisConn, err := persistredis.NewConnection(&cfg.Redis, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to connect to redis", err)
	}
	defer redisConn.Close()

	metrics := monitoring.NewMetrics()

	// Audit sink: Kafka when configured, structured log otherwise.
	var auditSvc domainservice.AuditService
	if cfg.Kafka.Enabled {
		auditSvc, err = audit.NewKafkaProducer(cfg.Kafka, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to create kafka audit producer", err)
		}
	} else {
		auditSvc = audit.NewLogSink(appLogger)
	}
	defer auditSvc.Close()

	var secretSource domainservice.SecretSource
	if cfg.Vault.Enabled {
		secretSource, err = secrets.NewVaultSource(cfg.Vault, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to create vault secret source", err)
		}
	}

	// Domain wiring.
	keyRepo := postgres.NewAccessKeyRepository(db)
	nonceStore := storeredis.NewNonceStore(redisConn.Client, cfg.Signing.StoreTimeout())
	keyCache := storeredis.NewKeyCache(redisConn.Client, cfg.Signing.StoreTimeout())
	guard := domainservice.NewReplayGuard(nonceStore, cfg.Signing.TimestampDisparity(), cfg.Signing.NonceTTL(), appLogger)

	simpleStore := appservice.NewSimpleKeyStore(keyRepo, keyCache, cfg.Signing.MemoryCacheTTL(), appLogger)
	signedStore := appservice.NewSignedKeyStore(keyRepo, keyCache, guard, secretSource, cfg.Signing.MemoryCacheTTL(), appLogger)

	// Startup cache seed. Failure degrades to database reads, it does not
	// abort startup.
	for name, store := range map[string]domainservice.KeyStore{
		"simple": simpleStore,
		"signed": signedStore,
	} {
		if err := store.LoadKeys(ctx); err != nil {
			appLogger.Warn(ctx, "startup key load failed, serving degraded",
				logger.String("strategy", name), logger.Error(err))
		}
	}

	// Signing windows follow the config file without a restart.
	if err := config.Watch(func(signing config.SigningConfig) {
		guard.UpdateWindow(signing.TimestampDisparity(), signing.NonceTTL())
		appLogger.Info(context.Background(), "signing windows reloaded",
			logger.Duration("timestamp_disparity", signing.TimestampDisparity()),
			logger.Duration("nonce_ttl", signing.NonceTTL()))
	}); err != nil {
		appLogger.Warn(ctx, "config watch unavailable", logger.Error(err))
	}

	observability := middleware.Observability(tracing.Tracer(), metrics.HTTPRequestsTotal, metrics.HTTPRequestDuration)
	simpleGuard := middleware.RequireAPIKey(simpleStore, auditSvc, metrics, appLogger, middleware.Options{
		Strategy: constants.StrategySimple,
	})
	signedGuard := middleware.RequireAPIKey(signedStore, auditSvc, metrics, appLogger, middleware.Options{
		Strategy: constants.StrategySigned,
	})

	var rateLimitGuard gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewRedisRateLimiter(redisConn.Client, cfg.RateLimit, appLogger)
		rateLimitGuard = middleware.RateLimit(limiter, appLogger)
	}

	healthHandler := handlers.NewHealthHandler(db, redisConn, appLogger)
	keyHandler := handlers.NewKeyHandler(simpleStore, signedStore, auditSvc, metrics, appLogger)

	srv := router.NewRouter(cfg, appLogger, healthHandler, keyHandler, observability, simpleGuard, signedGuard, rateLimitGuard)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-gctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Fatal(ctx, "server exited with error", err)
	}
	appLogger.Info(ctx, "server stopped")
}
