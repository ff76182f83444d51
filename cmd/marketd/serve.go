package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"nft-marketplace/config"
	httpHandler "nft-marketplace/internal/adapter/http/handler"
	"nft-marketplace/internal/adapter/storage/cache"
	"nft-marketplace/internal/adapter/storage/memory"
	pgStorage "nft-marketplace/internal/adapter/storage/postgres"
	redisStorage "nft-marketplace/internal/adapter/storage/redis"
	"nft-marketplace/internal/adapter/ws"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/internal/service"
	"nft-marketplace/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const openAPIPath = "docs/api/openapi.yaml"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, event relay and websocket feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("starting nft marketplace")

	var store ports.Store
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			return err
		}
		store = pgStorage.NewStore(pool)
		log.Info().Msg("postgres connected")
	default:
		store = memory.NewStore(memory.NewDB())
		log.Warn().Msg("memory storage: state is lost on restart")
	}
	healthCheckers := []ports.HealthChecker{store.Health}

	var (
		nonces         ports.NonceStore = memory.NewNonceStore()
		idempCache     ports.IdempotencyCache
		rateLimitStore *redisStorage.RateLimitStore
		publishers     []ports.EventPublisher
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		log.Info().Str("addr", cfg.Redis.Addr()).Msg("redis connected")

		nonces = redisStorage.NewNonceStore(rdb)
		idempCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
		if cfg.Events.Stream != "" {
			publishers = append(publishers, redisStorage.NewStreamPublisher(
				rdb, cfg.Events.Stream, cfg.Events.StreamMaxLen, logger.WithComponent(log, "stream")))
		}
	}

	metrics := service.NopMetrics()
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metrics = service.PrometheusMetrics(cfg.Metrics.Namespace)
		metricsHandler = promhttp.Handler()
	}

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(tokenSvc, nonces, cfg.Auth.MaxDrift, cfg.Auth.NonceTTL, logger.WithComponent(log, "auth"))

	var metadataCache ports.MetadataCache
	if cfg.Registry.MetadataCacheMB > 0 {
		metadataCache = cache.NewMetadataCache(cfg.Registry.MetadataCacheMB)
	}
	registrySvc := service.NewRegistryService(
		service.RegistryConfig{
			Address: cfg.Registry.AddressValue(),
			Name:    cfg.Registry.Name,
			Symbol:  cfg.Registry.Symbol,
		},
		store.Assets,
		store.Sequences,
		store.Transactor,
		metadataCache,
		metrics,
		logger.WithComponent(log, "registry"),
	)

	accountSvc := service.NewAccountService(store.Accounts, store.Transactions, store.Transactor, logger.WithComponent(log, "accounts"))

	feeRate, err := domain.NewFeeRate(cfg.Marketplace.FeePercent)
	if err != nil {
		return err
	}
	marketSvc, err := service.NewMarketplaceService(
		service.MarketplaceConfig{
			Address:      cfg.Marketplace.AddressValue(),
			FeeAccount:   cfg.Marketplace.FeeAccountValue(),
			FeeRate:      feeRate,
			ExcessPolicy: domain.ExcessPolicy(cfg.Marketplace.ExcessPolicy),
		},
		[]ports.AssetRegistry{registrySvc},
		store.Listings,
		store.Sequences,
		store.Outbox,
		accountSvc,
		store.Idempotency,
		idempCache,
		store.Transactor,
		metrics,
		logger.WithComponent(log, "marketplace"),
	)
	if err != nil {
		return err
	}

	reportingSvc := service.NewReportingService(store.Listings, store.Transactions)
	auditSvc := service.NewAuditService(store.Audit, logger.WithComponent(log, "audit"))

	hub := ws.NewHub(store.Outbox, logger.WithComponent(log, "ws"))
	publishers = append(publishers, hub)
	if cfg.Events.WebhookURL != "" {
		publishers = append(publishers, service.NewWebhookPublisher(
			cfg.Events.WebhookURL,
			cfg.Events.WebhookSecret,
			service.NewHMACSignatureService(),
			&http.Client{Timeout: 10 * time.Second},
			store.Webhooks,
			service.DefaultWebhookRetryIntervals,
			logger.WithComponent(log, "webhook"),
		))
	}
	relay := service.NewEventRelay(
		store.Outbox,
		publishers,
		cfg.Events.PollInterval,
		cfg.Events.BatchSize,
		metrics,
		logger.WithComponent(log, "relay"),
	)
	marketSvc.SetEventNotifier(relay.Notify)

	if spec, err := os.ReadFile(openAPIPath); err == nil {
		httpHandler.SetSwaggerSpec(spec)
	} else {
		log.Warn().Err(err).Msg("openapi spec not found, /swagger/spec unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:         authSvc,
		RegistrySvc:     registrySvc,
		MarketSvc:       marketSvc,
		AccountSvc:      accountSvc,
		ReportingSvc:    reportingSvc,
		TokenSvc:        tokenSvc,
		RateLimitStore:  rateLimitStore,
		HealthCheckers:  healthCheckers,
		AuditSvc:        auditSvc,
		EventStream:     hub.ServeWS,
		MetricsHandler:  metricsHandler,
		DefaultRegistry: registrySvc.Address(),
		Logger:          logger.WithComponent(log, "http"),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(srv, cfg.Server.ShutdownTimeout, log)
	})

	err = g.Wait()
	auditSvc.Wait()
	log.Info().Msg("server exited")
	return err
}

func shutdown(srv *http.Server, timeout time.Duration, log zerolog.Logger) error {
	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
