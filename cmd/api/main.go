package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/promoredeem/api/routes"
	"github.com/angelmondragon/promoredeem/internal/catalog"
	"github.com/angelmondragon/promoredeem/internal/ledger"
	"github.com/angelmondragon/promoredeem/internal/qrinfo"
	"github.com/angelmondragon/promoredeem/internal/redemption"
	"github.com/angelmondragon/promoredeem/internal/vouchers"
	"github.com/angelmondragon/promoredeem/pkg/auth/session"
	"github.com/angelmondragon/promoredeem/pkg/config"
	"github.com/angelmondragon/promoredeem/pkg/db"
	"github.com/angelmondragon/promoredeem/pkg/logger"
	"github.com/angelmondragon/promoredeem/pkg/metrics"
	"github.com/angelmondragon/promoredeem/pkg/migrate"
	"github.com/angelmondragon/promoredeem/pkg/outbox"
	"github.com/angelmondragon/promoredeem/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		_ = dbClient.Close()
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing api resources", err)
		}
	}()

	var sessions session.AccessSessionChecker
	if cfg.JWT.RequireSession {
		manager, err := session.NewManager(redisClient, cfg.JWT)
		if err != nil {
			logg.Error(context.Background(), "failed to create session manager", err)
			os.Exit(1)
		}
		sessions = manager
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	redemptionMetrics := metrics.NewRedemptionMetrics(registry)

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	catalogRepo := catalog.NewRepository(dbClient.DB())

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repository: ledger.NewRepository(dbClient.DB()),
		TxRunner:   dbClient,
		Outbox:     emitter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	redemptionService, err := redemption.NewService(redemption.ServiceParams{
		Vouchers: vouchers.NewRepository(dbClient.DB()),
		Catalog:  catalogRepo,
		History:  redemption.NewHistoryRepository(dbClient.DB()),
		Ledger:   ledgerService,
		TxRunner: dbClient,
		Outbox:   emitter,
		Metrics:  redemptionMetrics,
		Logger:   logg,
		Codes:    redemption.NewRandomCodeGenerator(time.Now().UnixNano(), cfg.Redemption.VoucherCodeLength),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create redemption service", err)
		os.Exit(1)
	}

	qrResolver, err := qrinfo.NewResolver(redemptionService, catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create qr resolver", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessions,
			registry,
			redemptionService,
			qrResolver,
			ledgerService,
			outbox.NewDLQRepository(dbClient.DB()),
		),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
		return
	case <-sigCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
	}
	logg.Info(ctx, "api server stopped")
}
