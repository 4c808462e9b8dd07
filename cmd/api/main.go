package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"sigef-backend/internal/cache"
	"sigef-backend/internal/config"
	"sigef-backend/internal/handler"
	"sigef-backend/internal/repository"
	"sigef-backend/internal/service"
	"sigef-backend/internal/ws"
	"sigef-backend/pkg/database"
	"sigef-backend/pkg/jwt"
	"sigef-backend/pkg/logger"

	"github.com/sirupsen/logrus"
)

const idempotencyRetention = 24 * time.Hour

func main() {
	// 1. Load Env
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// 2. Setup Database
	db, err := database.ConnectDB(database.Options{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		Debug:        cfg.LogLevel == "debug",
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	// Auto Migrate (a dedicated migration tool is preferable in production)
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	// 3. Optional redis for the report cache and row locks across instances
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := service.Deps{Log: log}
	rdb, err := cache.Connect(ctx, cfg.RedisAddress)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, relying on database row locks only")
	}
	if rdb != nil {
		defer rdb.Close()
		deps.Cache = cache.NewReportCache(rdb, cfg.ReportCacheTTL)
		deps.Locker = cache.NewLocker(rdb)
		log.WithField("addr", cfg.RedisAddress).Info("redis connected")
	}

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub(log)
	go wsHub.Run()
	deps.Notifier = wsHub

	// 5. Dependency Injection (Wiring Layers)
	productRepo := repository.NewProductRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	debtRepo := repository.NewDebtRepo(db)
	userRepo := repository.NewUserRepo(db)
	snapshotRepo := repository.NewSnapshotRepo(db)
	idemRepo := repository.NewIdempotencyRepo(db)

	authService := service.NewAuthService(userRepo, jwt.NewSigner(cfg.JWTSecret, 24*time.Hour), deps)
	if created, err := authService.EnsureOwner(ctx, cfg.OwnerEmail, cfg.OwnerPassword, "Owner"); err != nil {
		log.WithError(err).Warn("failed to seed owner account")
	} else if created {
		log.WithField("email", cfg.OwnerEmail).Info("owner account seeded, change its password")
	}

	app := handler.NewApp(handler.Services{
		Auth:            authService,
		Inventory:       service.NewInventoryService(productRepo, saleRepo, db, deps),
		Debt:            service.NewDebtService(debtRepo, db, cfg.DefaultPhoneRegion, deps),
		Report:          service.NewReportService(productRepo, saleRepo, debtRepo, snapshotRepo, deps),
		Backup:          service.NewBackupService(productRepo, saleRepo, debtRepo, db, deps),
		Dashboard:       service.NewDashboardService(productRepo, saleRepo, deps),
		Idempotency:     idemRepo,
		Hub:             wsHub,
		Log:             log,
		RequestTimeout:  cfg.RequestTimeout,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		AccessLog:       true,
	})

	go pruneIdempotencyKeys(ctx, idemRepo, log)

	// 6. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Panic("server stopped")
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	wsHub.Stop()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Server exited")
}

// pruneIdempotencyKeys drops stored responses once clients can no longer retry them.
func pruneIdempotencyKeys(ctx context.Context, repo repository.IdempotencyRepository, log *logrus.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteOlderThan(ctx, time.Now().Add(-idempotencyRetention))
			if err != nil {
				log.WithError(err).Warn("failed to prune idempotency keys")
				continue
			}
			if n > 0 {
				log.WithField("deleted", n).Debug("idempotency keys pruned")
			}
		}
	}
}
