package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/cmd/meridian/cli"
	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/dimensions"
	"github.com/meridian-erp/meridian-erp/internal/accounting/ledger"
	"github.com/meridian-erp/meridian-erp/internal/accounting/mappings"
	"github.com/meridian-erp/meridian-erp/internal/accounting/posting"
	docsync "github.com/meridian-erp/meridian-erp/internal/accounting/sync"
	"github.com/meridian-erp/meridian-erp/internal/ap"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/ar"
	"github.com/meridian-erp/meridian-erp/internal/assets"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("failed to connect to postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Without redis the ledger reports are served uncached.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unreachable, continuing without it", slog.Any("error", err))
	} else {
		defer func() { _ = redisClient.Close() }()
	}
	reportCache := ledger.NewReportCache(redisClient)

	metrics := observability.NewMetrics()
	auditLog := shared.NewAuditLogger(pool)

	accountRepo := accounts.NewRepository(pool)
	mappingRepo := mappings.NewRepository(pool)
	resolver := mappings.NewResolver(mappingRepo, accountRepo)
	engine := posting.NewEngine(resolver)

	ledgerSvc := ledger.NewService(ledger.NewRepository(pool), accountRepo, auditLog, metrics)
	syncSvc := docsync.NewService(docsync.NewRepository(pool), engine, auditLog, metrics, logger, cfg.AllowNegativeStock)
	inventorySvc := inventory.NewService(inventory.NewRepository(pool), logger, cfg.AllowNegativeStock)
	arSvc := ar.NewService(ar.NewRepository(pool), logger)
	apSvc := ap.NewService(ap.NewRepository(pool), logger)
	assetSvc := assets.NewService(assets.NewRepository(pool), syncSvc, logger)

	dimRepo := dimensions.NewRepository(pool)
	dimResolver := dimensions.NewResolver(dimRepo)
	backfiller := dimensions.NewBackfiller(dimRepo, dimResolver, logger)

	if len(os.Args) > 1 {
		cliApp := &cli.App{
			Inventory:  inventorySvc,
			AR:         arSvc,
			AP:         apSvc,
			Assets:     assetSvc,
			Backfiller: backfiller,
			Poster:     docsync.NewInvoicePoster(docsync.NewDocumentLoader(pool), dimResolver, syncSvc),
		}
		code := cliApp.Run(ctx, os.Args[1:])
		stop()
		os.Exit(code)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LedgerHandler:    ledger.NewHandler(logger, ledgerSvc, reportCache),
		ARHandler:        ar.NewHandler(logger, arSvc),
		APHandler:        ap.NewHandler(logger, apSvc),
		InventoryHandler: inventory.NewHandler(logger, inventorySvc, shared.NewIdempotencyStore(pool)),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("meridian api listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("meridian stopped")
}
