package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dpehub_backend/internal/dpe"
	"dpehub_backend/internal/dpe/cache"
	"dpehub_backend/internal/dpe/catalog"
	apphttp "dpehub_backend/internal/http"
	"dpehub_backend/internal/http/router"
	"dpehub_backend/platform/config"
	"dpehub_backend/platform/events"
	"dpehub_backend/platform/logger"
	"dpehub_backend/platform/metrics"
	"dpehub_backend/platform/validator"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	communes, err := catalog.Load(cfg.GetCommunesFile())
	if err != nil {
		log.Error("failed to load communes catalog", "error", err)
		panic("failed to load communes catalog: " + err.Error())
	}

	store, closeCache := cache.Open(ctx, cfg, log)
	defer func() { _ = closeCache() }()

	recorder := metrics.New()

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	dpeModule := dpe.NewModule(dpe.Deps{
		Config:    cfg,
		Catalog:   communes,
		Cache:     store,
		Metrics:   recorder,
		Bus:       eventBus,
		Validator: val,
		Logger:    log,
	})
	defer dpeModule.Close()

	// The dashboard opens on the first catalog commune.
	if first := communes.First(); first != "" {
		go dpeModule.Dashboard().SelectCommune(ctx, first)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  dpeModule.Service(),
		Metrics: recorder.Handler(),
		Modules: []apphttp.Module{
			dpeModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		// SSE streams only end once their clients are gone.
		dpeModule.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	eventBus.Wait()
	log.Info("server stopped")
}
