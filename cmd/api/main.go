package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_bundle/internal/cache"
	"github.com/GTDGit/gtd_bundle/internal/catalog"
	"github.com/GTDGit/gtd_bundle/internal/config"
	"github.com/GTDGit/gtd_bundle/internal/database"
	"github.com/GTDGit/gtd_bundle/internal/handler"
	"github.com/GTDGit/gtd_bundle/internal/metrics"
	"github.com/GTDGit/gtd_bundle/internal/middleware"
	"github.com/GTDGit/gtd_bundle/internal/repository"
	"github.com/GTDGit/gtd_bundle/internal/service"
	"github.com/GTDGit/gtd_bundle/internal/sse"
	"github.com/GTDGit/gtd_bundle/internal/worker"
	"github.com/GTDGit/gtd_bundle/pkg/storefront"
)

// main is the entrypoint of the bundle configurator API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	bundleCfg, err := config.LoadBundle(cfg.BundlePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load bundle definition: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().
		Str("env", cfg.Env).
		Str("bundle", bundleCfg.Title).
		Bool("enabled", bundleCfg.Enabled).
		Strs("handles", bundleCfg.Handles()).
		Msg("starting bundle configurator")

	// 3. Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Optional checkout audit database
	var audit service.CheckoutStore
	if cfg.DB.Enabled() {
		db, err := database.Connect(ctx, &cfg.DB)
		if err != nil {
			log.Error().Err(err).Msg("database connection failed")
			fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := database.Migrate(db.DB, cfg.MigrationsDir); err != nil {
			log.Error().Err(err).Msg("migration failed")
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
		log.Info().Msg("migrations completed successfully")
		audit = repository.NewCheckoutRepository(db)
	} else {
		log.Warn().Msg("DB_HOST not set, checkout audit log disabled")
	}

	// 5. Optional Redis product cache
	var (
		store       catalog.Store
		redisPinger handler.Pinger
	)
	if cfg.Redis.Enabled() {
		redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			log.Error().Err(err).Msg("redis connection failed")
			fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected successfully")
		store = cache.NewProductCache(redisClient, cfg.Catalog.RedisTTL)
		redisPinger = redisClient
	}

	// 6. Storefront client, catalog and cart adapters
	sf := storefront.NewClient(cfg.Storefront.BaseURL, cfg.Storefront.Timeout, cfg.Storefront.RetryMax)
	sfCatalog := service.NewStorefrontCatalog(sf)
	productCatalog := catalog.New(sfCatalog, store, cfg.Catalog.FetchTimeout)
	carts := func(token string) service.CartSession {
		return service.NewStorefrontCart(sf, token)
	}

	// 7. Services
	bundleSvc := service.NewBundleService(bundleCfg, productCatalog, carts, audit, service.SessionOptions{
		Secret:   cfg.Session.Secret,
		TokenTTL: cfg.Session.TTL,
		IdleTTL:  cfg.Session.IdleTTL,
	})
	sseHub := sse.NewHub()
	bundleSvc.SetNotifier(sse.NewHubNotifier(sseHub))

	// 8. Middleware
	limiter := middleware.NewInvalidTokenRateLimiter(10, time.Minute)
	go limiter.Cleanup(ctx, 5*time.Minute)
	sessionMw := middleware.NewSessionMiddleware(bundleSvc, limiter)
	operatorMw := middleware.NewOperatorMiddleware(cfg.Session.OperatorSecret)
	if cfg.Session.OperatorSecret == "" {
		log.Warn().Msg("OPERATOR_SECRET not set, checkout audit endpoints will reject every request")
	}

	// 9. Router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))
	router.Use(middleware.LoggingMiddleware())

	healthHandler := handler.NewHealthHandler(sfCatalog, bundleSvc, productCatalog, redisPinger)
	router.GET("/v1/health", healthHandler.GetHealth)
	router.GET("/metrics", metrics.Handler())
	handler.RegisterBundleRoutes(router.Group("/v1"), handler.NewBundleHandler(bundleSvc), handler.NewSSEHandler(sseHub), sessionMw.Handle(), operatorMw.Handle())

	// 10. Workers
	if bundleCfg.Enabled && cfg.Worker.CatalogRefreshInterval > 0 {
		go worker.NewCatalogWarmWorker(productCatalog, bundleCfg.Handles(), cfg.Worker.CatalogRefreshInterval).Start(ctx)
	}
	if cfg.Worker.SessionSweepInterval > 0 {
		go worker.NewSessionSweepWorker(bundleSvc, cfg.Worker.SessionSweepInterval).Start(ctx)
	}

	// 11. HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
