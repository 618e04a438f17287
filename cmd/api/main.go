package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yourusername/draftforme-backend/internal/config"
	"github.com/yourusername/draftforme-backend/internal/ddragon"
	"github.com/yourusername/draftforme-backend/internal/draft"
	"github.com/yourusername/draftforme-backend/internal/gateway"
	"github.com/yourusername/draftforme-backend/internal/handlers"
	"github.com/yourusername/draftforme-backend/internal/metrics"
	"github.com/yourusername/draftforme-backend/internal/models"
	"github.com/yourusername/draftforme-backend/internal/opgg"
	"github.com/yourusername/draftforme-backend/internal/repository"
	"github.com/yourusername/draftforme-backend/internal/riot"
	"github.com/yourusername/draftforme-backend/internal/services"
	"github.com/yourusername/draftforme-backend/pkg/cache"
)

// statsSource serves both tier lists and builds.
type statsSource interface {
	services.TierSource
	services.BuildSource
}

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.NewManager()
	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	// 2. Snapshot stores, both optional
	var stores services.ChainStore
	var checks []handlers.HealthChecker

	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisClient(cfg.RedisURL, cfg.SnapshotRetention)
		if err != nil {
			log.Printf("[WARN] Redis unavailable, continuing without it: %v", err)
		} else {
			defer redisCache.Close()
			stores = append(stores, redisCache)
			checks = append(checks, redisCache)
		}
	}

	var pgRepo *repository.PostgresRepo
	if cfg.DatabaseURL != "" {
		pgRepo, err = repository.NewPostgresRepo(cfg.DatabaseURL)
		if err != nil {
			log.Printf("[WARN] Postgres unavailable, continuing without it: %v", err)
			pgRepo = nil
		} else if err := pgRepo.RunMigrations(); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		} else {
			defer pgRepo.Close()
			stores = append(stores, pgRepo)
			checks = append(checks, pgRepo)
		}
	}

	// 3. Upstream clients
	var source statsSource
	switch cfg.StatsSource {
	case config.SourceGateway:
		source = gateway.NewClient(cfg.GatewayURL, cfg.GatewayAPIKey, httpClient)
	default:
		var renderer opgg.Renderer = opgg.NewHTTPRenderer(httpClient)
		if cfg.Headless {
			chrome := opgg.NewChromeRenderer(true)
			defer chrome.Close()
			renderer = chrome
		}
		source = opgg.NewClient(cfg.OPGGBaseURL, renderer)
	}
	log.Printf("[INFO] Stats source: %s, snapshot store: %s", source.Name(), storeName(stores))

	riotOpts := []riot.Option{
		riot.WithHTTPClient(&http.Client{Timeout: cfg.ProfileTimeout}),
		riot.WithRateLimit(20, 20),
	}
	if cfg.RiotBaseURL != "" {
		riotOpts = append(riotOpts, riot.WithBaseURL(cfg.RiotBaseURL))
	}
	riotClient := riot.NewClient(cfg.RiotAPIKey, riotOpts...)
	if !riotClient.HasKey() {
		log.Println("[WARN] Riot API key not configured, player profiles will use mock data")
	}

	ddragonClient := ddragon.NewClient(cfg.DDragonURL, httpClient)

	// 4. Services
	cacheOpts := []cache.Option{cache.WithObserver(m), cache.WithFetchTimeout(cfg.UpstreamTimeout)}

	tierOpts := []services.TierStatsOption{services.WithUpstreamObserver(m)}
	if len(stores) > 0 {
		tierOpts = append(tierOpts, services.WithSnapshotStore(stores))
	}
	tierStats := services.NewTierStatsService(
		source,
		cache.NewSnapshots[[]models.ChampionStat]("tier_stats", cfg.TierStatsTTL, cacheOpts...),
		cfg.TierStatsTTL,
		tierOpts...,
	)
	matchups := services.NewMatchupService(tierStats)
	recommender := services.NewRecommendationService(matchups, cfg.DefaultRegion, cfg.DefaultTier, m)
	players := services.NewPlayerService(riotClient, cfg.MatchWindow, cfg.ProfileTimeout, m)
	builds := services.NewBuildService(
		source,
		cache.NewSnapshots[*models.Build]("builds", cfg.BuildTTL, cacheOpts...),
		m,
	)
	champions := services.NewChampionService(
		ddragonClient,
		cache.NewSnapshots[map[string]models.StaticChampion]("ddragon", cfg.DDragonTTL, cacheOpts...),
	)

	draftServer := draft.NewServer(recommender, cfg.DefaultRegion, cfg.DefaultTier, services.DefaultTopN, cfg.Origins(), m)

	handler := handlers.NewHandler(handlers.Deps{
		TierStats:     tierStats,
		Matchups:      matchups,
		Recommender:   recommender,
		Players:       players,
		Builds:        builds,
		Champions:     champions,
		Draft:         draftServer,
		Checks:        checks,
		DefaultRegion: cfg.DefaultRegion,
		DefaultTier:   cfg.DefaultTier,
	})

	// 5. Setup Gin
	router := gin.Default()
	if err := router.SetTrustedProxies(cfg.Proxies()); err != nil {
		log.Fatalf("Invalid trusted proxies: %v", err)
	}

	router.Use(handlers.RequestIDMiddleware())
	router.Use(handlers.MetricsMiddleware(m))
	router.Use(handlers.CORSMiddleware(cfg.Origins()))
	router.Use(handlers.SecurityHeadersMiddleware())

	limiter := handlers.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	router.Use(handlers.RateLimitMiddleware(limiter))

	// 6. Routes
	handler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// 7. Background work
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	go tierStats.Warm(bgCtx, cfg.DefaultRegion, cfg.DefaultTier)
	if pgRepo != nil {
		go pruneSnapshots(bgCtx, pgRepo, cfg.SnapshotRetention)
	}

	// 8. Start server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func storeName(stores services.ChainStore) string {
	if len(stores) == 0 {
		return "none"
	}
	return stores.Name()
}

// pruneSnapshots deletes snapshot rows older than retention once an hour.
func pruneSnapshots(ctx context.Context, repo *repository.PostgresRepo, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PruneSnapshots(ctx, retention)
			if err != nil {
				log.Printf("[WARN] Snapshot prune failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[INFO] Pruned %d expired snapshots", n)
			}
		}
	}
}
