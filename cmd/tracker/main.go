package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"metaltracker/config"
	"metaltracker/internal/api"
	"metaltracker/internal/cache"
	"metaltracker/internal/gateway"
	"metaltracker/internal/history"
	"metaltracker/internal/logger"
	"metaltracker/internal/metrics"
	"metaltracker/internal/source"
	"metaltracker/internal/tracker"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[tracker] starting...")

	logger.Init("tracker", slog.LevelInfo)

	// ---- Load config from env ----
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[tracker] invalid config: %v", err)
	}
	fetchTimeout := time.Duration(cfg.FetchTimeoutSeconds) * time.Second

	// ---- Setup metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus(cfg.Source)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- History store (SQLite) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	hist, err := history.New(history.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[tracker] history init failed: %v", err)
	}
	defer hist.Close()
	health.SetSQLiteOK(true)
	log.Println("[tracker] history store ready")

	// ---- Snapshot cache (Redis, falling back to in-process) ----
	var store cache.Store
	redisStore, err := cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[tracker] WARNING: redis init failed: %v (continuing with in-process cache)", err)
		health.SetRedisConnected(false)
		store = cache.NewMemory()
	} else {
		health.SetRedisConnected(true)
		defer redisStore.Close()
		store = redisStore
		log.Println("[tracker] redis cache ready")
	}

	// ---- Periodic liveness checks ----
	if redisStore != nil {
		health.StartLivenessChecker(ctx, redisStore.Client(), hist.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, hist.DB(), 10*time.Second)
	}

	// ---- Price source ----
	var src source.Source
	switch cfg.Source {
	case "scrape":
		src = source.NewScraper(cfg.ScrapeURL, fetchTimeout)
	default:
		src = source.NewGoldAPI(cfg.APIKey, fetchTimeout)
	}
	log.Printf("[tracker] price source: %s", src.Name())

	// ---- WebSocket hub ----
	hub := gateway.NewHub()

	// ---- Tracker core ----
	svc := tracker.New(tracker.Config{
		Source:       src,
		Cache:        store,
		History:      hist,
		Metrics:      prom,
		Health:       health,
		Settings:     cfg.Settings,
		FetchTimeout: fetchTimeout,
		OnUpdate: func(cur *tracker.Current) {
			hub.Broadcast("prices", cur)
		},
	})

	// ---- Daily history scheduler ----
	go svc.RunDaily(ctx, cfg.HistoryHourUTC)
	log.Printf("[tracker] daily history tick scheduled for %02d:00 UTC", cfg.HistoryHourUTC)

	// ---- HTTP API ----
	tokens := api.NewTokenIssuer(cfg.AdminTokenSecret, cfg.AdminTOTPSecret)
	apiSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(svc, hub, tokens).Router(),
	}
	go func() {
		log.Printf("[tracker] API listening on %s", cfg.ListenAddr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[tracker] API server failed: %v", err)
		}
	}()

	// ---- Wait for shutdown ----
	<-sigCh
	log.Println("[tracker] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Println("[tracker] stopped")
}
