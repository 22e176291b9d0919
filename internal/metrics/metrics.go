package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the price tracker.
type Metrics struct {
	FetchesTotal  *prometheus.CounterVec // labels: source, status=ok|unavailable|malformed
	FetchDuration prometheus.Histogram

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Scrape soft-failures: the page yielded no value for a metal. This is
	// the only signal operators get before zeroes would reach the display.
	ScrapeMissingPrice *prometheus.CounterVec // labels: metal

	HistoryRecords    prometheus.Counter
	HistoryTicksTotal *prometheus.CounterVec // labels: trigger=schedule|manual, status=ok|failed

	LastFetchUnix prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_fetches_total",
			Help: "Upstream price fetches by source and outcome",
		}, []string{"source", "status"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_fetch_duration_seconds",
			Help:    "Upstream fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_cache_hits_total",
			Help: "Price requests served from the snapshot cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_cache_misses_total",
			Help: "Price requests that required an upstream fetch",
		}),
		ScrapeMissingPrice: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_scrape_missing_price_total",
			Help: "Scrapes where the page no longer exposed a metal's price",
		}, []string{"metal"}),
		HistoryRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_history_records_total",
			Help: "Daily history points recorded",
		}),
		HistoryTicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_history_ticks_total",
			Help: "History record ticks by trigger and outcome",
		}, []string{"trigger", "status"}),
		LastFetchUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_last_successful_fetch_timestamp_seconds",
			Help: "Unix time of the last successful upstream fetch",
		}),
	}

	prometheus.MustRegister(
		m.FetchesTotal,
		m.FetchDuration,
		m.CacheHits,
		m.CacheMisses,
		m.ScrapeMissingPrice,
		m.HistoryRecords,
		m.HistoryTicksTotal,
		m.LastFetchUnix,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	Source          string    `json:"source"`
	RedisConnected  bool      `json:"redis_connected"`
	SQLiteOK        bool      `json:"sqlite_ok"`
	LastFetchTime   time.Time `json:"last_fetch_time"`
	LastFetchOK     bool      `json:"last_fetch_ok"`
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(source string) *HealthStatus {
	return &HealthStatus{
		Source:    source,
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// SetLastFetch records the time and outcome of the most recent fetch.
func (h *HealthStatus) SetLastFetch(t time.Time, ok bool) {
	h.mu.Lock()
	h.LastFetchTime = t
	h.LastFetchOK = ok
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	fetchAge := ""
	if !h.LastFetchTime.IsZero() {
		fetchAge = time.Since(h.LastFetchTime).Round(time.Second).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		Source          string  `json:"source"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastFetchTime   string  `json:"last_fetch_time"`
		LastFetchOK     bool    `json:"last_fetch_ok"`
		FetchAge        string  `json:"fetch_age"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		Source:          h.Source,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastFetchTime:   h.LastFetchTime.Format(time.RFC3339),
		LastFetchOK:     h.LastFetchOK,
		FetchAge:        fetchAge,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
