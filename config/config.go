package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"metaltracker/internal/model"
)

// Cache TTL bounds in minutes; values outside are clamped at the boundary.
const (
	MinCacheMinutes = 5
	MaxCacheMinutes = 1440
)

// Layouts the presentation layer understands.
var Layouts = map[string]bool{
	"standard": true,
	"compact":  true,
	"detailed": true,
}

// Settings holds the operator-tunable tracker settings. Unlike the
// infrastructure fields on Config these can be replaced at runtime through
// the admin API; any change invalidates the snapshot cache first.
type Settings struct {
	APIKey           string           `json:"api_key,omitempty"`
	Currency         string           `json:"currency"`
	WeightUnit       model.WeightUnit `json:"weight_unit"`
	CacheTimeMinutes int              `json:"cache_time_minutes"`
	Title            string           `json:"title"`
	Layout           string           `json:"layout"`
	CustomStyle      string           `json:"custom_style,omitempty"`
}

// Validate checks enumerated fields and clamps the cache TTL into
// [MinCacheMinutes, MaxCacheMinutes].
func (s *Settings) Validate() error {
	if !model.ValidCurrency(s.Currency) {
		return fmt.Errorf("unsupported currency %q", s.Currency)
	}
	if !s.WeightUnit.Valid() {
		return fmt.Errorf("unsupported weight unit %q", s.WeightUnit)
	}
	if !Layouts[s.Layout] {
		return fmt.Errorf("unsupported layout %q", s.Layout)
	}
	if s.CacheTimeMinutes < MinCacheMinutes {
		s.CacheTimeMinutes = MinCacheMinutes
	}
	if s.CacheTimeMinutes > MaxCacheMinutes {
		s.CacheTimeMinutes = MaxCacheMinutes
	}
	return nil
}

// Config holds all application configuration loaded from environment
// variables.
type Config struct {
	Settings

	// Price source: "goldapi" or "scrape"
	Source    string
	ScrapeURL string

	// Outbound request timeout in seconds. Upstreams impose none, so every
	// request carries this bound.
	FetchTimeoutSeconds int

	// Hour of day (UTC) the daily history tick fires.
	HistoryHourUTC int

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	ListenAddr    string

	// Admin trigger auth
	AdminTokenSecret string
	AdminTOTPSecret  string // optional second factor
}

// Load reads configuration from environment variables with sensible
// defaults. The GoldAPI key is required only when that source is selected.
func Load() *Config {
	cfg := &Config{
		Settings: Settings{
			Currency:         getEnv("CURRENCY", "USD"),
			WeightUnit:       model.WeightUnit(getEnv("WEIGHT_UNIT", "oz")),
			CacheTimeMinutes: getEnvInt("CACHE_TIME_MINUTES", 60),
			Title:            getEnv("TITLE", "Today's Metal Prices"),
			Layout:           getEnv("LAYOUT", "standard"),
			CustomStyle:      getEnv("CUSTOM_STYLE", ""),
		},

		Source:    getEnv("PRICE_SOURCE", "goldapi"),
		ScrapeURL: getEnv("SCRAPE_URL", ""),

		FetchTimeoutSeconds: getEnvInt("FETCH_TIMEOUT_SECONDS", 10),
		HistoryHourUTC:      getEnvInt("HISTORY_HOUR_UTC", 17),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/history.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),

		AdminTokenSecret: mustEnv("ADMIN_TOKEN_SECRET"),
		AdminTOTPSecret:  getEnv("ADMIN_TOTP_SECRET", ""),
	}

	if cfg.Source == "goldapi" {
		cfg.APIKey = mustEnv("GOLDAPI_KEY")
	}

	return cfg
}

// Validate checks the full configuration, clamping where the boundary allows
// it instead of failing.
func (c *Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if c.Source != "goldapi" && c.Source != "scrape" {
		return fmt.Errorf("unknown price source %q (want goldapi or scrape)", c.Source)
	}
	if c.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch timeout must be greater than 0")
	}
	if c.HistoryHourUTC < 0 || c.HistoryHourUTC > 23 {
		return fmt.Errorf("history hour %d out of range [0,23]", c.HistoryHourUTC)
	}
	if c.SQLitePath == "" {
		return fmt.Errorf("sqlite path cannot be empty")
	}
	return nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return n
}
