// Package tracker orchestrates the price pipeline: cache lookup, upstream
// fetch, unit conversion, cache write, and scheduled history recording.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"metaltracker/config"
	"metaltracker/internal/cache"
	"metaltracker/internal/convert"
	"metaltracker/internal/history"
	"metaltracker/internal/metrics"
	"metaltracker/internal/model"
	"metaltracker/internal/schedule"
	"metaltracker/internal/source"
)

// Trigger labels for history ticks.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Current is the rendered-data contract for current prices, consumed by the
// presentation layer.
type Current struct {
	Gold        *model.PriceSnapshot `json:"gold,omitempty"`
	Silver      *model.PriceSnapshot `json:"silver,omitempty"`
	LastUpdated time.Time            `json:"last_updated"`
	Stale       bool                 `json:"stale,omitempty"` // true when served from history after a failed fetch
}

// Config wires a Service.
type Config struct {
	Source   source.Source
	Cache    cache.Store
	History  *history.Store
	Metrics  *metrics.Metrics      // optional
	Health   *metrics.HealthStatus // optional
	Settings config.Settings

	// FetchTimeout bounds every upstream request.
	FetchTimeout time.Duration

	// OnUpdate, when set, receives every freshly fetched snapshot set
	// (used to push updates to live clients).
	OnUpdate func(*Current)
}

// Service is the price tracker core. Cache and history writes happen from at
// most one logical writer per tick; concurrent manual triggers on the same
// date resolve as last-write-wins through the history store.
type Service struct {
	mu       sync.RWMutex
	settings config.Settings

	src     source.Source
	cache   cache.Store
	history *history.Store
	metrics *metrics.Metrics
	health  *metrics.HealthStatus

	timeout  time.Duration
	onUpdate func(*Current)

	now func() time.Time // overridable in tests
}

// New creates a Service. The settings must already be validated.
func New(cfg Config) *Service {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		settings: cfg.Settings,
		src:      cfg.Source,
		cache:    cfg.Cache,
		history:  cfg.History,
		metrics:  cfg.Metrics,
		health:   cfg.Health,
		timeout:  timeout,
		onUpdate: cfg.OnUpdate,
		now:      time.Now,
	}
}

// Settings returns a copy of the active settings.
func (s *Service) Settings() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings validates and applies new settings. The snapshot cache is
// invalidated synchronously before the swap so stale cross-configuration
// data is never served.
func (s *Service) UpdateSettings(ctx context.Context, next config.Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cache.Invalidate(ctx, s.cacheKeyLocked()); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	s.settings = next

	// A rotated API key must reach the adapter before its next request,
	// not at the next restart.
	if src, ok := s.src.(interface{ SetAPIKey(string) }); ok {
		src.SetAPIKey(next.APIKey)
	}

	log.Printf("[tracker] settings updated: currency=%s unit=%s ttl=%dm",
		next.Currency, next.WeightUnit, next.CacheTimeMinutes)
	return nil
}

// ClearCache drops the cached snapshot set for the active configuration.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.Invalidate(ctx, s.cacheKey())
}

func (s *Service) cacheKey() cache.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cacheKeyLocked()
}

func (s *Service) cacheKeyLocked() cache.Key {
	return cache.Key{
		Metals:   model.Tracked,
		Currency: s.settings.Currency,
		Unit:     s.settings.WeightUnit,
	}
}

// Prices returns the current snapshot set, served from cache while fresh and
// refetched otherwise. A failed fetch with no cached value is an error; the
// caller decides whether to fall back to history for display.
func (s *Service) Prices(ctx context.Context) (*Current, error) {
	entry, err := s.cache.Get(ctx, s.cacheKey())
	if err != nil {
		log.Printf("[tracker] cache get error: %v", err)
	}
	if entry != nil {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return currentFromEntry(entry, false), nil
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	entry, err = s.refresh(ctx)
	if err != nil {
		return nil, err
	}
	return currentFromEntry(entry, false), nil
}

// History returns the metal's daily series in the requested order.
func (s *Service) History(metal model.Metal, order history.Order) ([]model.PricePoint, error) {
	return s.history.Read(metal, order)
}

// Fallback builds a stale Current from the newest history points. Returns
// false when no history exists either.
func (s *Service) Fallback(_ context.Context) (*Current, bool) {
	settings := s.Settings()
	cur := &Current{Stale: true}
	found := false

	for _, metal := range model.Tracked {
		p, err := s.history.Latest(metal)
		if err != nil || p == nil {
			continue
		}
		found = true
		day, _ := time.Parse(history.DateFormat, p.Date)
		snap := &model.PriceSnapshot{
			Metal:      metal,
			Price:      p.Price,
			Currency:   settings.Currency,
			WeightUnit: settings.WeightUnit,
			FetchedAt:  day,
		}
		if day.After(cur.LastUpdated) {
			cur.LastUpdated = day
		}
		cur.setSnapshot(snap)
	}
	return cur, found
}

// RecordHistory performs one fetch-and-record tick: fetch, refresh the
// cache, then record today's price per metal. A failed fetch records
// nothing, so history is never corrupted by partial or zero entries.
func (s *Service) RecordHistory(ctx context.Context, trigger string) error {
	entry, err := s.refresh(ctx)
	if err != nil {
		s.tickResult(trigger, "failed")
		return fmt.Errorf("history tick fetch: %w", err)
	}

	date := schedule.DateKey(s.now())
	recorded := 0

	for _, metal := range model.Tracked {
		snap, ok := entry.Snapshots[metal]
		if !ok {
			// The upstream yielded no value for this metal this tick.
			// Keep the gap out of the 30-day series.
			log.Printf("[tracker] skipping history record for %s on %s: no upstream value", metal, date)
			continue
		}
		if err := s.history.Record(metal, date, snap.Price, snap.Currency, snap.WeightUnit); err != nil {
			s.tickResult(trigger, "failed")
			return fmt.Errorf("record %s history: %w", metal, err)
		}
		recorded++
		if s.metrics != nil {
			s.metrics.HistoryRecords.Inc()
		}
	}

	s.tickResult(trigger, "ok")
	log.Printf("[tracker] history tick (%s): recorded %d metals for %s", trigger, recorded, date)
	return nil
}

func (s *Service) tickResult(trigger, status string) {
	if s.metrics != nil {
		s.metrics.HistoryTicksTotal.WithLabelValues(trigger, status).Inc()
	}
}

// RunDaily fires RecordHistory once per day at the given UTC hour. Blocks
// until ctx is cancelled. A tick that fires twice on one calendar date
// overwrites rather than duplicates.
func (s *Service) RunDaily(ctx context.Context, hourUTC int) {
	for {
		next := schedule.NextRecord(s.now(), hourUTC)
		wait := next.Sub(s.now())
		log.Printf("[tracker] next history tick at %s (in %s)", next.Format(time.RFC3339), wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.RecordHistory(ctx, TriggerSchedule); err != nil {
				// Skip this tick; the next one retries.
				log.Printf("[tracker] scheduled history tick failed: %v", err)
			}
		}
	}
}

// refresh fetches fresh quotes, converts them into the configured unit, and
// replaces the cache entry. Nothing is written on failure. Metals the
// upstream yielded no value for are left out of the entry entirely, so a
// zero never reaches the display, the cache, or the history.
func (s *Service) refresh(ctx context.Context) (*cache.Entry, error) {
	settings := s.Settings()

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	qs, err := s.src.Fetch(fetchCtx, model.Tracked, settings.Currency)
	s.observeFetch(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	for _, metal := range qs.Missing {
		log.Printf("[tracker] upstream yielded no %s price (markup changed?)", metal)
		if s.metrics != nil {
			s.metrics.ScrapeMissingPrice.WithLabelValues(string(metal)).Inc()
		}
	}

	now := s.now()
	entry := &cache.Entry{
		Snapshots:   make(map[model.Metal]model.PriceSnapshot, len(qs.Quotes)),
		LastUpdated: now,
	}
	for metal, quote := range qs.Quotes {
		if qs.IsMissing(metal) {
			continue
		}
		price, err := convert.Price(quote.Price, qs.Unit, settings.WeightUnit)
		if err != nil {
			return nil, fmt.Errorf("convert %s price: %w", metal, err)
		}
		entry.Snapshots[metal] = model.PriceSnapshot{
			Metal:         metal,
			Price:         price,
			Currency:      qs.Currency,
			WeightUnit:    settings.WeightUnit,
			ChangePercent: quote.ChangePercent,
			FetchedAt:     now,
		}
	}

	ttl := time.Duration(settings.CacheTimeMinutes) * time.Minute
	if err := s.cache.Put(ctx, s.cacheKey(), entry, ttl); err != nil {
		log.Printf("[tracker] cache put error: %v", err)
	}

	if s.onUpdate != nil {
		s.onUpdate(currentFromEntry(entry, false))
	}
	return entry, nil
}

func (s *Service) observeFetch(dur time.Duration, err error) {
	status := "ok"
	switch {
	case err == nil:
	case isMalformed(err):
		status = "malformed"
	default:
		status = "unavailable"
	}

	if s.metrics != nil {
		s.metrics.FetchesTotal.WithLabelValues(s.src.Name(), status).Inc()
		s.metrics.FetchDuration.Observe(dur.Seconds())
		if err == nil {
			s.metrics.LastFetchUnix.SetToCurrentTime()
		}
	}
	if s.health != nil {
		s.health.SetLastFetch(s.now(), err == nil)
	}
}

func isMalformed(err error) bool {
	return errors.Is(err, source.ErrUpstreamMalformed)
}

func currentFromEntry(entry *cache.Entry, stale bool) *Current {
	cur := &Current{LastUpdated: entry.LastUpdated, Stale: stale}
	for metal := range entry.Snapshots {
		snap := entry.Snapshots[metal]
		cur.setSnapshot(&snap)
	}
	return cur
}

func (c *Current) setSnapshot(snap *model.PriceSnapshot) {
	switch snap.Metal {
	case model.Gold:
		c.Gold = snap
	case model.Silver:
		c.Silver = snap
	}
}
