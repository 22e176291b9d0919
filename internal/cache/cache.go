// Package cache provides time-boxed memoization of the latest price
// snapshots, keyed by (metal set, currency, weight unit). Backed by Redis in
// normal deployments, with an in-process fallback when Redis is unreachable.
package cache

import (
	"context"
	"sort"
	"strings"
	"time"

	"metaltracker/internal/model"
)

// Key identifies one cached snapshot set.
type Key struct {
	Metals   []model.Metal
	Currency string
	Unit     model.WeightUnit
}

// String renders the key as "prices:gold+silver:USD:oz". The metal set is
// sorted so equivalent keys always collide.
func (k Key) String() string {
	names := make([]string, len(k.Metals))
	for i, m := range k.Metals {
		names[i] = string(m)
	}
	sort.Strings(names)
	return "prices:" + strings.Join(names, "+") + ":" + k.Currency + ":" + string(k.Unit)
}

// Entry is a cached mapping of metal to snapshot plus the fetch time the
// presentation layer reports as "last updated".
type Entry struct {
	Snapshots   map[model.Metal]model.PriceSnapshot `json:"snapshots"`
	LastUpdated time.Time                           `json:"last_updated"`
}

// Store is the snapshot cache port. An absent or expired entry is a miss:
// Get returns (nil, nil) and the entry is not consulted again until the next
// Put overwrites it.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Put(ctx context.Context, key Key, entry *Entry, ttl time.Duration) error
	Invalidate(ctx context.Context, key Key) error
}
