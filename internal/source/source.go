// Package source defines the price-source capability and its two upstream
// strategies: the GoldAPI JSON client and the HTML scrape client.
package source

import (
	"context"
	"errors"
	"fmt"

	"metaltracker/internal/model"
)

// Common errors. Both are recoverable: the caller retries only on the next
// scheduled tick, never inline.
var (
	// ErrUpstreamUnavailable covers transport-level failure: connection,
	// TLS, timeout, or a non-2xx response.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamMalformed covers a response whose required fields are
	// absent or non-numeric.
	ErrUpstreamMalformed = errors.New("upstream response malformed")
)

// SourceError wraps errors with context about the source and metal.
type SourceError struct {
	Source string
	Metal  model.Metal
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source=%s metal=%s: %v", e.Source, e.Metal, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a new source error with context.
func NewSourceError(source string, metal model.Metal, err error) error {
	return &SourceError{Source: source, Metal: metal, Err: err}
}

// Quote is one raw per-metal price as returned by an upstream, before any
// unit conversion.
type Quote struct {
	Metal         model.Metal
	Price         float64
	ChangePercent float64 // 0 when the source has no delta
}

// QuoteSet is the result of one fetch: the quoted currency and weight unit,
// one quote per requested metal, and the set of metals the upstream page no
// longer exposes (scrape soft-failure, not an error).
type QuoteSet struct {
	Currency string
	Unit     model.WeightUnit
	Quotes   map[model.Metal]Quote
	Missing  []model.Metal
}

// IsMissing reports whether the upstream yielded no value for the metal.
func (q *QuoteSet) IsMissing(m model.Metal) bool {
	for _, mm := range q.Missing {
		if mm == m {
			return true
		}
	}
	return false
}

// Source fetches current price quotes for a set of metals.
type Source interface {
	Name() string

	// Fetch returns one quote per metal in the given currency. Callers
	// bound every call with a deadline; a fetch that fails must not be
	// retried before the next tick.
	Fetch(ctx context.Context, metals []model.Metal, currency string) (*QuoteSet, error)
}
