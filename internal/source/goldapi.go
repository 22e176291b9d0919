package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"metaltracker/internal/model"
)

const defaultGoldAPIBase = "https://www.goldapi.io/api"

// GoldAPI fetches spot prices from goldapi.io, one request per metal symbol,
// authenticated with the caller-supplied access token. Prices come back per
// troy ounce in the requested currency.
type GoldAPI struct {
	mu      sync.RWMutex
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewGoldAPI creates a GoldAPI source using the given access token.
func NewGoldAPI(apiKey string, timeout time.Duration) *GoldAPI {
	return &GoldAPI{
		apiKey:  apiKey,
		baseURL: defaultGoldAPIBase,
		client:  SharedHTTPClient(timeout),
	}
}

// SetAPIKey replaces the access token. Requests already in flight finish
// with the old key; the next request carries the new one.
func (g *GoldAPI) SetAPIKey(key string) {
	g.mu.Lock()
	g.apiKey = key
	g.mu.Unlock()
}

func (g *GoldAPI) key() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.apiKey
}

func (g *GoldAPI) Name() string {
	return "goldapi"
}

// Fetch issues one request per metal. Any per-metal failure fails the whole
// fetch: partial quote sets never reach the cache or history.
func (g *GoldAPI) Fetch(ctx context.Context, metals []model.Metal, currency string) (*QuoteSet, error) {
	qs := &QuoteSet{
		Currency: currency,
		Unit:     model.TroyOunce,
		Quotes:   make(map[model.Metal]Quote, len(metals)),
	}

	for _, metal := range metals {
		quote, err := g.fetchMetal(ctx, metal, currency)
		if err != nil {
			return nil, err
		}
		qs.Quotes[metal] = quote
	}

	return qs, nil
}

func (g *GoldAPI) fetchMetal(ctx context.Context, metal model.Metal, currency string) (Quote, error) {
	url := fmt.Sprintf("%s/%s/%s", g.baseURL, metal.Symbol(), currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, NewSourceError(g.Name(), metal, err)
	}
	req.Header.Set("x-access-token", g.key())
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Quote{}, NewSourceError(g.Name(), metal, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, NewSourceError(g.Name(), metal,
			fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamUnavailable, resp.StatusCode, string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, NewSourceError(g.Name(), metal, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err))
	}

	price := gjson.GetBytes(body, "price")
	if price.Type != gjson.Number {
		return Quote{}, NewSourceError(g.Name(), metal,
			fmt.Errorf("%w: missing or non-numeric price field", ErrUpstreamMalformed))
	}
	if price.Float() < 0 {
		return Quote{}, NewSourceError(g.Name(), metal,
			fmt.Errorf("%w: negative price %v", ErrUpstreamMalformed, price.Float()))
	}

	// goldapi exposes the 24h delta as "chp"; older payloads used "ch_percent".
	change := gjson.GetBytes(body, "chp")
	if change.Type != gjson.Number {
		change = gjson.GetBytes(body, "ch_percent")
	}
	if change.Type != gjson.Number {
		return Quote{}, NewSourceError(g.Name(), metal,
			fmt.Errorf("%w: missing or non-numeric change field", ErrUpstreamMalformed))
	}

	return Quote{
		Metal:         metal,
		Price:         price.Float(),
		ChangePercent: change.Float(),
	}, nil
}
