package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"metaltracker/internal/model"
)

// Default target: a Nepali bullion listing page quoting per-tola NPR prices
// in a "gold-silver" block of alternating label/value list items.
const defaultScrapeURL = "https://www.sharesansar.com/bullion"

// Browser-like headers; the listing sites block obvious non-browser clients.
const (
	scrapeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:112.0) Gecko/20100101 Firefox/112.0"
	scrapeAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	scrapeAcceptLng = "en-US,en;q=0.5"
)

// scrape label substrings, matched case-insensitively against list items.
var scrapeLabels = map[model.Metal]string{
	model.Gold:   "gold hallmark",
	model.Silver: "silver",
}

// Scraper fetches per-tola NPR prices by parsing a fixed HTML page.
//
// A page whose markup drifted and no longer yields a value for a metal is a
// soft failure: the quote comes back zero-priced with the metal listed on the
// Missing set, so callers can alert instead of persisting a zero. Only
// transport-level failure is a hard error.
type Scraper struct {
	url    string
	client *http.Client
}

// NewScraper creates a scrape source for the given page URL. An empty URL
// selects the default listing page.
func NewScraper(url string, timeout time.Duration) *Scraper {
	if url == "" {
		url = defaultScrapeURL
	}
	return &Scraper{
		url:    url,
		client: SharedHTTPClient(timeout),
	}
}

func (s *Scraper) Name() string {
	return "scrape"
}

// Fetch requests the listing page once and extracts every requested metal.
// The currency argument is ignored: the page quotes NPR per tola only.
func (s *Scraper) Fetch(ctx context.Context, metals []model.Metal, currency string) (*QuoteSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("scrape: build request: %w", err)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	req.Header.Set("Accept", scrapeAccept)
	req.Header.Set("Accept-Language", scrapeAcceptLng)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape: %w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape: %w: HTTP %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scrape: %w: %v", ErrUpstreamUnavailable, err)
	}

	return s.extract(doc, metals), nil
}

// extract walks the gold-silver container's list items linearly: a labeled
// item is followed by its value item.
func (s *Scraper) extract(doc *goquery.Document, metals []model.Metal) *QuoteSet {
	qs := &QuoteSet{
		Currency: "NPR",
		Unit:     model.Tola,
		Quotes:   make(map[model.Metal]Quote, len(metals)),
	}

	container := doc.Find(".gold-silver")
	if container.Length() == 0 {
		container = doc.Find("#gold-silver")
	}

	var items []string
	container.Find("li").Each(func(_ int, sel *goquery.Selection) {
		items = append(items, strings.TrimSpace(sel.Text()))
	})

	for _, metal := range metals {
		price, ok := findLabeledValue(items, scrapeLabels[metal])
		if !ok {
			log.Printf("[scrape] no %s price found on %s (markup changed?)", metal, s.url)
			qs.Missing = append(qs.Missing, metal)
		}
		qs.Quotes[metal] = Quote{Metal: metal, Price: price}
	}

	return qs
}

// findLabeledValue scans items for the label and parses the item that follows
// it. Returns (0, false) when the label or a parseable value is absent.
func findLabeledValue(items []string, label string) (float64, bool) {
	for i, item := range items {
		if !strings.Contains(strings.ToLower(item), label) {
			continue
		}
		if i+1 >= len(items) {
			return 0, false
		}
		price := parseAmount(items[i+1])
		return price, price > 0
	}
	return 0, false
}

// parseAmount coerces a currency-prefixed, comma-grouped string such as
// "Nrs. 150,000" into its numeric value. Unparseable input yields 0.
func parseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"Nrs.", "Nrs", "Rs.", "Rs", "NPR"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
