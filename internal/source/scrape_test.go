package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"metaltracker/internal/model"
)

const scrapeFixture = `<!DOCTYPE html>
<html><body>
<div class="commodities">
  <div class="gold-silver">
    <ul>
      <li>Gold Hallmark - tola</li>
      <li>Nrs. 150,000</li>
      <li>Silver - tola</li>
      <li>Nrs. 1,825.50</li>
    </ul>
  </div>
</div>
</body></html>`

func TestScraper_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Mozilla") {
			t.Errorf("User-Agent = %q, want browser-like", ua)
		}
		if r.Header.Get("Accept-Language") == "" {
			t.Error("Accept-Language header not set")
		}
		fmt.Fprint(w, scrapeFixture)
	}))
	defer srv.Close()

	s := NewScraper(srv.URL, 2*time.Second)
	qs, err := s.Fetch(context.Background(), model.Tracked, "NPR")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if qs.Currency != "NPR" || qs.Unit != model.Tola {
		t.Errorf("currency/unit = %s/%s, want NPR/tola", qs.Currency, qs.Unit)
	}
	if got := qs.Quotes[model.Gold].Price; got != 150000 {
		t.Errorf("gold price = %v, want 150000", got)
	}
	if got := qs.Quotes[model.Silver].Price; got != 1825.50 {
		t.Errorf("silver price = %v, want 1825.50", got)
	}
	if len(qs.Missing) != 0 {
		t.Errorf("missing = %v, want none", qs.Missing)
	}
}

func TestScraper_MissingLabelIsSoftFailure(t *testing.T) {
	// Page restructured: the gold label is gone. Not an error; gold comes
	// back zero-priced and flagged missing.
	fixture := strings.ReplaceAll(scrapeFixture, "Gold Hallmark - tola", "Fine Gold 9999")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fixture)
	}))
	defer srv.Close()

	qs, err := NewScraper(srv.URL, 2*time.Second).Fetch(context.Background(), model.Tracked, "NPR")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := qs.Quotes[model.Gold].Price; got != 0 {
		t.Errorf("gold price = %v, want 0", got)
	}
	if !qs.IsMissing(model.Gold) {
		t.Error("gold should be flagged missing")
	}
	if qs.IsMissing(model.Silver) {
		t.Error("silver should not be flagged missing")
	}
}

func TestScraper_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>site under maintenance</p></body></html>`)
	}))
	defer srv.Close()

	qs, err := NewScraper(srv.URL, 2*time.Second).Fetch(context.Background(), model.Tracked, "NPR")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(qs.Missing) != 2 {
		t.Errorf("missing = %v, want both metals", qs.Missing)
	}
}

func TestScraper_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewScraper(url, time.Second).Fetch(context.Background(), model.Tracked, "NPR")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("got %v, want ErrUpstreamUnavailable", err)
	}
}

func TestScraper_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewScraper(srv.URL, time.Second).Fetch(context.Background(), model.Tracked, "NPR")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("got %v, want ErrUpstreamUnavailable", err)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"Nrs. 150,000", 150000},
		{"Nrs.1,825.50", 1825.50},
		{"Rs. 99", 99},
		{"NPR 2,500", 2500},
		{"150000", 150000},
		{"", 0},
		{"N/A", 0},
		{"Nrs. -5", 0},
	}
	for _, tc := range cases {
		if got := parseAmount(tc.in); got != tc.want {
			t.Errorf("parseAmount(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
