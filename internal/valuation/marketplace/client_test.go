package marketplace_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cardflow/internal/services"
	"cardflow/internal/valuation/marketplace"
)

func TestSearchSendsQueryAndParsesPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/item_summary/search" || q.Get("q") != "griffey rookie" || q.Get("limit") != "10" || q.Get("sort") != "price" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		if r.Header.Get("Authorization") != "Bearer tok" || r.Header.Get("X-EBAY-C-MARKETPLACE-ID") != "EBAY_US" {
			t.Errorf("unexpected headers %v", r.Header)
		}
		_, _ = w.Write([]byte(`{"itemSummaries":[
			{"title":"a","price":{"value":"12.50","currency":"USD"},"itemWebUrl":"https://ebay.test/a"},
			{"title":"b","price":{"value":"n/a","currency":"USD"}},
			{"title":"c"}
		]}`))
	}))
	defer server.Close()

	client := marketplace.NewClient(marketplace.Config{BaseURL: server.URL, Token: "tok"})
	items, err := client.Search(context.Background(), "griffey rookie", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 3 || items[0].Price != 12.5 || items[0].Currency != "USD" || items[0].URL != "https://ebay.test/a" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if items[1].Price != 0 || items[2].Price != 0 {
		t.Fatalf("unpriced items should report zero: %+v", items)
	}
}

func TestSearchClassifiesFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := marketplace.NewClient(marketplace.Config{BaseURL: server.URL, Token: "tok"})
	if _, err := client.Search(context.Background(), "q", 10); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	unconfigured := marketplace.NewClient(marketplace.Config{})
	if _, err := unconfigured.Search(context.Background(), "q", 10); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
