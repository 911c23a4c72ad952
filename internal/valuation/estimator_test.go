package valuation_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"cardflow/internal/cache"
	"cardflow/internal/logging"
	"cardflow/internal/valuation"
	"cardflow/internal/valuation/marketplace"
)

type fakeSearcher struct {
	items []marketplace.Item
	err   error
	calls int
	limit int
}

func (f *fakeSearcher) Configured() bool { return true }

func (f *fakeSearcher) Search(_ context.Context, _ string, limit int) ([]marketplace.Item, error) {
	f.calls++
	f.limit = limit
	return f.items, f.err
}

func priced(values ...float64) []marketplace.Item {
	items := make([]marketplace.Item, 0, len(values))
	for _, v := range values {
		items = append(items, marketplace.Item{Price: v, Currency: "USD", URL: "https://ebay.test/item"})
	}
	return items
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"odd", []float64{300, 100, 200}, 200},
		{"even", []float64{100, 300}, 200},
		{"single", []float64{42}, 42},
		{"empty", nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := valuation.Median(tc.values); got != tc.want {
				t.Fatalf("Median(%v) = %v, want %v", tc.values, got, tc.want)
			}
		})
	}
}

func TestFromItemsDropsUnusablePrices(t *testing.T) {
	items := []marketplace.Item{
		{Price: 0, Currency: "EUR", URL: "https://ebay.test/free"},
		{Price: math.NaN()},
		{Price: 100, Currency: "GBP", URL: "https://ebay.test/first"},
		{Price: math.Inf(1)},
		{Price: -5},
		{Price: 300, Currency: "USD", URL: "https://ebay.test/second"},
	}
	got := valuation.FromItems("q", items)
	if got.Amount != 200 || got.Currency != "GBP" || got.Link != "https://ebay.test/free" || got.Comparables != 2 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.Source != valuation.SourceMarketplace {
		t.Fatalf("unexpected source %s", got.Source)
	}

	stub := valuation.FromItems("q", []marketplace.Item{{Price: 0}})
	if stub.Source != valuation.SourceStub || stub.Amount != 0 || stub.Currency != "USD" {
		t.Fatalf("expected stub, got %+v", stub)
	}
}

func TestEstimateFallsBackToStub(t *testing.T) {
	unconfigured := valuation.NewEstimator(nil, logging.NewNop())
	if got := unconfigured.Estimate(context.Background(), "griffey"); got.Source != valuation.SourceStub {
		t.Fatalf("expected stub when unconfigured, got %+v", got)
	}

	failing := valuation.NewEstimator(&fakeSearcher{err: errors.New("boom")}, logging.NewNop())
	if got := failing.Estimate(context.Background(), "griffey"); got.Source != valuation.SourceStub || got.Amount != 0 {
		t.Fatalf("expected stub on failure, got %+v", got)
	}

	empty := valuation.NewEstimator(&fakeSearcher{}, logging.NewNop())
	if got := empty.Estimate(context.Background(), "griffey"); got.Source != valuation.SourceStub {
		t.Fatalf("expected stub on empty results, got %+v", got)
	}
}

func TestEstimateUsesCache(t *testing.T) {
	searcher := &fakeSearcher{items: priced(100, 200, 300)}
	estimator := valuation.NewEstimator(searcher, logging.NewNop(),
		valuation.WithCache(cache.NewMemory(), 0),
		valuation.WithLimits(7, 0),
	)

	first := estimator.Estimate(context.Background(), "Ken Griffey Jr.")
	second := estimator.Estimate(context.Background(), "ken griffey jr.")
	if searcher.calls != 1 || searcher.limit != 7 {
		t.Fatalf("expected one search with limit 7, got %d calls limit %d", searcher.calls, searcher.limit)
	}
	if first.Amount != 200 || second.Amount != 200 || first.Cached || !second.Cached {
		t.Fatalf("unexpected results: %+v %+v", first, second)
	}
}

func TestQuery(t *testing.T) {
	estimator := valuation.NewEstimator(nil, logging.NewNop())
	long := strings.Repeat("a", 100)
	tests := []struct {
		name string
		ocr  string
		file string
		want string
	}{
		{"first line", "\n1989 Upper Deck\nKen Griffey Jr.", "card.jpg", "1989 Upper Deck"},
		{"truncated", long, "card.jpg", strings.Repeat("a", 80)},
		{"file name fallback", "  ", "card.jpg", "card.jpg"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := estimator.Query(tc.ocr, tc.file); got != tc.want {
				t.Fatalf("Query() = %q, want %q", got, tc.want)
			}
		})
	}
}
