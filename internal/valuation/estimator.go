package valuation

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"cardflow/internal/cache"
	"cardflow/internal/comps"
	"cardflow/internal/logging"
	"cardflow/internal/textutil"
	"cardflow/internal/valuation/marketplace"
)

// Valuation sources.
const (
	SourceMarketplace = "ebay_browse"
	SourceStub        = "valuation_stub"
	StubCurrency      = "USD"

	defaultResultLimit   = 10
	defaultQueryMaxChars = 80
	cacheKeyPrefix       = "valuation:"
)

// Searcher finds priced marketplace listings.
type Searcher interface {
	Configured() bool
	Search(ctx context.Context, query string, limit int) ([]marketplace.Item, error)
}

// Result is a valuation estimate.
type Result struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Source      string  `json:"source"`
	Link        string  `json:"link,omitempty"`
	Query       string  `json:"query"`
	Comparables int     `json:"comparables"`
	Cached      bool    `json:"-"`
}

// Stub returns the zero-value estimate used whenever no price is available.
func Stub(query string) Result {
	return Result{Currency: StubCurrency, Source: SourceStub, Query: query}
}

// Estimator turns a search query into a median price.
type Estimator struct {
	searcher Searcher
	cache    cache.Store
	cacheTTL time.Duration
	limit    int
	maxChars int
	logger   *slog.Logger
}

// EstimatorOption customizes the estimator.
type EstimatorOption func(*Estimator)

// WithCache stores results under their query for ttl.
func WithCache(store cache.Store, ttl time.Duration) EstimatorOption {
	return func(e *Estimator) {
		e.cache = store
		e.cacheTTL = ttl
	}
}

// WithLimits sets the search result limit and query length.
func WithLimits(resultLimit, queryMaxChars int) EstimatorOption {
	return func(e *Estimator) {
		if resultLimit > 0 {
			e.limit = resultLimit
		}
		if queryMaxChars > 0 {
			e.maxChars = queryMaxChars
		}
	}
}

// NewEstimator constructs an estimator over searcher.
func NewEstimator(searcher Searcher, logger *slog.Logger, opts ...EstimatorOption) *Estimator {
	e := &Estimator{
		searcher: searcher,
		limit:    defaultResultLimit,
		maxChars: defaultQueryMaxChars,
		logger:   logging.NewComponentLogger(logger, "valuation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Configured reports whether a marketplace backs the estimator.
func (e *Estimator) Configured() bool {
	return e.searcher != nil && e.searcher.Configured()
}

// Query builds the search phrase: the first OCR line truncated to the
// configured length, else the image file name.
func (e *Estimator) Query(ocrText, fileName string) string {
	line := comps.FirstLine(ocrText)
	if line == "" {
		return strings.TrimSpace(fileName)
	}
	runes := []rune(line)
	if len(runes) > e.maxChars {
		line = strings.TrimSpace(string(runes[:e.maxChars]))
	}
	return line
}

// Estimate values query. It never fails: provider errors and empty results
// yield the stub.
func (e *Estimator) Estimate(ctx context.Context, query string) Result {
	logger := logging.WithContext(ctx, e.logger)
	query = strings.TrimSpace(query)
	if query == "" || !e.Configured() {
		return Stub(query)
	}

	key := cacheKeyPrefix + textutil.Fold(query)
	if cached, ok := e.lookup(ctx, logger, key); ok {
		return cached
	}

	items, err := e.searcher.Search(ctx, query, e.limit)
	if err != nil {
		logging.WarnWithContext(logger, "marketplace search failed; using stub valuation", "valuation_degraded",
			logging.Error(err),
			logging.String("query", query),
			logging.String(logging.FieldProvider, SourceMarketplace),
			logging.String(logging.FieldImpact, "card valued at zero"),
		)
		return Stub(query)
	}
	result := FromItems(query, items)
	if result.Source != SourceStub {
		e.store(ctx, logger, key, result)
	}
	return result
}

func (e *Estimator) lookup(ctx context.Context, logger *slog.Logger, key string) (Result, bool) {
	if e.cache == nil {
		return Result{}, false
	}
	raw, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		logger.Debug("valuation cache read failed", logging.Error(err))
		return Result{}, false
	}
	if !ok {
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, false
	}
	result.Cached = true
	return result, true
}

func (e *Estimator) store(ctx context.Context, logger *slog.Logger, key string, result Result) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, e.cacheTTL); err != nil {
		logger.Debug("valuation cache write failed", logging.Error(err))
	}
}

// FromItems computes the estimate from listings: the median of positive,
// finite prices with the currency of the first priced item. The link is the
// first listing returned by the search, priced or not.
func FromItems(query string, items []marketplace.Item) Result {
	var (
		prices []float64
		first  *marketplace.Item
	)
	for i := range items {
		price := items[i].Price
		if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			continue
		}
		if first == nil {
			first = &items[i]
		}
		prices = append(prices, price)
	}
	if len(prices) == 0 {
		return Stub(query)
	}
	currency := strings.TrimSpace(first.Currency)
	if currency == "" {
		currency = StubCurrency
	}
	return Result{
		Amount:      Median(prices),
		Currency:    currency,
		Source:      SourceMarketplace,
		Link:        items[0].URL,
		Query:       query,
		Comparables: len(prices),
	}
}

// Median returns the middle value, or the mean of the two middle values for
// an even count. Empty input yields 0.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
