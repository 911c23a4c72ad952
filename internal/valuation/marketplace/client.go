package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cardflow/internal/services"
)

const (
	defaultBaseURL       = "https://api.ebay.com/buy/browse/v1"
	defaultMarketplaceID = "EBAY_US"
	defaultHTTPTimeout   = 15 * time.Second
	maxResponseBytes     = 4 << 20
)

// Config captures the marketplace search connection.
type Config struct {
	BaseURL        string
	Token          string
	MarketplaceID  string
	TimeoutSeconds int
}

// Item is one priced listing.
type Item struct {
	Title    string
	Price    float64
	Currency string
	URL      string
}

// Client searches marketplace listings through the eBay Browse API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client. Without a token it is unconfigured.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	if strings.TrimSpace(cfg.MarketplaceID) == "" {
		cfg.MarketplaceID = defaultMarketplaceID
	}
	client := &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether a token is set.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.Token != ""
}

type searchResponse struct {
	ItemSummaries []struct {
		Title string `json:"title"`
		Price *struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"price"`
		ItemWebURL string `json:"itemWebUrl"`
	} `json:"itemSummaries"`
}

// Search returns up to limit listings for query sorted by price. Listings
// without a parseable price are returned with a zero price.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if !c.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "marketplace", "search", "marketplace token not configured", nil)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "price")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/item_summary/search?"+params.Encode(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "marketplace", "build request", "invalid marketplace base URL", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.cfg.MarketplaceID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "marketplace", "search", "marketplace request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "marketplace", "read response", "marketplace response truncated", err)
	}
	if resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrExternalTool, "marketplace", "search",
			fmt.Sprintf("marketplace returned HTTP %d", resp.StatusCode), nil)
	}
	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "marketplace", "decode response", "marketplace returned invalid JSON", err)
	}

	items := make([]Item, 0, len(parsed.ItemSummaries))
	for _, summary := range parsed.ItemSummaries {
		item := Item{Title: summary.Title, URL: summary.ItemWebURL}
		if summary.Price != nil {
			item.Currency = strings.TrimSpace(summary.Price.Currency)
			if value, err := strconv.ParseFloat(strings.TrimSpace(summary.Price.Value), 64); err == nil {
				item.Price = value
			}
		}
		items = append(items, item)
	}
	return items, nil
}
