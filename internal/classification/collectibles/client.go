package collectibles

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"cardflow/internal/services"
)

const (
	defaultBaseURL     = "https://api.ximilar.com"
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 8 << 20
	analyzePath        = "/collectibles/v2/analyze"
	textSearchLimit    = 5
	slabObjectName     = "slab label"
)

// ErrUnavailable marks a 4xx response: the capability is not available for
// this request and the caller should move on without retrying.
var ErrUnavailable = errors.New("capability unavailable")

// Config captures the provider connection and breaker policy.
type Config struct {
	BaseURL         string
	APIKey          string
	TimeoutSeconds  int
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Client calls the collectibles recognition API. Each endpoint path runs
// behind its own circuit breaker.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
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

// NewClient constructs a client. Without an API key it is unconfigured.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// BreakerState reports the breaker state for an endpoint path.
func (c *Client) BreakerState(path string) gobreaker.State {
	return c.breaker(path).State()
}

type record struct {
	Base64  string `json:"_base64"`
	OCRText string `json:"ocr_text,omitempty"`
}

type requestBody struct {
	Records   []record `json:"records"`
	SlabGrade bool     `json:"slab_grade,omitempty"`
}

type tagEntry struct {
	Name string  `json:"name"`
	Prob float64 `json:"prob"`
}

type identificationBody struct {
	BestMatch    *Match  `json:"best_match"`
	Alternatives []Match `json:"alternatives"`
}

type objectBody struct {
	Name           string                `json:"name"`
	Tags           map[string][]tagEntry `json:"_tags"`
	TagsSimple     []string              `json:"_tags_simple"`
	Identification *identificationBody   `json:"_identification"`
}

type recordBody struct {
	Objects []objectBody `json:"_objects"`
}

type responseBody struct {
	Records []recordBody `json:"records"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Results []Match `json:"results"`
}

// Analyze detects the card category and whether the card sits in a graded
// slab.
func (c *Client) Analyze(ctx context.Context, image []byte) (Analysis, error) {
	var resp responseBody
	if err := c.post(ctx, analyzePath, requestBody{Records: []record{{Base64: encode(image)}}}, &resp); err != nil {
		return Analysis{Category: CategoryUnknown}, err
	}
	var (
		tags []string
		slab bool
	)
	for _, rec := range resp.Records {
		for _, obj := range rec.Objects {
			if strings.EqualFold(strings.TrimSpace(obj.Name), slabObjectName) {
				slab = true
			}
			tags = append(tags, obj.TagsSimple...)
			for _, entries := range obj.Tags {
				for _, entry := range entries {
					tags = append(tags, entry.Name)
				}
			}
		}
	}
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), "slab") {
			slab = true
		}
	}
	return Analysis{Category: categoryFromTags(tags), Slab: slab, Tags: tags}, nil
}

// Identify submits image to one identification endpoint.
func (c *Client) Identify(ctx context.Context, ep Endpoint, image []byte, hints Hints) (Identification, error) {
	body := requestBody{
		Records:   []record{{Base64: encode(image), OCRText: strings.TrimSpace(hints.OCRText)}},
		SlabGrade: hints.SlabGrade,
	}
	var resp responseBody
	if err := c.post(ctx, ep.Path, body, &resp); err != nil {
		return Identification{Endpoint: ep.Name}, err
	}
	result := Identification{Endpoint: ep.Name}
	for _, rec := range resp.Records {
		for _, obj := range rec.Objects {
			if obj.Identification == nil {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(obj.Name), slabObjectName) {
				if obj.Identification.BestMatch != nil && result.SlabLabel == nil {
					result.SlabLabel = obj.Identification.BestMatch
				}
				continue
			}
			if result.Best == nil && obj.Identification.BestMatch != nil {
				result.Best = obj.Identification.BestMatch
			}
			result.Alternatives = append(result.Alternatives, obj.Identification.Alternatives...)
		}
	}
	return result, nil
}

// TextSearch looks text up in the category's catalogue.
func (c *Client) TextSearch(ctx context.Context, category Category, text string) ([]Match, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var resp searchResponse
	ep := SearchEndpoint(category)
	if err := c.post(ctx, ep.SearchPath, searchRequest{Query: text, Limit: textSearchLimit}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	if !c.Configured() {
		return services.Wrap(services.ErrConfiguration, "collectibles", path, "collectibles API key not configured", nil)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("collectibles %s: encode request: %w", path, err)
	}
	_, err = c.breaker(path).Execute(func() (any, error) {
		return nil, c.do(ctx, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return services.Wrap(services.ErrTransient, "collectibles", path, "circuit open", err)
	}
	return err
}

func (c *Client) do(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "collectibles", path, "invalid collectibles base URL", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "collectibles", path, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return services.Wrap(services.ErrTransient, "collectibles", path, "response truncated", err)
	}
	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return services.Wrap(services.ErrUnsupported, "collectibles", path,
			fmt.Sprintf("HTTP %d", resp.StatusCode), ErrUnavailable)
	case resp.StatusCode >= 300:
		return services.Wrap(services.ErrExternalTool, "collectibles", path,
			fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return services.Wrap(services.ErrExternalTool, "collectibles", path, "invalid JSON response", err)
	}
	return nil
}

// breaker returns the endpoint's breaker. Capability rejections count as
// successes so a 4xx never opens the circuit.
func (c *Client) breaker(path string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[path]; ok {
		return cb
	}
	failures := uint32(c.cfg.BreakerFailures)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        path,
		MaxRequests: 1,
		Timeout:     c.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnavailable) || errors.Is(err, context.Canceled)
		},
	})
	c.breakers[path] = cb
	return cb
}

func encode(image []byte) string {
	return base64.StdEncoding.EncodeToString(image)
}
