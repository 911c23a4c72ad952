package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cardflow/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 8 << 20

	// StubText is the recognized text reported when no provider is configured.
	StubText = "vision_stub"
)

// Config captures the OCR service connection.
type Config struct {
	URL            string
	Token          string
	TimeoutSeconds int
}

// Client talks to the self-hosted OCR service.
type Client struct {
	cfg        Config
	endpoint   string
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

// NewClient constructs a vision client. An empty URL yields a client that
// always returns the stub result.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			URL:            strings.TrimSpace(cfg.URL),
			Token:          strings.TrimSpace(cfg.Token),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if base := strings.TrimRight(client.cfg.URL, "/"); base != "" {
		client.endpoint = base
		if !strings.HasSuffix(base, "/ocr") {
			client.endpoint = base + "/ocr"
		}
	}
	return client
}

// Configured reports whether a provider endpoint is set.
func (c *Client) Configured() bool {
	return c != nil && c.endpoint != ""
}

// Result is the outcome of one extraction.
type Result struct {
	Text       string
	Raw        string
	Confidence float64
	Stub       bool
}

type ocrImage struct {
	ID     string `json:"id,omitempty"`
	Base64 string `json:"base64"`
}

type ocrRequest struct {
	Images []ocrImage `json:"images"`
}

type ocrToken struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type ocrResult struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Confidence float64    `json:"confidence"`
	Tokens     []ocrToken `json:"tokens"`
}

type ocrResponse struct {
	Results      []ocrResult `json:"results"`
	CombinedText string      `json:"combined_text"`
}

// Extract submits image to the OCR service and returns the recognized text,
// the raw response body, and the mean confidence across results. Unconfigured
// clients return a deterministic stub.
func (c *Client) Extract(ctx context.Context, image []byte, imageID string) (Result, error) {
	if !c.Configured() {
		return Result{Text: StubText, Raw: `{"stub":true}`, Stub: true}, nil
	}
	if len(image) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "vision", "extract", "image payload is empty", nil)
	}

	body, err := json.Marshal(ocrRequest{Images: []ocrImage{{
		ID:     imageID,
		Base64: base64.StdEncoding.EncodeToString(image),
	}}})
	if err != nil {
		return Result{}, fmt.Errorf("vision extract: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "vision", "build request", "invalid OCR service URL", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "vision", "extract", "OCR service request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "vision", "read response", "OCR service response truncated", err)
	}
	if err := statusError(resp.StatusCode, raw); err != nil {
		return Result{}, err
	}

	var parsed ocrResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "vision", "decode response", "OCR service returned invalid JSON", err)
	}
	return Result{
		Text:       joinText(parsed),
		Raw:        string(raw),
		Confidence: meanConfidence(parsed.Results),
	}, nil
}

func statusError(status int, body []byte) error {
	if status < 300 {
		return nil
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	message := fmt.Sprintf("OCR service returned HTTP %d: %s", status, snippet)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "vision", "extract", message, nil)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return services.Wrap(services.ErrValidation, "vision", "extract", message, nil)
	default:
		return services.Wrap(services.ErrExternalTool, "vision", "extract", message, nil)
	}
}

// joinText prefers per-image texts; combined_text carries "[id]" headers.
func joinText(resp ocrResponse) string {
	parts := make([]string, 0, len(resp.Results))
	for _, result := range resp.Results {
		if text := strings.TrimSpace(result.Text); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(resp.CombinedText)
	}
	return strings.Join(parts, "\n\n")
}

func meanConfidence(results []ocrResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, result := range results {
		sum += result.Confidence
	}
	return sum / float64(len(results))
}
