package bgremove

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"cardflow/internal/services"
)

const maxResponseBytes = 32 << 20

// Config captures the background-removal service connection.
type Config struct {
	URL            string
	APIKey         string
	TimeoutSeconds int
}

// Client removes image backgrounds through a remove.bg compatible API.
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

// NewClient constructs a client. Without a URL the client passes images
// through unchanged.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			URL:            strings.TrimSpace(cfg.URL),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether a service URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.URL != ""
}

// Remove uploads image and returns the foreground image.
func (c *Client) Remove(ctx context.Context, image []byte) ([]byte, error) {
	if !c.Configured() {
		return image, nil
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image_file", "card.jpg")
	if err != nil {
		return nil, fmt.Errorf("bgremove: build form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("bgremove: write form: %w", err)
	}
	if err := writer.WriteField("size", "auto"); err != nil {
		return nil, fmt.Errorf("bgremove: write form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("bgremove: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, &body)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "bgremove", "build request", "invalid background removal URL", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "bgremove", "remove", "background removal request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "bgremove", "read response", "background removal response truncated", err)
	}
	if resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrExternalTool, "bgremove", "remove",
			fmt.Sprintf("background removal returned HTTP %d", resp.StatusCode), nil)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "bgremove", "remove", "background removal returned an empty image", nil)
	}
	return data, nil
}
