package vision_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cardflow/internal/ocr/vision"
	"cardflow/internal/services"
)

func TestExtractReturnsStubWhenUnconfigured(t *testing.T) {
	client := vision.NewClient(vision.Config{})
	result, err := client.Extract(context.Background(), []byte("img"), "1")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !result.Stub || result.Text != vision.StubText {
		t.Fatalf("unexpected stub result: %#v", result)
	}
}

func TestExtractPostsBase64AndParsesResults(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq struct {
		Images []struct {
			ID     string `json:"id"`
			Base64 string `json:"base64"`
		} `json:"images"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [{"id": "asset-7", "text": "1989 Upper Deck\nKen Griffey Jr.", "confidence": 0.9, "tokens": []}],
			"combined_text": "[asset-7]\n1989 Upper Deck\nKen Griffey Jr."
		}`))
	}))
	defer server.Close()

	client := vision.NewClient(vision.Config{URL: server.URL, Token: "secret"})
	result, err := client.Extract(context.Background(), []byte("jpeg-bytes"), "asset-7")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if gotPath != "/ocr" || gotAuth != "Bearer secret" {
		t.Fatalf("unexpected request path=%q auth=%q", gotPath, gotAuth)
	}
	if len(gotReq.Images) != 1 || gotReq.Images[0].ID != "asset-7" {
		t.Fatalf("unexpected request body: %#v", gotReq)
	}
	if decoded, _ := base64.StdEncoding.DecodeString(gotReq.Images[0].Base64); string(decoded) != "jpeg-bytes" {
		t.Fatalf("image not base64 encoded: %q", gotReq.Images[0].Base64)
	}
	if result.Text != "1989 Upper Deck\nKen Griffey Jr." {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if result.Confidence != 0.9 || result.Raw == "" || result.Stub {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestExtractClassifiesHTTPFailures(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
		marker    error
	}{
		{http.StatusServiceUnavailable, true, services.ErrExternalTool},
		{http.StatusTooManyRequests, true, services.ErrExternalTool},
		{http.StatusForbidden, false, services.ErrConfiguration},
		{http.StatusBadRequest, false, services.ErrValidation},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		client := vision.NewClient(vision.Config{URL: server.URL})
		_, err := client.Extract(context.Background(), []byte("img"), "1")
		server.Close()
		if !errors.Is(err, tc.marker) {
			t.Fatalf("status %d: error %v, want %v", tc.status, err, tc.marker)
		}
		if services.Retryable(err) != tc.retryable {
			t.Fatalf("status %d: retryable = %v", tc.status, services.Retryable(err))
		}
	}
}
