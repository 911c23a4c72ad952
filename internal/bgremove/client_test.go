package bgremove_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cardflow/internal/bgremove"
	"cardflow/internal/services"
)

func TestRemovePassesThroughWhenUnconfigured(t *testing.T) {
	client := bgremove.NewClient(bgremove.Config{})
	input := []byte("jpeg")
	out, err := client.Remove(context.Background(), input)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("expected passthrough, got %q", out)
	}
}

func TestRemoveUploadsMultipart(t *testing.T) {
	var gotKey string
	var gotImage []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		file, _, err := r.FormFile("image_file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotImage, _ = io.ReadAll(file)
		_, _ = w.Write([]byte("png-out"))
	}))
	defer server.Close()

	client := bgremove.NewClient(bgremove.Config{URL: server.URL, APIKey: "key"})
	out, err := client.Remove(context.Background(), []byte("jpeg-in"))
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if gotKey != "key" || string(gotImage) != "jpeg-in" || string(out) != "png-out" {
		t.Fatalf("unexpected exchange key=%q image=%q out=%q", gotKey, gotImage, out)
	}
}

func TestRemoveReportsServiceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := bgremove.NewClient(bgremove.Config{URL: server.URL})
	if _, err := client.Remove(context.Background(), []byte("jpeg")); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
