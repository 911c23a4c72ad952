package imageprep_test

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	"testing"

	"cardflow/internal/imageprep"
	"cardflow/internal/services"
	"cardflow/internal/testsupport"
)

func decodeBounds(t *testing.T, data []byte) image.Rectangle {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return image.Rect(0, 0, cfg.Width, cfg.Height)
}

func TestFitReturnsSmallPayloadUnchanged(t *testing.T) {
	data := testsupport.NoisyJPEG(t, 64, 64, 90)
	out, err := imageprep.New(nil).Fit(data, len(data))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if &out[0] != &data[0] || len(out) != len(data) {
		t.Fatal("expected the original payload to be returned unchanged")
	}
}

func TestFitReencodesBeforeResizing(t *testing.T) {
	data := testsupport.NoisyJPEG(t, 800, 800, 100)
	out, err := imageprep.New(nil).Fit(data, len(data)-1)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if len(out) >= len(data) {
		t.Fatalf("output %d bytes not below ceiling %d", len(out), len(data)-1)
	}
	if b := decodeBounds(t, out); b.Dx() != 800 || b.Dy() != 800 {
		t.Fatalf("first rung should keep dimensions, got %v", b)
	}
}

func TestFitStopsAtFirstRungWithinCeiling(t *testing.T) {
	data := testsupport.NoisyJPEG(t, 800, 800, 100)
	ladder := []imageprep.Rung{{MaxDim: 300, Quality: 90}, {MaxDim: 100, Quality: 90}}
	out, err := imageprep.NewWithLadder(ladder, nil).Fit(data, len(data)/2)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if len(out) > len(data)/2 {
		t.Fatalf("output %d bytes over ceiling", len(out))
	}
	if b := decodeBounds(t, out); b.Dx() != 300 {
		t.Fatalf("expected the 300px rung, got %v", b)
	}
}

func TestFitReportsTooLarge(t *testing.T) {
	data := testsupport.NoisyJPEG(t, 400, 400, 100)
	out, err := imageprep.New(nil).Fit(data, 512)
	if out != nil {
		t.Fatalf("expected no payload, got %d bytes", len(out))
	}
	if !errors.Is(err, imageprep.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("too-large should be retryable")
	}
}

func TestFitUndecodableImageIsTooLarge(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 4096)
	if _, err := imageprep.New(nil).Fit(data, 1024); !errors.Is(err, imageprep.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestThumbnailFitsBox(t *testing.T) {
	data := testsupport.NoisyJPEG(t, 600, 300, 90)
	thumb, err := imageprep.Thumbnail(data, 200)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if b := decodeBounds(t, thumb); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("unexpected thumbnail bounds %v", b)
	}
}
