package imagestore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cardflow/internal/imagestore"
	"cardflow/internal/services"
	"cardflow/internal/testsupport"
)

type fakeObjects struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestLoadLocalPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := testsupport.WriteImage(t, cfg.Paths.ImageDir, "front.jpg", []byte("jpeg"))
	store := imagestore.New(cfg)
	ctx := context.Background()

	for _, ref := range []string{path, "file://" + path, "front.jpg"} {
		data, err := store.Load(ctx, ref)
		if err != nil {
			t.Fatalf("Load(%q) failed: %v", ref, err)
		}
		if string(data) != "jpeg" {
			t.Fatalf("Load(%q) = %q", ref, data)
		}
	}
}

func TestLoadClassifiesMissingAndMalformedRefs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := imagestore.New(cfg, imagestore.WithObjectAPI(newFakeObjects()))
	ctx := context.Background()

	cases := []struct {
		ref    string
		marker error
	}{
		{"", services.ErrValidation},
		{"s3://bucket-only", services.ErrValidation},
		{"s3:///key.jpg", services.ErrValidation},
		{"ftp://host/card.jpg", services.ErrValidation},
		{filepath.Join(cfg.Paths.ImageDir, "missing.jpg"), services.ErrNotFound},
		{"s3://cards/missing.jpg", services.ErrNotFound},
	}
	for _, tc := range cases {
		_, err := store.Load(ctx, tc.ref)
		if !errors.Is(err, tc.marker) {
			t.Fatalf("Load(%q) error = %v, want %v", tc.ref, err, tc.marker)
		}
		if services.Retryable(err) {
			t.Fatalf("Load(%q) error should not be retryable", tc.ref)
		}
	}
}

func TestSaveAndLoadThroughS3(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Images.ThumbnailBucket = "cards"
	cfg.Images.ThumbnailPrefix = "thumbs"
	fake := newFakeObjects()
	store := imagestore.New(cfg, imagestore.WithObjectAPI(fake))
	ctx := context.Background()

	ref, err := store.Save(ctx, "batch-1/asset-2.jpg", []byte("thumb"), "image/jpeg")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ref != "s3://cards/thumbs/batch-1/asset-2.jpg" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if fake.types["cards/thumbs/batch-1/asset-2.jpg"] != "image/jpeg" {
		t.Fatalf("content type not recorded: %#v", fake.types)
	}
	data, err := store.Load(ctx, ref)
	if err != nil || string(data) != "thumb" {
		t.Fatalf("Load = %q, %v", data, err)
	}
}

func TestSaveWritesLocalThumbnail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := imagestore.New(cfg)

	ref, err := store.Save(context.Background(), "batch-1/asset-2.jpg", []byte("thumb"), "image/jpeg")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	want := filepath.Join(cfg.Paths.ThumbnailDir, "batch-1", "asset-2.jpg")
	if ref != want {
		t.Fatalf("ref = %q, want %q", ref, want)
	}
	if data, err := os.ReadFile(want); err != nil || string(data) != "thumb" {
		t.Fatalf("thumbnail not written: %q, %v", data, err)
	}
}
