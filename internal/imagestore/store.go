package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cardflow/internal/config"
	"cardflow/internal/services"
)

const s3Scheme = "s3://"

// ObjectAPI is the subset of the S3 client the store uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store loads card images by reference and saves derived images. References
// are local paths (relative ones resolve under paths.image_dir), file://
// URLs, or s3://bucket/key.
type Store struct {
	imageDir string
	thumbDir string
	bucket   string
	prefix   string
	images   config.Images

	once   sync.Once
	client ObjectAPI
	err    error
}

// Option customizes a Store.
type Option func(*Store)

// WithObjectAPI injects the S3 client (used in tests).
func WithObjectAPI(api ObjectAPI) Option {
	return func(s *Store) {
		s.client = api
		s.once.Do(func() {})
	}
}

// New builds a Store from configuration. The S3 client is created on first use.
func New(cfg *config.Config, opts ...Option) *Store {
	s := &Store{
		imageDir: cfg.Paths.ImageDir,
		thumbDir: cfg.Paths.ThumbnailDir,
		bucket:   cfg.Images.ThumbnailBucket,
		prefix:   cfg.Images.ThumbnailPrefix,
		images:   cfg.Images,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the image behind ref. A malformed reference is a validation
// error and a missing object is ErrNotFound; neither is worth retrying.
func (s *Store) Load(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, services.Wrap(services.ErrValidation, "imagestore", "load", "image reference is empty", nil)
	}
	if strings.HasPrefix(ref, s3Scheme) {
		bucket, key, err := ParseS3Ref(ref)
		if err != nil {
			return nil, err
		}
		return s.loadObject(ctx, bucket, key)
	}
	path, err := s.localPath(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "imagestore", "load", fmt.Sprintf("image %s not found", path), err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "imagestore", "load", "read image failed", err)
	}
	return data, nil
}

// Save stores data under key and returns its reference: an s3:// reference
// when a thumbnail bucket is configured, otherwise a path under the
// thumbnail directory.
func (s *Store) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", services.Wrap(services.ErrValidation, "imagestore", "save", "object key is empty", nil)
	}
	if s.bucket != "" {
		objectKey := key
		if s.prefix != "" {
			objectKey = s.prefix + "/" + key
		}
		client, err := s.objectAPI()
		if err != nil {
			return "", err
		}
		_, err = client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(objectKey),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "imagestore", "save", "upload to s3 failed", err)
		}
		return s3Scheme + s.bucket + "/" + objectKey, nil
	}

	path := filepath.Join(s.thumbDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write thumbnail: %w", err)
	}
	return path, nil
}

// ParseS3Ref splits s3://bucket/key. Both parts are required.
func ParseS3Ref(ref string) (string, string, error) {
	rest := strings.TrimPrefix(ref, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || strings.Trim(key, "/") == "" {
		return "", "", services.Wrap(services.ErrValidation, "imagestore", "parse reference",
			fmt.Sprintf("malformed s3 image reference %q", ref), nil)
	}
	return bucket, key, nil
}

func (s *Store) localPath(ref string) (string, error) {
	if strings.HasPrefix(ref, "file://") {
		ref = strings.TrimPrefix(ref, "file://")
	} else if i := strings.Index(ref, "://"); i > 0 {
		return "", services.Wrap(services.ErrValidation, "imagestore", "parse reference",
			fmt.Sprintf("unsupported image reference scheme %q", ref[:i]), nil)
	}
	if ref == "" {
		return "", services.Wrap(services.ErrValidation, "imagestore", "parse reference", "image path is empty", nil)
	}
	if !strings.HasPrefix(ref, "~") && !filepath.IsAbs(ref) && s.imageDir != "" {
		ref = filepath.Join(s.imageDir, ref)
	}
	expanded, err := config.ExpandPath(ref)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "imagestore", "parse reference", "image path cannot be expanded", err)
	}
	return expanded, nil
}

func (s *Store) loadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	client, err := s.objectAPI()
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, services.Wrap(services.ErrNotFound, "imagestore", "load",
				fmt.Sprintf("object s3://%s/%s not found", bucket, key), err)
		}
		return nil, services.Wrap(services.ErrTransient, "imagestore", "load", "s3 download failed", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "imagestore", "load", "read s3 object failed", err)
	}
	return data, nil
}

func (s *Store) objectAPI() (ObjectAPI, error) {
	s.once.Do(func() {
		s.client, s.err = newS3Client(s.images)
	})
	return s.client, s.err
}

func newS3Client(images config.Images) (ObjectAPI, error) {
	region := images.S3Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if images.S3AccessKey != "" && images.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(images.S3AccessKey, images.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "imagestore", "s3 client", "failed to load AWS config", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if images.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(images.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
