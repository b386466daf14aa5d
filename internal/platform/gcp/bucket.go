package gcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type BucketCategory string

const (
	// Uploaded originals and every rendered image version.
	BucketCategoryRoomImage BucketCategory = "room_image"
	// Marker overlays and placement brush overlays sent to the image model.
	BucketCategoryOverlay BucketCategory = "overlay"
	// User supplied flooring reference textures.
	BucketCategoryReference BucketCategory = "reference"
)

type BucketService interface {
	UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader) error
	DeleteFile(ctx context.Context, category BucketCategory, key string) error
	DownloadFile(ctx context.Context, category BucketCategory, key string) (io.ReadCloser, error)
	GetPublicURL(category BucketCategory, key string) string
}

type bucketConfig struct {
	name      string
	cdnDomain string
}

type bucketService struct {
	log           *logger.Logger
	client        *storage.Client
	cfg           StorageConfig
	buckets       map[BucketCategory]bucketConfig
	publicBaseURL string
	httpClient    *http.Client
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	cfg, err := StorageConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve object storage config: %w", err)
	}
	return NewBucketServiceWithConfig(log, cfg)
}

func NewBucketServiceWithConfig(log *logger.Logger, cfg StorageConfig) (BucketService, error) {
	if err := ValidateStorageConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	serviceLog := log.With("service", "BucketService")

	roomBucket := strings.TrimSpace(os.Getenv("ROOM_IMAGE_GCS_BUCKET_NAME"))
	if roomBucket == "" {
		return nil, fmt.Errorf("missing env var ROOM_IMAGE_GCS_BUCKET_NAME")
	}
	overlayBucket := strings.TrimSpace(os.Getenv("OVERLAY_GCS_BUCKET_NAME"))
	if overlayBucket == "" {
		overlayBucket = roomBucket
	}
	referenceBucket := strings.TrimSpace(os.Getenv("REFERENCE_GCS_BUCKET_NAME"))
	if referenceBucket == "" {
		referenceBucket = roomBucket
	}

	publicBaseURL, err := resolvePublicBaseURL(cfg)
	if err != nil {
		return nil, err
	}

	client, err := newStorageClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info("Object storage initialized",
		"mode", cfg.Mode,
		"inferred", cfg.Inferred,
		"public_base_url", publicBaseURL,
		"room_bucket", roomBucket,
		"overlay_bucket", overlayBucket,
		"reference_bucket", referenceBucket,
	)

	return &bucketService{
		log:    serviceLog,
		client: client,
		cfg:    cfg,
		buckets: map[BucketCategory]bucketConfig{
			BucketCategoryRoomImage: {name: roomBucket, cdnDomain: os.Getenv("ROOM_IMAGE_CDN_DOMAIN")},
			BucketCategoryOverlay:   {name: overlayBucket, cdnDomain: os.Getenv("OVERLAY_CDN_DOMAIN")},
			BucketCategoryReference: {name: referenceBucket, cdnDomain: os.Getenv("REFERENCE_CDN_DOMAIN")},
		},
		publicBaseURL: publicBaseURL,
		httpClient:    &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

func newStorageClient(ctx context.Context, cfg StorageConfig) (*storage.Client, error) {
	if cfg.IsEmulator() {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := clientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case creds == "":
		return nil
	case strings.HasPrefix(creds, "{"):
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	default:
		return []option.ClientOption{option.WithCredentialsFile(creds)}
	}
}

func resolvePublicBaseURL(cfg StorageConfig) (string, error) {
	raw := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_PUBLIC_BASE_URL"))
	if raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return "", fmt.Errorf("invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443", raw)
		}
		return strings.TrimRight(raw, "/"), nil
	}
	if cfg.IsEmulator() {
		return strings.TrimRight(cfg.EmulatorHost, "/"), nil
	}
	return "", nil
}

func (bs *bucketService) bucketFor(category BucketCategory) (bucketConfig, error) {
	cfg, ok := bs.buckets[category]
	if !ok {
		return bucketConfig{}, fmt.Errorf("unknown bucket category: %s", category)
	}
	return cfg, nil
}

func (bs *bucketService) UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader) error {
	cfg, err := bs.bucketFor(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.client.Bucket(cfg.name).Object(key).NewWriter(ctx)
	w.ContentType = ContentTypeForKey(key)
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (bs *bucketService) DeleteFile(ctx context.Context, category BucketCategory, key string) error {
	cfg, err := bs.bucketFor(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bs.client.Bucket(cfg.name).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, cfg.name, err)
	}
	return nil
}

// readCloserWithCancel keeps the download context alive until the caller closes the body.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (bs *bucketService) DownloadFile(ctx context.Context, category BucketCategory, key string) (io.ReadCloser, error) {
	cfg, err := bs.bucketFor(category)
	if err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if bs.cfg.IsEmulator() {
		req, err := http.NewRequestWithContext(ctx2, http.MethodGet, emulatorMediaURL(bs.cfg.EmulatorHost, cfg.name, key), nil)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed creating emulator download request: %w", err)
		}
		resp, err := bs.httpClient.Do(req)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed emulator download request: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			cancel()
			return nil, fmt.Errorf("emulator download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return &readCloserWithCancel{ReadCloser: resp.Body, cancel: cancel}, nil
	}
	r, err := bs.client.Bucket(cfg.name).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (bs *bucketService) GetPublicURL(category BucketCategory, key string) string {
	cfg, err := bs.bucketFor(category)
	if err != nil {
		return key
	}
	return publicURL(cfg, bs.cfg, bs.publicBaseURL, key)
}

func publicURL(b bucketConfig, cfg StorageConfig, publicBaseURL, key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	switch {
	case b.cdnDomain != "":
		return fmt.Sprintf("https://%s/%s", b.cdnDomain, key)
	case cfg.IsEmulator():
		base := publicBaseURL
		if base == "" {
			base = cfg.EmulatorHost
		}
		return emulatorMediaURL(base, b.name, key)
	case publicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", publicBaseURL, b.name, key)
	default:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, key)
	}
}

func emulatorMediaURL(base, bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
		strings.TrimRight(strings.TrimSpace(base), "/"),
		url.PathEscape(bucket),
		url.PathEscape(key),
	)
}

func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
