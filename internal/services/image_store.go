package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/modules/design/editplan"
	"github.com/yungbote/roomviz-backend/internal/platform/gcp"
	"github.com/yungbote/roomviz-backend/internal/platform/imagefetch"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

const maxObjectBytes = 40 << 20

// ImageStore moves room images between object storage and the render pipeline.
type ImageStore struct {
	log    *logger.Logger
	bucket gcp.BucketService
	fetch  imagefetch.Fetcher
}

func NewImageStore(log *logger.Logger, bucket gcp.BucketService, fetch imagefetch.Fetcher) *ImageStore {
	return &ImageStore{log: log.With("service", "ImageStore"), bucket: bucket, fetch: fetch}
}

func extFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func VersionKey(projectID, versionID uuid.UUID, mimeType string) string {
	return fmt.Sprintf("projects/%s/versions/%s%s", projectID, versionID, extFor(mimeType))
}

func MarkerKey(projectID, baseVersionID uuid.UUID) string {
	return fmt.Sprintf("projects/%s/markers/%s.png", projectID, baseVersionID)
}

func ReferenceKey(projectID, refID uuid.UUID, mimeType string) string {
	return fmt.Sprintf("projects/%s/references/%s%s", projectID, refID, extFor(mimeType))
}

func (s *ImageStore) Version(ctx context.Context, v *types.ImageVersion) (editplan.ImageBlob, error) {
	if v == nil {
		return editplan.ImageBlob{}, fmt.Errorf("nil version")
	}
	if v.BucketKey == "" {
		return s.Product(ctx, v.URL)
	}
	return s.download(ctx, gcp.BucketCategoryRoomImage, v.BucketKey, v.MimeType)
}

func (s *ImageStore) Reference(ctx context.Context, key string) (editplan.ImageBlob, error) {
	return s.download(ctx, gcp.BucketCategoryReference, key, "")
}

func (s *ImageStore) Product(ctx context.Context, url string) (editplan.ImageBlob, error) {
	if s.fetch == nil {
		return editplan.ImageBlob{}, fmt.Errorf("image fetcher not configured")
	}
	b, ct, err := s.fetch.Fetch(ctx, url)
	if err != nil {
		return editplan.ImageBlob{}, err
	}
	return editplan.ImageBlob{Bytes: b, MimeType: ct}, nil
}

func (s *ImageStore) SaveVersion(ctx context.Context, projectID, versionID uuid.UUID, body []byte, mimeType string) (string, string, error) {
	key := VersionKey(projectID, versionID, mimeType)
	if err := s.bucket.UploadFile(ctx, gcp.BucketCategoryRoomImage, key, bytes.NewReader(body)); err != nil {
		return "", "", fmt.Errorf("upload version: %w", err)
	}
	return key, s.bucket.GetPublicURL(gcp.BucketCategoryRoomImage, key), nil
}

func (s *ImageStore) SaveMarker(ctx context.Context, projectID, baseVersionID uuid.UUID, body []byte) (string, error) {
	key := MarkerKey(projectID, baseVersionID)
	if err := s.bucket.UploadFile(ctx, gcp.BucketCategoryOverlay, key, bytes.NewReader(body)); err != nil {
		return "", fmt.Errorf("upload marker: %w", err)
	}
	return key, nil
}

func (s *ImageStore) SaveReference(ctx context.Context, projectID uuid.UUID, body []byte, mimeType string) (string, error) {
	key := ReferenceKey(projectID, uuid.New(), mimeType)
	if err := s.bucket.UploadFile(ctx, gcp.BucketCategoryReference, key, bytes.NewReader(body)); err != nil {
		return "", fmt.Errorf("upload reference: %w", err)
	}
	return key, nil
}

// MarkerURL is the public address of a cached marker overlay.
func (s *ImageStore) MarkerURL(key string) string {
	if key == "" {
		return ""
	}
	return s.bucket.GetPublicURL(gcp.BucketCategoryOverlay, key)
}

func (s *ImageStore) download(ctx context.Context, category gcp.BucketCategory, key, mimeType string) (editplan.ImageBlob, error) {
	rc, err := s.bucket.DownloadFile(ctx, category, key)
	if err != nil {
		return editplan.ImageBlob{}, fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxObjectBytes+1))
	if err != nil {
		return editplan.ImageBlob{}, fmt.Errorf("read %s: %w", key, err)
	}
	if len(b) > maxObjectBytes {
		return editplan.ImageBlob{}, fmt.Errorf("object %s exceeds %d bytes", key, maxObjectBytes)
	}
	if mimeType == "" {
		mimeType = gcp.ContentTypeForKey(key)
	}
	if mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(b)
	}
	return editplan.ImageBlob{Bytes: b, MimeType: mimeType}, nil
}
