package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/roomviz-backend/internal/domain"
)

func SeedProject(tb testing.TB, ctx context.Context, db *gorm.DB, owner uuid.UUID) *types.Project {
	tb.Helper()
	p := &types.Project{OwnerUserID: owner, Name: "Living room"}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

func SeedVersion(tb testing.TB, ctx context.Context, db *gorm.DB, projectID uuid.UUID, original bool) *types.ImageVersion {
	tb.Helper()
	v := &types.ImageVersion{
		ProjectID:  projectID,
		URL:        "https://cdn.example.test/" + projectID.String() + ".png",
		BucketKey:  "projects/" + projectID.String() + "/" + uuid.NewString() + ".png",
		MimeType:   "image/png",
		IsOriginal: original,
		Width:      1920,
		Height:     1080,
	}
	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed version: %v", err)
	}
	return v
}
