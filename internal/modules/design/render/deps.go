package render

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/modules/design/editplan"
	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
)

// Output is the raw image returned by the edit service.
type Output struct {
	Bytes    []byte
	MimeType string
}

// Editor performs exactly one external edit call per invocation.
type Editor interface {
	Edit(ctx context.Context, req editplan.Request) (Output, error)
	Model() string
}

type ImageSource interface {
	Version(ctx context.Context, v *types.ImageVersion) (editplan.ImageBlob, error)
	// Reference loads an uploaded floor reference image by storage key.
	Reference(ctx context.Context, key string) (editplan.ImageBlob, error)
	Product(ctx context.Context, url string) (editplan.ImageBlob, error)
}

type ObjectStore interface {
	SaveVersion(ctx context.Context, projectID, versionID uuid.UUID, body []byte, mimeType string) (key, url string, err error)
	SaveMarker(ctx context.Context, projectID, baseVersionID uuid.UUID, body []byte) (key string, err error)
}

// Receipt describes a successful render for secondary bookkeeping.
type Receipt struct {
	ProjectID   uuid.UUID
	OwnerUserID uuid.UUID
	Version     *types.ImageVersion
	Set         pending.Set
	Regions     map[uuid.UUID]*types.Region
}

type LogEntry struct {
	ProjectID   uuid.UUID
	OwnerUserID uuid.UUID
	VersionID   *uuid.UUID
	Model       string
	Combination string
	EditCount   int
	Outcome     string
	ErrorKind   ErrorKind
	Err         error
	Duration    time.Duration
}

// Bookkeeper failures are logged and dropped by the orchestrator.
type Bookkeeper interface {
	AfterRender(ctx context.Context, rc Receipt) error
	LogRender(ctx context.Context, entry LogEntry) error
}

type Notifier interface {
	RenderStatus(ctx context.Context, st RunStatus)
}

// FloorCatalog resolves catalog material ids to display names.
type FloorCatalog interface {
	DisplayName(materialID string) (string, bool)
}

// Metrics receives one observation per finished run.
type Metrics interface {
	ObserveRender(outcome, errorKind, combination string, editCount int, dur time.Duration)
}
