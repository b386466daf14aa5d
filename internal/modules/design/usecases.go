package design

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/roomviz-backend/internal/data/repos"
	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/modules/design/geometry"
	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/platform/apierr"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
	"github.com/yungbote/roomviz-backend/internal/services"
)

var (
	ErrLabelTaken      = errors.New("a region with this label already exists")
	ErrProjectNotFound = errors.New("project not found")
	ErrNoCurrentImage  = errors.New("project has no current image")
)

// Renderer is the slice of the render orchestrator the usecases drive.
type Renderer interface {
	Start(ctx context.Context, projectID, ownerUserID uuid.UUID) (render.RunStatus, error)
	Cancel(projectID uuid.UUID) (render.RunStatus, error)
	Status(projectID uuid.UUID) render.RunStatus
}

type Uploads interface {
	SaveVersion(ctx context.Context, projectID, versionID uuid.UUID, body []byte, mimeType string) (string, string, error)
	SaveReference(ctx context.Context, projectID uuid.UUID, body []byte, mimeType string) (string, error)
	MarkerURL(key string) string
}

type VersionNotifier interface {
	VersionChanged(ctx context.Context, projectID, versionID uuid.UUID)
}

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Projects repos.ProjectRepo
	Versions repos.ImageVersionRepo
	Regions  repos.RegionRepo

	Pending  *pending.Store
	Renders  Renderer
	Uploads  Uploads
	Catalog  services.Catalog
	Notifier VersionNotifier

	MinArea float64
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	if deps.MinArea <= 0 {
		deps.MinArea = geometry.MinArea
	}
	return Usecases{deps: deps}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

func (u Usecases) transaction(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// project loads a project owned by ownerUserID or returns a 404.
func (u Usecases) project(ctx context.Context, ownerUserID, projectID uuid.UUID) (*types.Project, error) {
	p, err := u.deps.Projects.GetByID(dbctx.Context{Ctx: ctx}, ownerUserID, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if p == nil {
		return nil, apierr.NotFound("project_not_found", ErrProjectNotFound)
	}
	return p, nil
}

func (u Usecases) currentVersion(ctx context.Context, p *types.Project) (*types.ImageVersion, error) {
	if p.CurrentVersionID == nil {
		return nil, apierr.Conflict("no_current_image", ErrNoCurrentImage)
	}
	v, err := u.deps.Versions.GetByID(dbctx.Context{Ctx: ctx}, p.ID, *p.CurrentVersionID)
	if err != nil {
		return nil, fmt.Errorf("load current version: %w", err)
	}
	if v == nil {
		return nil, apierr.Conflict("no_current_image", ErrNoCurrentImage)
	}
	return v, nil
}

// exclusive runs fn with the project's pending set locked. No render can be
// admitted for the project until fn returns.
func (u Usecases) exclusive(projectID uuid.UUID, fn func(lease *pending.Lease) error) error {
	lease, err := u.deps.Pending.Lock(projectID)
	if err != nil {
		return pendingErr(err)
	}
	defer lease.Release()
	return fn(lease)
}

func pendingErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pending.ErrLocked), errors.Is(err, pending.ErrAlreadyHeld):
		return apierr.WithSuggestion(http.StatusConflict, "render_in_flight",
			"Wait for the current render to finish or cancel it.", err)
	case errors.Is(err, pending.ErrPaletteFull):
		return apierr.WithSuggestion(http.StatusConflict, "palette_full",
			"Render or remove a placement before adding another.", err)
	case errors.Is(err, pending.ErrNotFound):
		return apierr.NotFound("pending_edit_not_found", err)
	default:
		return apierr.BadRequest("invalid_edit", err)
	}
}
