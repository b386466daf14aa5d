package design

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/modules/design/marker"
	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/platform/apierr"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
)

type CreateProjectInput struct {
	OwnerUserID uuid.UUID
	Name        string
	Image       []byte
	MimeType    string
}

type ProjectDetail struct {
	Project *types.Project      `json:"project"`
	Current *types.ImageVersion `json:"current_version,omitempty"`
	Regions []RegionView        `json:"regions"`
	Pending pending.Set         `json:"pending"`
	Render  render.RunStatus    `json:"render"`
}

// CreateProject stores the uploaded photo as the original version and makes it current.
func (u Usecases) CreateProject(ctx context.Context, in CreateProjectInput) (*ProjectDetail, error) {
	img, err := marker.Decode(in.Image)
	if err != nil {
		return nil, apierr.WithSuggestion(http.StatusBadRequest, "invalid_image",
			"Upload a PNG, JPEG or WebP photo of the room.", err)
	}
	mime := strings.TrimSpace(in.MimeType)
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(in.Image)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Untitled room"
	}
	b := img.Bounds()

	var project *types.Project
	err = u.transaction(ctx, func(dbc dbctx.Context) error {
		p, err := u.deps.Projects.Create(dbc, &types.Project{OwnerUserID: in.OwnerUserID, Name: name})
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		versionID := uuid.New()
		key, url, err := u.deps.Uploads.SaveVersion(ctx, p.ID, versionID, in.Image, mime)
		if err != nil {
			return err
		}
		v, err := u.deps.Versions.Append(dbc, &types.ImageVersion{
			ID:         versionID,
			ProjectID:  p.ID,
			URL:        url,
			BucketKey:  key,
			MimeType:   mime,
			IsOriginal: true,
			Width:      b.Dx(),
			Height:     b.Dy(),
		})
		if err != nil {
			return fmt.Errorf("append original version: %w", err)
		}
		if err := u.deps.Projects.SetCurrentVersion(dbc, p.ID, v.ID); err != nil {
			return fmt.Errorf("set current version: %w", err)
		}
		p.CurrentVersionID = &v.ID
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.deps.Log.Info("Project created", "project_id", project.ID, "owner_user_id", in.OwnerUserID, "width", b.Dx(), "height", b.Dy())
	return u.detail(ctx, project)
}

func (u Usecases) ListProjects(ctx context.Context, ownerUserID uuid.UUID) ([]*types.Project, error) {
	return u.deps.Projects.ListByOwner(dbctx.Context{Ctx: ctx}, ownerUserID)
}

func (u Usecases) GetProject(ctx context.Context, ownerUserID, projectID uuid.UUID) (*ProjectDetail, error) {
	p, err := u.project(ctx, ownerUserID, projectID)
	if err != nil {
		return nil, err
	}
	return u.detail(ctx, p)
}

func (u Usecases) detail(ctx context.Context, p *types.Project) (*ProjectDetail, error) {
	out := &ProjectDetail{
		Project: p,
		Pending: u.deps.Pending.Snapshot(p.ID),
		Render:  u.deps.Renders.Status(p.ID),
	}
	if p.CurrentVersionID != nil {
		v, err := u.deps.Versions.GetByID(dbctx.Context{Ctx: ctx}, p.ID, *p.CurrentVersionID)
		if err != nil {
			return nil, fmt.Errorf("load current version: %w", err)
		}
		out.Current = v
	}
	regions, err := u.deps.Regions.ListByProject(dbctx.Context{Ctx: ctx}, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	out.Regions = u.regionViews(regions, out.Current)
	return out, nil
}

func (u Usecases) ListVersions(ctx context.Context, ownerUserID, projectID uuid.UUID) ([]*types.ImageVersion, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return nil, err
	}
	return u.deps.Versions.ListByProject(dbctx.Context{Ctx: ctx}, projectID)
}

// SwitchVersion points the project at an earlier version. Pending edits were
// drawn against the old image, so they are discarded.
func (u Usecases) SwitchVersion(ctx context.Context, ownerUserID, projectID, versionID uuid.UUID) (*ProjectDetail, error) {
	p, err := u.project(ctx, ownerUserID, projectID)
	if err != nil {
		return nil, err
	}
	v, err := u.deps.Versions.GetByID(dbctx.Context{Ctx: ctx}, projectID, versionID)
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}
	if v == nil {
		return nil, apierr.NotFound("version_not_found", errors.New("version not found"))
	}
	if p.CurrentVersionID != nil && *p.CurrentVersionID == versionID {
		return u.detail(ctx, p)
	}
	err = u.exclusive(projectID, func(lease *pending.Lease) error {
		if err := u.deps.Projects.SetCurrentVersion(dbctx.Context{Ctx: ctx}, projectID, versionID); err != nil {
			return fmt.Errorf("set current version: %w", err)
		}
		lease.Clear()
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.CurrentVersionID = &v.ID
	if u.deps.Notifier != nil {
		u.deps.Notifier.VersionChanged(ctx, projectID, versionID)
	}
	return u.detail(ctx, p)
}

func (u Usecases) DeleteProject(ctx context.Context, ownerUserID, projectID uuid.UUID) error {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return err
	}
	err := u.exclusive(projectID, func(lease *pending.Lease) error {
		err := u.transaction(ctx, func(dbc dbctx.Context) error {
			if err := u.deps.Regions.DeleteByProject(dbc, projectID); err != nil {
				return fmt.Errorf("delete regions: %w", err)
			}
			return u.deps.Projects.SoftDelete(dbc, ownerUserID, projectID)
		})
		if err != nil {
			return err
		}
		lease.Clear()
		return nil
	})
	if err != nil {
		return err
	}
	_ = u.deps.Pending.Reset(projectID)
	return nil
}
