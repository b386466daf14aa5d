package design

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/roomviz-backend/internal/data/repos"
	types "github.com/yungbote/roomviz-backend/internal/domain"
	domaindesign "github.com/yungbote/roomviz-backend/internal/domain/design"
	"github.com/yungbote/roomviz-backend/internal/modules/design/geometry"
	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
	"github.com/yungbote/roomviz-backend/internal/platform/apierr"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
)

const maxLabelLen = 64

// Space says which coordinate system submitted points are in.
type Space string

const (
	SpaceScreen     Space = "screen"
	SpaceNative     Space = "native"
	SpaceNormalized Space = "normalized"
)

type RegionInput struct {
	Label  string           `json:"label"`
	Kind   types.RegionKind `json:"kind"`
	Points []float64        `json:"points"`
	Space  Space            `json:"space"`
	View   geometry.View    `json:"view"`
}

type RegionView struct {
	*types.Region
	MarkerURL   string `json:"marker_url,omitempty"`
	MarkerValid bool   `json:"marker_valid"`
}

type PolygonCheck struct {
	geometry.Result
	Suggestion string    `json:"suggestion,omitempty"`
	Normalized []float64 `json:"normalized,omitempty"`
}

var polygonSuggestions = map[string]string{
	geometry.ReasonTooFewPoints:  "Place at least three corners to outline the area.",
	geometry.ReasonOutsideBounds: "Keep every corner inside the photo.",
	geometry.ReasonTooSmall:      "Outline a larger area; tiny regions are hard for the model to follow.",
}

// toNative converts submitted points into native pixels for validation.
func toNative(points []float64, space Space, view geometry.View, width, height int) ([]float64, error) {
	switch space {
	case SpaceScreen:
		return view.ToNative(points), nil
	case SpaceNative, "":
		return points, nil
	case SpaceNormalized:
		return geometry.Denormalize(points, float64(width), float64(height)), nil
	default:
		return nil, fmt.Errorf("unknown coordinate space %q", space)
	}
}

// CheckPolygon runs the canonical validator at native resolution and returns
// the normalized points for a valid polygon.
func (u Usecases) CheckPolygon(points []float64, space Space, view geometry.View, width, height int) (PolygonCheck, error) {
	if width <= 0 || height <= 0 {
		return PolygonCheck{}, apierr.BadRequest("invalid_dimensions", errors.New("width and height must be positive"))
	}
	native, err := toNative(points, space, view, width, height)
	if err != nil {
		return PolygonCheck{}, apierr.BadRequest("invalid_space", err)
	}
	res := geometry.Validator{MinArea: u.deps.MinArea}.Validate(native, float64(width), float64(height))
	out := PolygonCheck{Result: res, Suggestion: polygonSuggestions[res.Reason]}
	if res.Valid {
		out.Normalized = geometry.Normalize(native, float64(width), float64(height))
	}
	return out, nil
}

func invalidPolygon(check PolygonCheck) error {
	return apierr.WithSuggestion(http.StatusUnprocessableEntity, "invalid_polygon", check.Suggestion,
		fmt.Errorf("invalid polygon: %s", check.Reason))
}

func (u Usecases) regionViews(regions []*types.Region, current *types.ImageVersion) []RegionView {
	out := make([]RegionView, 0, len(regions))
	for _, r := range regions {
		out = append(out, u.regionView(r, current))
	}
	return out
}

func (u Usecases) regionView(r *types.Region, current *types.ImageVersion) RegionView {
	v := RegionView{Region: r}
	if r.MarkerImageKey != "" && u.deps.Uploads != nil {
		v.MarkerURL = u.deps.Uploads.MarkerURL(r.MarkerImageKey)
	}
	if current != nil {
		v.MarkerValid = r.MarkerValidFor(current.ID)
	}
	return v
}

func (u Usecases) regionLocked(projectID, regionID uuid.UUID) error {
	if u.deps.Pending.RegionLocked(projectID, regionID) {
		return apierr.WithSuggestion(http.StatusConflict, "region_locked",
			"This region is part of a render in progress.", pending.ErrLocked)
	}
	return nil
}

func cleanLabel(label string) (string, error) {
	label = domaindesign.TrimLabel(label)
	if label == "" {
		return "", apierr.BadRequest("invalid_label", errors.New("label is required"))
	}
	if len(label) > maxLabelLen {
		return "", apierr.BadRequest("invalid_label", fmt.Errorf("label exceeds %d characters", maxLabelLen))
	}
	return label, nil
}

func labelErr(err error) error {
	if errors.Is(err, repos.ErrDuplicateLabel) {
		return apierr.WithSuggestion(http.StatusConflict, "label_taken",
			"Choose a different name; labels are case-insensitive.", ErrLabelTaken)
	}
	return err
}

// nextLabel picks "Wall N" or "Opening N" with the first free N.
func (u Usecases) nextLabel(ctx context.Context, projectID uuid.UUID, kind types.RegionKind, existing []*types.Region) (string, error) {
	prefix := "Wall"
	if kind == types.RegionKindOpening {
		prefix = "Opening"
	}
	n := 1
	for _, r := range existing {
		if r.Kind == kind {
			n++
		}
	}
	for ; ; n++ {
		label := fmt.Sprintf("%s %d", prefix, n)
		taken, err := u.deps.Regions.LabelTaken(dbctx.Context{Ctx: ctx}, projectID, label, uuid.Nil)
		if err != nil {
			return "", err
		}
		if !taken {
			return label, nil
		}
	}
}

func (u Usecases) CreateRegion(ctx context.Context, ownerUserID, projectID uuid.UUID, in RegionInput) (*RegionView, error) {
	p, err := u.project(ctx, ownerUserID, projectID)
	if err != nil {
		return nil, err
	}
	current, err := u.currentVersion(ctx, p)
	if err != nil {
		return nil, err
	}
	kind := in.Kind
	switch kind {
	case "":
		kind = types.RegionKindWall
	case types.RegionKindWall, types.RegionKindOpening:
	default:
		return nil, apierr.BadRequest("invalid_kind", fmt.Errorf("unknown region kind %q", kind))
	}
	check, err := u.CheckPolygon(in.Points, in.Space, in.View, current.Width, current.Height)
	if err != nil {
		return nil, err
	}
	if !check.Valid {
		return nil, invalidPolygon(check)
	}

	label := strings.TrimSpace(in.Label)
	if label == "" {
		existing, err := u.deps.Regions.ListByProject(dbctx.Context{Ctx: ctx}, projectID)
		if err != nil {
			return nil, fmt.Errorf("list regions: %w", err)
		}
		if label, err = u.nextLabel(ctx, projectID, kind, existing); err != nil {
			return nil, err
		}
	} else if label, err = cleanLabel(label); err != nil {
		return nil, err
	}

	r, err := u.deps.Regions.Create(dbctx.Context{Ctx: ctx}, &types.Region{
		ProjectID: projectID,
		Label:     label,
		Kind:      kind,
		Points:    check.Normalized,
	})
	if err != nil {
		return nil, labelErr(err)
	}
	v := u.regionView(r, current)
	return &v, nil
}

func (u Usecases) ListRegions(ctx context.Context, ownerUserID, projectID uuid.UUID) ([]RegionView, error) {
	p, err := u.project(ctx, ownerUserID, projectID)
	if err != nil {
		return nil, err
	}
	d, err := u.detail(ctx, p)
	if err != nil {
		return nil, err
	}
	return d.Regions, nil
}

func (u Usecases) RenameRegion(ctx context.Context, ownerUserID, projectID, regionID uuid.UUID, label string) (*RegionView, error) {
	p, err := u.project(ctx, ownerUserID, projectID)
	if err != nil {
		return nil, err
	}
	if err := u.regionLocked(projectID, regionID); err != nil {
		return nil, err
	}
	label, err = cleanLabel(label)
	if err != nil {
		return nil, err
	}
	if err := u.deps.Regions.Rename(dbctx.Context{Ctx: ctx}, projectID, regionID, label); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("region_not_found", err)
		}
		return nil, labelErr(err)
	}
	return u.region(ctx, p, regionID)
}

// UpdateRegionPoints replaces a region's outline. The cached marker reference is dropped.
func (u Usecases) UpdateRegionPoints(ctx context.Context, ownerUserID, projectID, regionID uuid.UUID, in RegionInput) (*RegionView, error) {
	p, err := u.project(ctx, ownerUserID, projectID)
	if err != nil {
		return nil, err
	}
	if err := u.regionLocked(projectID, regionID); err != nil {
		return nil, err
	}
	current, err := u.currentVersion(ctx, p)
	if err != nil {
		return nil, err
	}
	check, err := u.CheckPolygon(in.Points, in.Space, in.View, current.Width, current.Height)
	if err != nil {
		return nil, err
	}
	if !check.Valid {
		return nil, invalidPolygon(check)
	}
	if err := u.deps.Regions.UpdatePoints(dbctx.Context{Ctx: ctx}, projectID, regionID, check.Normalized); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("region_not_found", err)
		}
		return nil, err
	}
	return u.region(ctx, p, regionID)
}

func (u Usecases) DeleteRegion(ctx context.Context, ownerUserID, projectID, regionID uuid.UUID) error {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return err
	}
	if err := u.regionLocked(projectID, regionID); err != nil {
		return err
	}
	return u.exclusive(projectID, func(lease *pending.Lease) error {
		if err := u.deps.Regions.Delete(dbctx.Context{Ctx: ctx}, projectID, regionID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("region_not_found", err)
			}
			return err
		}
		lease.RemoveWall(regionID)
		return nil
	})
}

func (u Usecases) region(ctx context.Context, p *types.Project, regionID uuid.UUID) (*RegionView, error) {
	r, err := u.deps.Regions.GetByID(dbctx.Context{Ctx: ctx}, p.ID, regionID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apierr.NotFound("region_not_found", errors.New("region not found"))
	}
	var current *types.ImageVersion
	if p.CurrentVersionID != nil {
		current, _ = u.deps.Versions.GetByID(dbctx.Context{Ctx: ctx}, p.ID, *p.CurrentVersionID)
	}
	v := u.regionView(r, current)
	return &v, nil
}
