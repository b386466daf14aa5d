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
	"github.com/yungbote/roomviz-backend/internal/platform/apierr"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
)

type WallEditInput struct {
	RegionID uuid.UUID `json:"region_id"`
	Color    string    `json:"color"`
	Material string    `json:"material"`
}

type FloorInput struct {
	MaterialID  string `json:"material_id"`
	Description string `json:"description"`
}

type PlacementInput struct {
	ProductRef      string           `json:"product_ref"`
	ProductName     string           `json:"product_name"`
	ProductImageURL string           `json:"product_image_url"`
	Strokes         []pending.Stroke `json:"strokes"`
}

func (u Usecases) GetPending(ctx context.Context, ownerUserID, projectID uuid.UUID) (pending.Set, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return pending.Set{}, err
	}
	return u.deps.Pending.Snapshot(projectID), nil
}

// SetWallEdit queues a color or material for one wall region, replacing any
// earlier edit of the same region.
func (u Usecases) SetWallEdit(ctx context.Context, ownerUserID, projectID uuid.UUID, in WallEditInput) (pending.Set, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return pending.Set{}, err
	}
	r, err := u.deps.Regions.GetByID(dbctx.Context{Ctx: ctx}, projectID, in.RegionID)
	if err != nil {
		return pending.Set{}, fmt.Errorf("load region: %w", err)
	}
	if r == nil {
		return pending.Set{}, apierr.NotFound("region_not_found", errors.New("region not found"))
	}
	if r.Kind != types.RegionKindWall {
		return pending.Set{}, apierr.BadRequest("not_a_wall", fmt.Errorf("region %q is an %s and cannot be painted", r.Label, r.Kind))
	}

	if strings.TrimSpace(in.Color) != "" && strings.TrimSpace(in.Material) != "" {
		return pending.Set{}, apierr.WithSuggestion(http.StatusBadRequest, "invalid_edit",
			"Pick either a paint color or a wall material.", errors.New("wall edit takes a color or a material, not both"))
	}

	edit := pending.WallEdit{RegionID: r.ID}
	if c := strings.TrimSpace(in.Color); c != "" {
		if strings.HasPrefix(c, "#") {
			if _, err := marker.ParseHex(c); err != nil {
				return pending.Set{}, apierr.BadRequest("invalid_color", err)
			}
			c = strings.ToUpper(c)
		}
		edit.Color = c
	}
	if id := strings.TrimSpace(in.Material); id != "" {
		m, ok := u.deps.Catalog.Lookup(id)
		if !ok || m.Kind != "wall" {
			return pending.Set{}, apierr.BadRequest("unknown_material", fmt.Errorf("unknown wall material %q", id))
		}
		edit.Material = m.ID
		edit.MaterialName = m.Name
	}
	if err := u.deps.Pending.SetWall(projectID, edit); err != nil {
		return pending.Set{}, pendingErr(err)
	}
	return u.deps.Pending.Snapshot(projectID), nil
}

func (u Usecases) RemoveWallEdit(ctx context.Context, ownerUserID, projectID, regionID uuid.UUID) (pending.Set, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return pending.Set{}, err
	}
	if err := u.deps.Pending.RemoveWall(projectID, regionID); err != nil {
		return pending.Set{}, pendingErr(err)
	}
	return u.deps.Pending.Snapshot(projectID), nil
}

// SetFloor queues a catalog material or a free-text description for the floor.
func (u Usecases) SetFloor(ctx context.Context, ownerUserID, projectID uuid.UUID, in FloorInput) (pending.Set, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return pending.Set{}, err
	}
	var edit pending.FloorEdit
	if id := strings.TrimSpace(in.MaterialID); id != "" {
		m, ok := u.deps.Catalog.Lookup(id)
		if !ok || m.Kind != "floor" {
			return pending.Set{}, apierr.BadRequest("unknown_material", fmt.Errorf("unknown floor material %q", id))
		}
		edit = pending.FloorEdit{
			MaterialID:  m.ID,
			DisplayName: m.Name,
			Description: m.Description,
			Source:      pending.FloorSourceQuickPick,
		}
		if m.Sponsored() {
			edit.Source = pending.FloorSourceSponsored
		}
	} else {
		edit = pending.FloorEdit{Source: pending.FloorSourceCustomText, Description: strings.TrimSpace(in.Description)}
	}
	if err := u.deps.Pending.SetFloor(projectID, edit); err != nil {
		return pending.Set{}, pendingErr(err)
	}
	return u.deps.Pending.Snapshot(projectID), nil
}

// UploadFloorReference stores a reference texture and queues it as the floor
// edit. The optional hint rides along with the image.
func (u Usecases) UploadFloorReference(ctx context.Context, ownerUserID, projectID uuid.UUID, body []byte, mimeType, hint string) (pending.Set, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return pending.Set{}, err
	}
	if u.deps.Pending.Locked(projectID) {
		return pending.Set{}, pendingErr(pending.ErrLocked)
	}
	if _, err := marker.Decode(body); err != nil {
		return pending.Set{}, apierr.WithSuggestion(http.StatusBadRequest, "invalid_image",
			"Upload a PNG, JPEG or WebP photo of the flooring.", err)
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(body)
	}
	key, err := u.deps.Uploads.SaveReference(ctx, projectID, body, mimeType)
	if err != nil {
		return pending.Set{}, err
	}
	edit := pending.FloorEdit{
		Source:       pending.FloorSourceCustomImage,
		ReferenceKey: key,
		Description:  strings.TrimSpace(hint),
	}
	if err := u.deps.Pending.SetFloor(projectID, edit); err != nil {
		return pending.Set{}, pendingErr(err)
	}
	return u.deps.Pending.Snapshot(projectID), nil
}

func (u Usecases) ClearFloor(ctx context.Context, ownerUserID, projectID uuid.UUID) (pending.Set, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return pending.Set{}, err
	}
	if err := u.deps.Pending.ClearFloor(projectID); err != nil {
		return pending.Set{}, pendingErr(err)
	}
	return u.deps.Pending.Snapshot(projectID), nil
}

// AddPlacement queues a product placement and returns it with its assigned color.
func (u Usecases) AddPlacement(ctx context.Context, ownerUserID, projectID uuid.UUID, in PlacementInput) (pending.PlacementEdit, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return pending.PlacementEdit{}, err
	}
	if strings.TrimSpace(in.ProductImageURL) == "" {
		return pending.PlacementEdit{}, apierr.BadRequest("invalid_edit", errors.New("placement requires a product image url"))
	}
	edit, err := u.deps.Pending.AddPlacement(projectID, pending.PlacementEdit{
		ProductRef:      strings.TrimSpace(in.ProductRef),
		ProductName:     strings.TrimSpace(in.ProductName),
		ProductImageURL: strings.TrimSpace(in.ProductImageURL),
		Strokes:         in.Strokes,
	})
	if err != nil {
		return pending.PlacementEdit{}, pendingErr(err)
	}
	return edit, nil
}

func (u Usecases) RemovePlacement(ctx context.Context, ownerUserID, projectID, placementID uuid.UUID) (pending.Set, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return pending.Set{}, err
	}
	if err := u.deps.Pending.RemovePlacement(projectID, placementID); err != nil {
		return pending.Set{}, pendingErr(err)
	}
	return u.deps.Pending.Snapshot(projectID), nil
}

func (u Usecases) ClearPending(ctx context.Context, ownerUserID, projectID uuid.UUID) error {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return err
	}
	return pendingErr(u.deps.Pending.Clear(projectID))
}
