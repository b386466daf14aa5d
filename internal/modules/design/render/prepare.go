package render

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"

	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/modules/design/editplan"
	"github.com/yungbote/roomviz-backend/internal/modules/design/geometry"
	"github.com/yungbote/roomviz-backend/internal/modules/design/marker"
	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
)

type prepared struct {
	project *types.Project
	base    *types.ImageVersion
	width   int
	height  int
	set     pending.Set
	regions map[uuid.UUID]*types.Region
	// wallMarkers is cached on the regions after a successful render.
	wallMarkers []byte
	request     editplan.Request
}

// prepare loads and validates everything the edit call needs. It reads
// persisted state but never writes it.
func (o *Orchestrator) prepare(ctx context.Context, r *run) (*prepared, error) {
	ctx, span := tracer.Start(ctx, "render.prepare")
	defer span.End()

	st := r.snapshot()
	dbc := dbctx.Context{Ctx: ctx}
	project, err := o.deps.Projects.GetByID(dbc, r.owner, st.ProjectID)
	if err != nil {
		return nil, newError(KindUnknown, "load project", err)
	}
	if project == nil {
		return nil, newError(KindValidation, "project not found", nil)
	}
	if project.CurrentVersionID == nil {
		return nil, newError(KindImageLoad, "project has no image", nil)
	}
	base, err := o.deps.Versions.GetByID(dbc, project.ID, *project.CurrentVersionID)
	if err != nil {
		return nil, newError(KindImageLoad, "load current version", err)
	}
	if base == nil {
		return nil, newError(KindImageLoad, "current version missing", nil)
	}

	blob, err := o.deps.Images.Version(ctx, base)
	if err != nil {
		return nil, newError(KindImageLoad, "fetch base image", err)
	}
	img, err := marker.Decode(blob.Bytes)
	if err != nil {
		return nil, newError(KindImageLoad, "decode base image", err)
	}
	// Native pixels come from the file itself, not the stored metadata.
	width, height := img.Bounds().Dx(), img.Bounds().Dy()

	p := &prepared{
		project: project,
		base:    base,
		width:   width,
		height:  height,
		set:     r.lease.Snapshot(),
		regions: make(map[uuid.UUID]*types.Region),
	}
	in := editplan.Input{
		Set:          p.set,
		Width:        width,
		Height:       height,
		Base:         blob,
		RegionLabels: make(map[uuid.UUID]string),
		Temperature:  o.cfg.Temperature,
	}

	if len(p.set.Walls) > 0 {
		overlay, openings, err := o.wallOverlay(ctx, p, in.RegionLabels, img)
		if err != nil {
			return nil, err
		}
		png, err := marker.EncodePNG(overlay)
		if err != nil {
			return nil, newError(KindUnknown, "encode wall markers", err)
		}
		p.wallMarkers = png
		in.WallMarkers = editplan.ImageBlob{Bytes: png, MimeType: "image/png"}
		in.HasOpenings = openings > 0
	}

	if f := p.set.Floor; f != nil {
		if f.FromCatalog() && o.deps.Floors != nil {
			if name, ok := o.deps.Floors.DisplayName(f.MaterialID); ok {
				in.FloorName = name
			}
		}
		if f.HasReferenceImage() {
			ref, err := o.deps.Images.Reference(ctx, f.ReferenceKey)
			if err != nil {
				return nil, newError(KindImageLoad, "fetch floor reference", err)
			}
			if _, err := marker.Decode(ref.Bytes); err != nil {
				return nil, newError(KindImageLoad, "decode floor reference", err)
			}
			in.FloorReference = ref
		}
	}

	if len(p.set.Placements) > 0 {
		marks := make([]marker.PlacementMark, 0, len(p.set.Placements))
		in.Products = make(map[uuid.UUID]editplan.ImageBlob, len(p.set.Placements))
		for _, pl := range p.set.Placements {
			c, err := marker.ParseHex(pl.Color.Hex)
			if err != nil {
				return nil, newError(KindValidation, "placement color", err)
			}
			strokes := make([]marker.Stroke, 0, len(pl.Strokes))
			for _, s := range pl.Strokes {
				strokes = append(strokes, marker.Stroke{Points: s.Points, Width: s.Width})
			}
			marks = append(marks, marker.PlacementMark{Label: pl.ProductName, Color: c, Strokes: strokes})

			if pl.ProductImageURL == "" {
				return nil, newError(KindValidation, fmt.Sprintf("placement %s has no product image", pl.ProductRef), nil)
			}
			prod, err := o.deps.Images.Product(ctx, pl.ProductImageURL)
			if err != nil {
				return nil, newError(KindImageLoad, "fetch product image", err)
			}
			if _, err := marker.Decode(prod.Bytes); err != nil {
				return nil, newError(KindImageLoad, fmt.Sprintf("decode product image for %s", pl.ProductRef), err)
			}
			in.Products[pl.ID] = prod
		}
		png, err := marker.EncodePNG(o.deps.Markers.RenderPlacements(img, marks))
		if err != nil {
			return nil, newError(KindUnknown, "encode placement markers", err)
		}
		in.PlacementMarkers = editplan.ImageBlob{Bytes: png, MimeType: "image/png"}
	}

	req, err := editplan.Build(in)
	if err != nil {
		if errors.Is(err, editplan.ErrEmpty) {
			return nil, newError(KindValidation, "nothing to render", err)
		}
		return nil, newError(KindValidation, "build edit request", err)
	}
	p.request = req
	return p, nil
}

// wallOverlay draws every pending wall plus the project's openings at native
// resolution. Each wall polygon is re-validated at that resolution.
func (o *Orchestrator) wallOverlay(ctx context.Context, p *prepared, labels map[uuid.UUID]string, img image.Image) (image.Image, int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	all, err := o.deps.Regions.ListByProject(dbc, p.project.ID)
	if err != nil {
		return nil, 0, newError(KindUnknown, "load regions", err)
	}
	byID := make(map[uuid.UUID]*types.Region, len(all))
	for _, reg := range all {
		byID[reg.ID] = reg
	}

	w, h := float64(p.width), float64(p.height)
	validator := geometry.Validator{MinArea: o.cfg.MinArea}
	regions := make([]marker.Region, 0, len(p.set.Walls))
	for _, edit := range p.set.Walls {
		reg, ok := byID[edit.RegionID]
		if !ok {
			return nil, 0, newError(KindValidation, fmt.Sprintf("region %s no longer exists", edit.RegionID), nil)
		}
		native := geometry.Denormalize(reg.Points, w, h)
		if res := validator.Validate(native, w, h); !res.Valid {
			return nil, 0, newError(KindValidation, fmt.Sprintf("%s: %s", reg.Label, res.Reason), nil)
		}
		p.regions[reg.ID] = reg
		labels[reg.ID] = reg.Label
		regions = append(regions, marker.Region{Label: reg.Label, Kind: marker.KindWall, Points: native})
	}

	openings := 0
	for _, reg := range all {
		if reg.Kind != types.RegionKindOpening {
			continue
		}
		native := geometry.Denormalize(reg.Points, w, h)
		if res := validator.Validate(native, w, h); !res.Valid {
			o.log.Debug("Skipping invalid opening", "region_id", reg.ID, "reason", res.Reason)
			continue
		}
		regions = append(regions, marker.Region{Label: reg.Label, Kind: marker.KindOpening, Points: native})
		openings++
	}
	return o.deps.Markers.Render(img, regions), openings, nil
}
