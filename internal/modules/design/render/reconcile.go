package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"gorm.io/gorm"

	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/modules/design/marker"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
)

// reconcile persists a successful result. Only the upload and the version
// write can fail the render; everything after them is best effort.
func (o *Orchestrator) reconcile(ctx context.Context, r *run, p *prepared, out Output) (*types.ImageVersion, error) {
	ctx, span := tracer.Start(ctx, "render.reconcile")
	defer span.End()

	img, err := marker.Decode(out.Bytes)
	if err != nil {
		return nil, newError(KindUnknown, "decode result", err)
	}
	fitted := AspectFill(img, p.width, p.height)
	var buf bytes.Buffer
	if err := png.Encode(&buf, fitted); err != nil {
		return nil, newError(KindUnknown, "encode result", err)
	}

	versionID := uuid.New()
	key, url, err := o.deps.Store.SaveVersion(ctx, p.project.ID, versionID, buf.Bytes(), "image/png")
	if err != nil {
		return nil, newError(KindPersistence, "upload result", err)
	}
	version := &types.ImageVersion{
		ID:            versionID,
		ProjectID:     p.project.ID,
		URL:           url,
		BucketKey:     key,
		MimeType:      "image/png",
		IsOriginal:    false,
		ChangeSummary: p.request.ChangeSummary,
		Width:         p.width,
		Height:        p.height,
	}
	err = o.transaction(ctx, func(dbc dbctx.Context) error {
		if _, err := o.deps.Versions.Append(dbc, version); err != nil {
			return fmt.Errorf("append version: %w", err)
		}
		if err := o.deps.Projects.SetCurrentVersion(dbc, p.project.ID, version.ID); err != nil {
			return fmt.Errorf("set current version: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, newError(KindPersistence, "save version", err)
	}

	// The new version is durable, so the pending set has been consumed.
	r.lease.Clear()

	o.applyRegions(ctx, p)
	o.bookkeep(ctx, r, p, version)
	return version, nil
}

func (o *Orchestrator) transaction(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if o.deps.DB == nil {
		return fn(dbctx.Context{Ctx: ctx})
	}
	return o.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

func (o *Orchestrator) applyRegions(ctx context.Context, p *prepared) {
	defer o.recoverSideEffect(p.project.ID, "apply_regions")
	dbc := dbctx.Context{Ctx: ctx}
	for _, edit := range p.set.Walls {
		value := edit.Value()
		if err := o.deps.Regions.SetAppliedColor(dbc, p.project.ID, edit.RegionID, value); err != nil {
			o.log.Warn("Applied color update failed (ignored)", "region_id", edit.RegionID, "error", err)
			continue
		}
		if reg, ok := p.regions[edit.RegionID]; ok {
			reg.AppliedColor = &value
		}
	}
	if len(p.wallMarkers) == 0 {
		return
	}
	key, err := o.deps.Store.SaveMarker(ctx, p.project.ID, p.base.ID, p.wallMarkers)
	if err != nil {
		o.log.Warn("Marker cache upload failed (ignored)", "project_id", p.project.ID, "error", err)
		return
	}
	if err := o.deps.Regions.SetMarker(dbc, p.project.ID, p.set.RegionIDs(), key, p.base.ID); err != nil {
		o.log.Warn("Marker reference update failed (ignored)", "project_id", p.project.ID, "error", err)
	}
}

func (o *Orchestrator) bookkeep(ctx context.Context, r *run, p *prepared, version *types.ImageVersion) {
	if o.deps.Bookkeeper == nil {
		return
	}
	defer o.recoverSideEffect(p.project.ID, "after_render")
	err := o.deps.Bookkeeper.AfterRender(ctx, Receipt{
		ProjectID:   p.project.ID,
		OwnerUserID: r.owner,
		Version:     version,
		Set:         p.set,
		Regions:     p.regions,
	})
	if err != nil {
		o.log.Warn("Bookkeeping failed (ignored)",
			"project_id", p.project.ID,
			"version_id", version.ID,
			"kind", string(KindBookkeeping),
			"error", err,
		)
	}
}

// AspectFill scales src to cover w x h and crops the overflow evenly, so
// the output always has exactly the requested size.
func AspectFill(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if sw == 0 || sh == 0 || w <= 0 || h <= 0 {
		return dst
	}

	// Center-crop the source to the target aspect, then resize.
	crop := b
	if sw*h > sh*w {
		cw := sh * w / h
		x0 := b.Min.X + (sw-cw)/2
		crop = image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	} else if sw*h < sh*w {
		ch := sw * h / w
		y0 := b.Min.Y + (sh-ch)/2
		crop = image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}
