package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/yungbote/roomviz-backend/internal/data/repos"
	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/modules/design/geometry"
	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type BookkeepingConfig struct {
	// ReferenceAreaM2 is the surface a full frame is assumed to show.
	ReferenceAreaM2 float64
	FloorAreaM2     float64
}

type bookkeeper struct {
	log       *logger.Logger
	catalog   Catalog
	estimates repos.CostEstimateRepo
	usage     repos.CatalogUsageRepo
	renderLog repos.RenderLogRepo
	cfg       BookkeepingConfig
}

func NewBookkeeper(
	log *logger.Logger,
	catalog Catalog,
	estimates repos.CostEstimateRepo,
	usage repos.CatalogUsageRepo,
	renderLog repos.RenderLogRepo,
	cfg BookkeepingConfig,
) render.Bookkeeper {
	if cfg.ReferenceAreaM2 <= 0 {
		cfg.ReferenceAreaM2 = 25
	}
	if cfg.FloorAreaM2 <= 0 {
		cfg.FloorAreaM2 = 20
	}
	return &bookkeeper{
		log:       log.With("service", "Bookkeeper"),
		catalog:   catalog,
		estimates: estimates,
		usage:     usage,
		renderLog: renderLog,
		cfg:       cfg,
	}
}

// AfterRender writes the cost estimate and sponsored-catalog attribution.
// Both writes are attempted; errors are joined.
func (b *bookkeeper) AfterRender(ctx context.Context, rc render.Receipt) error {
	if rc.Version == nil {
		return errors.New("receipt without version")
	}
	dbc := dbctx.Context{Ctx: ctx}
	var errs []error

	if est := b.Estimate(rc); est != nil {
		if err := b.estimates.Upsert(dbc, est); err != nil {
			errs = append(errs, fmt.Errorf("cost estimate: %w", err))
		}
	}
	if rows := b.usageRows(rc); len(rows) > 0 {
		if err := b.usage.Create(dbc, rows); err != nil {
			errs = append(errs, fmt.Errorf("catalog usage: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Estimate prices each edit as unit price x covered area. Wall area comes
// from the region's share of the frame; the floor uses a fixed area since
// it is detected by the model.
func (b *bookkeeper) Estimate(rc render.Receipt) *types.CostEstimate {
	var lines []types.CostLine
	for _, w := range rc.Set.Walls {
		reg, ok := rc.Regions[w.RegionID]
		if !ok {
			continue
		}
		area := round2(geometry.Area(reg.Points) * b.cfg.ReferenceAreaM2)
		price := b.catalog.PaintPricePerM2()
		if m, ok := b.catalog.Lookup(w.Material); ok && w.Material != "" {
			price = m.PricePerM2
		}
		lines = append(lines, types.CostLine{
			Label:      reg.Label,
			MaterialID: w.Material,
			AreaM2:     area,
			UnitPrice:  price,
			Amount:     round2(area * price),
		})
	}
	if f := rc.Set.Floor; f != nil && f.FromCatalog() {
		if m, ok := b.catalog.Lookup(f.MaterialID); ok {
			lines = append(lines, types.CostLine{
				Label:      "Floor: " + m.Name,
				MaterialID: m.ID,
				AreaM2:     b.cfg.FloorAreaM2,
				UnitPrice:  m.PricePerM2,
				Amount:     round2(b.cfg.FloorAreaM2 * m.PricePerM2),
			})
		}
	}
	if len(lines) == 0 {
		return nil
	}
	total := 0.0
	for _, l := range lines {
		total += l.Amount
	}
	return &types.CostEstimate{
		ProjectID: rc.ProjectID,
		VersionID: rc.Version.ID,
		Currency:  b.catalog.Currency(),
		Total:     round2(total),
		Lines:     lines,
	}
}

func (b *bookkeeper) usageRows(rc render.Receipt) []*types.CatalogUsage {
	var ids []string
	if f := rc.Set.Floor; f != nil && f.Source == pending.FloorSourceSponsored {
		ids = append(ids, f.MaterialID)
	}
	for _, w := range rc.Set.Walls {
		if w.Material != "" {
			ids = append(ids, w.Material)
		}
	}
	var rows []*types.CatalogUsage
	for _, id := range ids {
		m, ok := b.catalog.Lookup(id)
		if !ok || !m.Sponsored() {
			continue
		}
		rows = append(rows, &types.CatalogUsage{
			ProjectID:  rc.ProjectID,
			VersionID:  rc.Version.ID,
			MaterialID: m.ID,
			Sponsor:    m.Sponsor,
		})
	}
	return rows
}

func (b *bookkeeper) LogRender(ctx context.Context, e render.LogEntry) error {
	row := &types.RenderLog{
		ProjectID:   e.ProjectID,
		OwnerUserID: e.OwnerUserID,
		VersionID:   e.VersionID,
		Model:       e.Model,
		Combination: e.Combination,
		EditCount:   e.EditCount,
		Outcome:     e.Outcome,
		ErrorKind:   string(e.ErrorKind),
		DurationMS:  e.Duration.Milliseconds(),
	}
	if e.Err != nil {
		row.Error = e.Err.Error()
	}
	return b.renderLog.Create(dbctx.Context{Ctx: ctx}, row)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
