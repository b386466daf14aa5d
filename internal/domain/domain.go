package domain

import "github.com/yungbote/roomviz-backend/internal/domain/design"

type Project = design.Project
type Region = design.Region
type RegionKind = design.RegionKind
type ImageVersion = design.ImageVersion
type RenderLog = design.RenderLog
type CostEstimate = design.CostEstimate
type CostLine = design.CostLine
type CatalogUsage = design.CatalogUsage

var ErrPointsNotNormalized = design.ErrPointsNotNormalized

const (
	RegionKindWall    = design.RegionKindWall
	RegionKindOpening = design.RegionKindOpening
)

// Models lists every table, in migration order.
func Models() []any {
	return []any{
		&Project{},
		&ImageVersion{},
		&Region{},
		&RenderLog{},
		&CostEstimate{},
		&CatalogUsage{},
	}
}
