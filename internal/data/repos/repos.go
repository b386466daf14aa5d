package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/roomviz-backend/internal/data/repos/design"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type ProjectRepo = design.ProjectRepo
type RegionRepo = design.RegionRepo
type ImageVersionRepo = design.ImageVersionRepo
type RenderLogRepo = design.RenderLogRepo
type CostEstimateRepo = design.CostEstimateRepo
type CatalogUsageRepo = design.CatalogUsageRepo

var ErrDuplicateLabel = design.ErrDuplicateLabel

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return design.NewProjectRepo(db, baseLog)
}

func NewRegionRepo(db *gorm.DB, baseLog *logger.Logger) RegionRepo {
	return design.NewRegionRepo(db, baseLog)
}

func NewImageVersionRepo(db *gorm.DB, baseLog *logger.Logger) ImageVersionRepo {
	return design.NewImageVersionRepo(db, baseLog)
}

func NewRenderLogRepo(db *gorm.DB, baseLog *logger.Logger) RenderLogRepo {
	return design.NewRenderLogRepo(db, baseLog)
}

func NewCostEstimateRepo(db *gorm.DB, baseLog *logger.Logger) CostEstimateRepo {
	return design.NewCostEstimateRepo(db, baseLog)
}

func NewCatalogUsageRepo(db *gorm.DB, baseLog *logger.Logger) CatalogUsageRepo {
	return design.NewCatalogUsageRepo(db, baseLog)
}
