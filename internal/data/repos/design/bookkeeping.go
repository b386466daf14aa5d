package design

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type RenderLogRepo interface {
	Create(dbc dbctx.Context, entry *types.RenderLog) error
	ListByProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.RenderLog, error)
}

type renderLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRenderLogRepo(db *gorm.DB, baseLog *logger.Logger) RenderLogRepo {
	return &renderLogRepo{db: db, log: baseLog.With("repo", "RenderLogRepo")}
}

func (r *renderLogRepo) Create(dbc dbctx.Context, entry *types.RenderLog) error {
	if entry == nil {
		return errors.New("nil render log")
	}
	return dbc.DB(r.db).Create(entry).Error
}

func (r *renderLogRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.RenderLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.RenderLog
	if err := dbc.DB(r.db).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type CostEstimateRepo interface {
	Upsert(dbc dbctx.Context, est *types.CostEstimate) error
	GetByVersion(dbc dbctx.Context, versionID uuid.UUID) (*types.CostEstimate, error)
}

type costEstimateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCostEstimateRepo(db *gorm.DB, baseLog *logger.Logger) CostEstimateRepo {
	return &costEstimateRepo{db: db, log: baseLog.With("repo", "CostEstimateRepo")}
}

func (r *costEstimateRepo) Upsert(dbc dbctx.Context, est *types.CostEstimate) error {
	if est == nil {
		return errors.New("nil cost estimate")
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "version_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"currency", "total", "lines"}),
		}).
		Create(est).Error
}

func (r *costEstimateRepo) GetByVersion(dbc dbctx.Context, versionID uuid.UUID) (*types.CostEstimate, error) {
	var out types.CostEstimate
	if err := dbc.DB(r.db).
		Where("version_id = ?", versionID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

type CatalogUsageRepo interface {
	Create(dbc dbctx.Context, rows []*types.CatalogUsage) error
	CountByMaterial(dbc dbctx.Context, materialID string) (int64, error)
}

type catalogUsageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogUsageRepo(db *gorm.DB, baseLog *logger.Logger) CatalogUsageRepo {
	return &catalogUsageRepo{db: db, log: baseLog.With("repo", "CatalogUsageRepo")}
}

func (r *catalogUsageRepo) Create(dbc dbctx.Context, rows []*types.CatalogUsage) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&rows).Error
}

func (r *catalogUsageRepo) CountByMaterial(dbc dbctx.Context, materialID string) (int64, error) {
	var n int64
	err := dbc.DB(r.db).
		Model(&types.CatalogUsage{}).
		Where("material_id = ?", materialID).
		Count(&n).Error
	return n, err
}
