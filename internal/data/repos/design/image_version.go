package design

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

// ImageVersionRepo has no update or delete; history is append-only.
type ImageVersionRepo interface {
	Append(dbc dbctx.Context, v *types.ImageVersion) (*types.ImageVersion, error)
	GetByID(dbc dbctx.Context, projectID, id uuid.UUID) (*types.ImageVersion, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.ImageVersion, error)
}

type imageVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImageVersionRepo(db *gorm.DB, baseLog *logger.Logger) ImageVersionRepo {
	return &imageVersionRepo{db: db, log: baseLog.With("repo", "ImageVersionRepo")}
}

func (r *imageVersionRepo) Append(dbc dbctx.Context, v *types.ImageVersion) (*types.ImageVersion, error) {
	if v == nil {
		return nil, errors.New("nil image version")
	}
	if v.ProjectID == uuid.Nil {
		return nil, errors.New("image version missing project id")
	}
	if err := dbc.DB(r.db).Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

func (r *imageVersionRepo) GetByID(dbc dbctx.Context, projectID, id uuid.UUID) (*types.ImageVersion, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var v types.ImageVersion
	err := dbc.DB(r.db).
		Where("id = ? AND project_id = ?", id, projectID).
		Limit(1).
		Find(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == uuid.Nil {
		return nil, nil
	}
	return &v, nil
}

func (r *imageVersionRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.ImageVersion, error) {
	var out []*types.ImageVersion
	if err := dbc.DB(r.db).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
