package design

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type ProjectRepo interface {
	Create(dbc dbctx.Context, p *types.Project) (*types.Project, error)
	GetByID(dbc dbctx.Context, ownerUserID, id uuid.UUID) (*types.Project, error)
	ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.Project, error)
	SetCurrentVersion(dbc dbctx.Context, id, versionID uuid.UUID) error
	SoftDelete(dbc dbctx.Context, ownerUserID, id uuid.UUID) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

func (r *projectRepo) Create(dbc dbctx.Context, p *types.Project) (*types.Project, error) {
	if p == nil {
		return nil, errors.New("nil project")
	}
	if err := dbc.DB(r.db).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetByID returns nil, nil when the project does not exist or belongs to someone else.
func (r *projectRepo) GetByID(dbc dbctx.Context, ownerUserID, id uuid.UUID) (*types.Project, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var p types.Project
	err := dbc.DB(r.db).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}

func (r *projectRepo) ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.Project, error) {
	var out []*types.Project
	if err := dbc.DB(r.db).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *projectRepo) SetCurrentVersion(dbc dbctx.Context, id, versionID uuid.UUID) error {
	res := dbc.DB(r.db).
		Model(&types.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_version_id": versionID,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *projectRepo) SoftDelete(dbc dbctx.Context, ownerUserID, id uuid.UUID) error {
	return dbc.DB(r.db).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		Delete(&types.Project{}).Error
}
