package design

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/roomviz-backend/internal/domain"
	domaindesign "github.com/yungbote/roomviz-backend/internal/domain/design"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

// ErrDuplicateLabel is returned when a label collides case-insensitively within a project.
var ErrDuplicateLabel = errors.New("region label already used in project")

type RegionRepo interface {
	Create(dbc dbctx.Context, region *types.Region) (*types.Region, error)
	GetByID(dbc dbctx.Context, projectID, id uuid.UUID) (*types.Region, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.Region, error)
	LabelTaken(dbc dbctx.Context, projectID uuid.UUID, label string, exceptID uuid.UUID) (bool, error)
	Rename(dbc dbctx.Context, projectID, id uuid.UUID, label string) error
	UpdatePoints(dbc dbctx.Context, projectID, id uuid.UUID, points []float64) error
	SetAppliedColor(dbc dbctx.Context, projectID, id uuid.UUID, value string) error
	SetMarker(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID, key string, imageID uuid.UUID) error
	Delete(dbc dbctx.Context, projectID, id uuid.UUID) error
	DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) error
}

type regionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRegionRepo(db *gorm.DB, baseLog *logger.Logger) RegionRepo {
	return &regionRepo{db: db, log: baseLog.With("repo", "RegionRepo")}
}

func (r *regionRepo) Create(dbc dbctx.Context, region *types.Region) (*types.Region, error) {
	if region == nil {
		return nil, errors.New("nil region")
	}
	taken, err := r.LabelTaken(dbc, region.ProjectID, region.Label, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateLabel
	}
	if err := dbc.DB(r.db).Create(region).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateLabel
		}
		return nil, err
	}
	return region, nil
}

func (r *regionRepo) GetByID(dbc dbctx.Context, projectID, id uuid.UUID) (*types.Region, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Region
	err := dbc.DB(r.db).
		Where("id = ? AND project_id = ?", id, projectID).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *regionRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.Region, error) {
	var out []*types.Region
	if err := dbc.DB(r.db).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *regionRepo) LabelTaken(dbc dbctx.Context, projectID uuid.UUID, label string, exceptID uuid.UUID) (bool, error) {
	q := dbc.DB(r.db).
		Model(&types.Region{}).
		Where("project_id = ? AND label_key = ?", projectID, domaindesign.LabelKey(label))
	if exceptID != uuid.Nil {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *regionRepo) Rename(dbc dbctx.Context, projectID, id uuid.UUID, label string) error {
	taken, err := r.LabelTaken(dbc, projectID, label, id)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateLabel
	}
	label = domaindesign.TrimLabel(label)
	err = r.update(dbc, projectID, id, map[string]interface{}{
		"label":     label,
		"label_key": domaindesign.LabelKey(label),
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateLabel
	}
	return err
}

func (r *regionRepo) UpdatePoints(dbc dbctx.Context, projectID, id uuid.UUID, points []float64) error {
	if !domaindesign.PointsNormalized(points) {
		return domaindesign.ErrPointsNotNormalized
	}
	// New geometry invalidates any cached overlay.
	return r.update(dbc, projectID, id, map[string]interface{}{
		"points":                     datatypes.JSONSlice[float64](points),
		"marker_image_key":           "",
		"marker_created_on_image_id": nil,
	})
}

func (r *regionRepo) SetAppliedColor(dbc dbctx.Context, projectID, id uuid.UUID, value string) error {
	return r.update(dbc, projectID, id, map[string]interface{}{"applied_color": value})
}

func (r *regionRepo) SetMarker(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID, key string, imageID uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Session(&gorm.Session{SkipHooks: true}).
		Model(&types.Region{}).
		Where("project_id = ? AND id IN ?", projectID, ids).
		Updates(map[string]interface{}{
			"marker_image_key":           key,
			"marker_created_on_image_id": imageID,
			"updated_at":                 time.Now(),
		}).Error
}

func (r *regionRepo) Delete(dbc dbctx.Context, projectID, id uuid.UUID) error {
	res := dbc.DB(r.db).
		Where("id = ? AND project_id = ?", id, projectID).
		Delete(&types.Region{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *regionRepo) DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) error {
	return dbc.DB(r.db).
		Where("project_id = ?", projectID).
		Delete(&types.Region{}).Error
}

func (r *regionRepo) update(dbc dbctx.Context, projectID, id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	res := dbc.DB(r.db).
		Session(&gorm.Session{SkipHooks: true}).
		Model(&types.Region{}).
		Where("id = ? AND project_id = ?", id, projectID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
