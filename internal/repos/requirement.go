package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/tracevine/tracevine-backend/internal/pkg/errors"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/types"
)

type RequirementRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, reqs []*types.Requirement) ([]*types.Requirement, error)
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.Requirement, error)
	ListByProject(ctx context.Context, tx *gorm.DB, tenantID, projectID uuid.UUID) ([]*types.Requirement, error)
	ListAcceptedByProject(ctx context.Context, tx *gorm.DB, tenantID, projectID uuid.UUID) ([]*types.Requirement, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	SetVectorID(ctx context.Context, tx *gorm.DB, id uuid.UUID, vectorID string) error
	// ReviseText bumps Version, rewrites Title/Text and appends the prior
	// content as a RequirementRevision inside one transaction. History is
	// append-only.
	ReviseText(ctx context.Context, tx *gorm.DB, id uuid.UUID, title, text string) (*types.Requirement, error)
	ListRevisions(ctx context.Context, tx *gorm.DB, requirementID uuid.UUID) ([]*types.RequirementRevision, error)
}

type requirementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRequirementRepo(db *gorm.DB, baseLog *logger.Logger) RequirementRepo {
	return &requirementRepo{db: db, log: baseLog.With("repo", "RequirementRepo")}
}

func (r *requirementRepo) CreateBatch(ctx context.Context, tx *gorm.DB, reqs []*types.Requirement) ([]*types.Requirement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(reqs) == 0 {
		return []*types.Requirement{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *requirementRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.Requirement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var req types.Requirement
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requirementRepo) ListByProject(ctx context.Context, tx *gorm.DB, tenantID, projectID uuid.UUID) ([]*types.Requirement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Requirement
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND project_id = ?", tenantID, projectID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *requirementRepo) ListAcceptedByProject(ctx context.Context, tx *gorm.DB, tenantID, projectID uuid.UUID) ([]*types.Requirement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Requirement
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND project_id = ? AND status = ?", tenantID, projectID, types.RequirementStatusAccepted).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *requirementRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Requirement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *requirementRepo) SetVectorID(ctx context.Context, tx *gorm.DB, id uuid.UUID, vectorID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Requirement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"vector_id":  vectorID,
			"updated_at": time.Now(),
		}).Error
}

func (r *requirementRepo) ReviseText(ctx context.Context, tx *gorm.DB, id uuid.UUID, title, text string) (*types.Requirement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var updated *types.Requirement
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var req types.Requirement
		if err := txx.Where("id = ?", id).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		rev := &types.RequirementRevision{
			TenantID:      req.TenantID,
			RequirementID: req.ID,
			Version:       req.Version,
			Title:         req.Title,
			Text:          req.Text,
		}
		if err := txx.Create(rev).Error; err != nil {
			return err
		}

		if err := txx.Model(&types.Requirement{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"title":      title,
				"text":       text,
				"version":    req.Version + 1,
				"vector_id":  "", // stale vector: text changed
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		req.Title = title
		req.Text = text
		req.Version = req.Version + 1
		req.VectorID = ""
		updated = &req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *requirementRepo) ListRevisions(ctx context.Context, tx *gorm.DB, requirementID uuid.UUID) ([]*types.RequirementRevision, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RequirementRevision
	if requirementID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("requirement_id = ?", requirementID).
		Order("version ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
