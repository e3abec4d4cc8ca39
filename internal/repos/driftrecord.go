package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/types"
)

type DriftRecordRepo interface {
	// Create appends audit rows. Drift records are never updated or deleted.
	Create(ctx context.Context, tx *gorm.DB, records []*types.DriftRecord) ([]*types.DriftRecord, error)
	ListByRequirement(ctx context.Context, tx *gorm.DB, requirementID uuid.UUID) ([]*types.DriftRecord, error)
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.DriftRecord, error)
}

type driftRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDriftRecordRepo(db *gorm.DB, baseLog *logger.Logger) DriftRecordRepo {
	return &driftRecordRepo{db: db, log: baseLog.With("repo", "DriftRecordRepo")}
}

func (r *driftRecordRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.DriftRecord) ([]*types.DriftRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(records) == 0 {
		return []*types.DriftRecord{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *driftRecordRepo) ListByRequirement(ctx context.Context, tx *gorm.DB, requirementID uuid.UUID) ([]*types.DriftRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DriftRecord
	if requirementID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("requirement_id = ?", requirementID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *driftRecordRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.DriftRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DriftRecord
	if projectID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
