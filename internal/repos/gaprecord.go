package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/types"
)

type GapRecordRepo interface {
	// UpsertBatch refreshes the per-requirement gap cache.
	UpsertBatch(ctx context.Context, tx *gorm.DB, records []*types.GapRecord) ([]*types.GapRecord, error)
	// DeleteStale removes records for project requirements that are no longer
	// gapped. keep may be empty, which clears the whole project.
	DeleteStale(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, keep []uuid.UUID) error
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.GapRecord, error)
}

type gapRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGapRecordRepo(db *gorm.DB, baseLog *logger.Logger) GapRecordRepo {
	return &gapRecordRepo{db: db, log: baseLog.With("repo", "GapRecordRepo")}
}

func (r *gapRecordRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, records []*types.GapRecord) ([]*types.GapRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(records) == 0 {
		return []*types.GapRecord{}, nil
	}
	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "requirement_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"gap_type", "completion", "priority", "effort", "suggestions", "updated_at",
			}),
		}).
		Create(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *gapRecordRepo) DeleteStale(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, keep []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if projectID == uuid.Nil {
		return nil
	}
	q := transaction.WithContext(ctx).Where("project_id = ?", projectID)
	if len(keep) > 0 {
		q = q.Where("requirement_id NOT IN ?", keep)
	}
	return q.Delete(&types.GapRecord{}).Error
}

func (r *gapRecordRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.GapRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.GapRecord
	if projectID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("completion ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
