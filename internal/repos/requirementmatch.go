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

// matchTxTimeout bounds the bulk-upsert transaction so lock hold times stay
// bounded. Exceeding it surfaces as a normal operation failure and the caller
// retries.
const matchTxTimeout = 30 * time.Second

type RequirementMatchRepo interface {
	// UpsertMerge writes one match per (requirement_id, node_id). An existing
	// row gets the new score/confidence and the union of old and new match
	// types, so a prior verified tag survives re-matching.
	UpsertMerge(ctx context.Context, tx *gorm.DB, matches []*types.RequirementMatch) ([]*types.RequirementMatch, error)
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.RequirementMatch, error)
	ListByRequirement(ctx context.Context, tx *gorm.DB, requirementID uuid.UUID) ([]*types.RequirementMatch, error)
	ListByRequirementIDs(ctx context.Context, tx *gorm.DB, requirementIDs []uuid.UUID) ([]*types.RequirementMatch, error)
	UpdateTypes(ctx context.Context, tx *gorm.DB, id uuid.UUID, matchTypes []string) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type requirementMatchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRequirementMatchRepo(db *gorm.DB, baseLog *logger.Logger) RequirementMatchRepo {
	return &requirementMatchRepo{db: db, log: baseLog.With("repo", "RequirementMatchRepo")}
}

func (r *requirementMatchRepo) UpsertMerge(ctx context.Context, tx *gorm.DB, matches []*types.RequirementMatch) ([]*types.RequirementMatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(matches) == 0 {
		return []*types.RequirementMatch{}, nil
	}

	txCtx, cancel := context.WithTimeout(ctx, matchTxTimeout)
	defer cancel()

	err := transaction.WithContext(txCtx).Transaction(func(txx *gorm.DB) error {
		for _, m := range matches {
			var existing types.RequirementMatch
			qErr := txx.Where("requirement_id = ? AND node_id = ?", m.RequirementID, m.NodeID).
				Limit(1).
				Find(&existing).Error
			if qErr != nil {
				return qErr
			}
			if existing.ID == uuid.Nil {
				if cErr := txx.Create(m).Error; cErr != nil {
					return cErr
				}
				continue
			}

			merged := types.UnionMatchTypes(existing.Types(), m.Types())
			uErr := txx.Model(&types.RequirementMatch{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"score":       m.Score,
					"confidence":  m.Confidence,
					"match_types": types.EncodeMatchTypes(merged),
					"updated_at":  time.Now(),
				}).Error
			if uErr != nil {
				return uErr
			}
			m.ID = existing.ID
			m.SetTypes(merged)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *requirementMatchRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.RequirementMatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var m types.RequirementMatch
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *requirementMatchRepo) ListByRequirement(ctx context.Context, tx *gorm.DB, requirementID uuid.UUID) ([]*types.RequirementMatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RequirementMatch
	if requirementID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("requirement_id = ?", requirementID).
		Order("score DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *requirementMatchRepo) ListByRequirementIDs(ctx context.Context, tx *gorm.DB, requirementIDs []uuid.UUID) ([]*types.RequirementMatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RequirementMatch
	if len(requirementIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("requirement_id IN ?", requirementIDs).
		Order("requirement_id, score DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *requirementMatchRepo) UpdateTypes(ctx context.Context, tx *gorm.DB, id uuid.UUID, matchTypes []string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.RequirementMatch{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"match_types": types.EncodeMatchTypes(matchTypes),
			"updated_at":  time.Now(),
		}).Error
}

func (r *requirementMatchRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.RequirementMatch{}).Error
}
