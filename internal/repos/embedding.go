package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/types"
)

type EmbeddingRepo interface {
	// Upsert writes the embedding for one node version. NodeID is unique, so
	// re-embedding the same node overwrites rather than duplicates.
	Upsert(ctx context.Context, tx *gorm.DB, emb *types.Embedding) (*types.Embedding, error)
	GetByNodeID(ctx context.Context, tx *gorm.DB, nodeID uuid.UUID) (*types.Embedding, error)
	GetByNodeIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) ([]*types.Embedding, error)
	ListByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) ([]*types.Embedding, error)
	DeleteByNodeIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) error
}

type embeddingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmbeddingRepo(db *gorm.DB, baseLog *logger.Logger) EmbeddingRepo {
	return &embeddingRepo{db: db, log: baseLog.With("repo", "EmbeddingRepo")}
}

func (r *embeddingRepo) Upsert(ctx context.Context, tx *gorm.DB, emb *types.Embedding) (*types.Embedding, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if emb == nil {
		return nil, nil
	}
	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "node_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"vector", "summary", "confidence", "chunk_text", "model", "updated_at",
			}),
		}).
		Create(emb).Error
	if err != nil {
		return nil, err
	}
	return emb, nil
}

func (r *embeddingRepo) GetByNodeID(ctx context.Context, tx *gorm.DB, nodeID uuid.UUID) (*types.Embedding, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if nodeID == uuid.Nil {
		return nil, nil
	}
	var emb types.Embedding
	err := transaction.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Limit(1).
		Find(&emb).Error
	if err != nil {
		return nil, err
	}
	if emb.ID == uuid.Nil {
		return nil, nil
	}
	return &emb, nil
}

func (r *embeddingRepo) GetByNodeIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) ([]*types.Embedding, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Embedding
	if len(nodeIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("node_id IN ?", nodeIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *embeddingRepo) ListByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) ([]*types.Embedding, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Embedding
	if repoID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("repo_id = ?", repoID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *embeddingRepo) DeleteByNodeIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(nodeIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("node_id IN ?", nodeIDs).
		Delete(&types.Embedding{}).Error
}
