package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/tracevine/tracevine-backend/internal/pkg/errors"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/types"
)

type CodeNodeRepo interface {
	// UpsertBatch writes nodes keyed by (repo_id, file_path, node_path,
	// blob_sha). Redelivered parse jobs overwrite in place, never duplicate.
	UpsertBatch(ctx context.Context, tx *gorm.DB, nodes []*types.CodeNode) ([]*types.CodeNode, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CodeNode, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.CodeNode, error)
	ListByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) ([]*types.CodeNode, error)
	// ListIDsByPath returns the node ids recorded for one file path. A
	// non-empty keepBlobSHA excludes that blob's rows, leaving only the
	// superseded versions.
	ListIDsByPath(ctx context.Context, tx *gorm.DB, repoID uuid.UUID, filePath, keepBlobSHA string) ([]uuid.UUID, error)
	ListPathsByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) ([]string, error)
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	UpdateSummary(ctx context.Context, tx *gorm.DB, id uuid.UUID, summary, confidence string) error
	CountByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) (int64, error)
}

type codeNodeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCodeNodeRepo(db *gorm.DB, baseLog *logger.Logger) CodeNodeRepo {
	return &codeNodeRepo{db: db, log: baseLog.With("repo", "CodeNodeRepo")}
}

func (r *codeNodeRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, nodes []*types.CodeNode) ([]*types.CodeNode, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(nodes) == 0 {
		return []*types.CodeNode{}, nil
	}

	// Keep batches small because Text is large.
	const batchSize = 50

	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "repo_id"}, {Name: "file_path"}, {Name: "node_path"}, {Name: "blob_sha"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"kind", "language", "start_line", "end_line", "text", "updated_at",
			}),
		}).
		CreateInBatches(nodes, batchSize).Error
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *codeNodeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CodeNode, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var node types.CodeNode
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *codeNodeRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.CodeNode, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CodeNode
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *codeNodeRepo) ListByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) ([]*types.CodeNode, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CodeNode
	if repoID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("repo_id = ?", repoID).
		Order("file_path, start_line ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *codeNodeRepo) ListIDsByPath(ctx context.Context, tx *gorm.DB, repoID uuid.UUID, filePath, keepBlobSHA string) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if repoID == uuid.Nil || filePath == "" {
		return ids, nil
	}
	q := transaction.WithContext(ctx).
		Model(&types.CodeNode{}).
		Where("repo_id = ? AND file_path = ?", repoID, filePath)
	if keepBlobSHA != "" {
		q = q.Where("blob_sha <> ?", keepBlobSHA)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *codeNodeRepo) ListPathsByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var paths []string
	if repoID == uuid.Nil {
		return paths, nil
	}
	if err := transaction.WithContext(ctx).
		Model(&types.CodeNode{}).
		Where("repo_id = ?", repoID).
		Distinct().
		Pluck("file_path", &paths).Error; err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *codeNodeRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.CodeNode{}).Error
}

func (r *codeNodeRepo) UpdateSummary(ctx context.Context, tx *gorm.DB, id uuid.UUID, summary, confidence string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.CodeNode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"summary":            summary,
			"summary_confidence": confidence,
			"updated_at":         time.Now(),
		}).Error
}

func (r *codeNodeRepo) CountByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.CodeNode{}).
		Where("repo_id = ?", repoID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
