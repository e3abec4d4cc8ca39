package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/types"
)

type FileBlobRepo interface {
	// InsertIfAbsent records a blob keyed by (repo_id, blob_sha) and reports
	// whether the row was newly inserted. Dedup hinges on this: an existing
	// row means the content was already stored and parsed.
	InsertIfAbsent(ctx context.Context, tx *gorm.DB, blob *types.FileBlob) (bool, error)
	GetByRepoAndSHA(ctx context.Context, tx *gorm.DB, repoID uuid.UUID, blobSHA string) (*types.FileBlob, error)
	CountByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) (int64, error)
	// DeleteByRepoPath forgets the blob rows of one path so a later re-add of
	// the same content is treated as new and reparsed.
	DeleteByRepoPath(ctx context.Context, tx *gorm.DB, repoID uuid.UUID, path string) error
	DeleteByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) error
}

type fileBlobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileBlobRepo(db *gorm.DB, baseLog *logger.Logger) FileBlobRepo {
	return &fileBlobRepo{db: db, log: baseLog.With("repo", "FileBlobRepo")}
}

func (r *fileBlobRepo) InsertIfAbsent(ctx context.Context, tx *gorm.DB, blob *types.FileBlob) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if blob == nil {
		return false, nil
	}
	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repo_id"}, {Name: "blob_sha"}},
			DoNothing: true,
		}).
		Create(blob)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *fileBlobRepo) GetByRepoAndSHA(ctx context.Context, tx *gorm.DB, repoID uuid.UUID, blobSHA string) (*types.FileBlob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if repoID == uuid.Nil || blobSHA == "" {
		return nil, nil
	}
	var blob types.FileBlob
	err := transaction.WithContext(ctx).
		Where("repo_id = ? AND blob_sha = ?", repoID, blobSHA).
		Limit(1).
		Find(&blob).Error
	if err != nil {
		return nil, err
	}
	if blob.ID == uuid.Nil {
		return nil, nil
	}
	return &blob, nil
}

func (r *fileBlobRepo) CountByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.FileBlob{}).
		Where("repo_id = ?", repoID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *fileBlobRepo) DeleteByRepoPath(ctx context.Context, tx *gorm.DB, repoID uuid.UUID, path string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if repoID == uuid.Nil || path == "" {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("repo_id = ? AND path = ?", repoID, path).
		Delete(&types.FileBlob{}).Error
}

func (r *fileBlobRepo) DeleteByRepo(ctx context.Context, tx *gorm.DB, repoID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if repoID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("repo_id = ?", repoID).
		Delete(&types.FileBlob{}).Error
}
