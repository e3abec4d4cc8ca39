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

type RepositoryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, repo *types.RepositorySnapshot) (*types.RepositorySnapshot, error)
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.RepositorySnapshot, error)
	GetByIdentity(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, provider, owner, name string) (*types.RepositorySnapshot, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]*types.RepositorySnapshot, error)
	ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) ([]*types.RepositorySnapshot, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	// TransitionStatus moves the repository from one status to another and
	// reports whether the transition actually applied. A zero-row update means
	// another worker already moved the row.
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string) (bool, error)
}

type repositoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepositoryRepo(db *gorm.DB, baseLog *logger.Logger) RepositoryRepo {
	return &repositoryRepo{db: db, log: baseLog.With("repo", "RepositoryRepo")}
}

func (r *repositoryRepo) Create(ctx context.Context, tx *gorm.DB, repo *types.RepositorySnapshot) (*types.RepositorySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if repo == nil {
		return nil, apperrors.ErrInvalidArgument
	}
	if err := transaction.WithContext(ctx).Create(repo).Error; err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *repositoryRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.RepositorySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var repo types.RepositorySnapshot
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&repo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

func (r *repositoryRepo) GetByIdentity(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, provider, owner, name string) (*types.RepositorySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var repo types.RepositorySnapshot
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND provider = ? AND owner = ? AND name = ?", tenantID, provider, owner, name).
		First(&repo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

func (r *repositoryRepo) GetByIDs(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]*types.RepositorySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RepositorySnapshot
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repositoryRepo) ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) ([]*types.RepositorySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RepositorySnapshot
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repositoryRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.RepositorySnapshot{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repositoryRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.RepositorySnapshot{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
