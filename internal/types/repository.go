package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository status values. The lifecycle is
// pending -> indexing -> {indexed | failed}; indexed repositories re-enter
// indexing on re-sync; failed is terminal until a manual retry resets it to
// pending.
const (
	RepoStatusPending  = "pending"
	RepoStatusIndexing = "indexing"
	RepoStatusIndexed  = "indexed"
	RepoStatusFailed   = "failed"
)

// RepositorySnapshot is the mutable head record for one source repository.
// Immutable history lives in the content-addressed blobs, not here.
type RepositorySnapshot struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID      uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:uniq_repo_identity" json:"tenant_id"`
	Provider      string         `gorm:"column:provider;not null;uniqueIndex:uniq_repo_identity" json:"provider"`
	Owner         string         `gorm:"column:owner;not null;uniqueIndex:uniq_repo_identity" json:"owner"`
	Name          string         `gorm:"column:name;not null;uniqueIndex:uniq_repo_identity" json:"name"`
	URL           string         `gorm:"column:url;not null" json:"url"`
	DefaultBranch string         `gorm:"column:default_branch;not null;default:'main'" json:"default_branch"`
	LatestSHA     string         `gorm:"column:latest_sha" json:"latest_sha,omitempty"`
	Status        string         `gorm:"column:status;not null;default:'pending';index" json:"status"`
	LastError     string         `gorm:"column:last_error" json:"last_error,omitempty"`
	FileCount     int            `gorm:"column:file_count;not null;default:0" json:"file_count"`
	NodeCount     int            `gorm:"column:node_count;not null;default:0" json:"node_count"`
	LastIndexedAt *time.Time     `gorm:"column:last_indexed_at" json:"last_indexed_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RepositorySnapshot) TableName() string { return "repository" }
