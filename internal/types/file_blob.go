package types

import (
	"time"

	"github.com/google/uuid"
)

// FileBlob is a content-addressed file snapshot. The (repo_id, blob_sha)
// unique index is what makes re-ingestion of identical content a no-op:
// a new path pointing at previously-seen bytes records nothing new and must
// not re-trigger parsing.
type FileBlob struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RepoID     uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uniq_repo_blob" json:"repo_id"`
	BlobSHA    string    `gorm:"column:blob_sha;not null;uniqueIndex:uniq_repo_blob" json:"blob_sha"`
	Path       string    `gorm:"column:path;not null" json:"path"`
	SizeBytes  int64     `gorm:"column:size_bytes;not null" json:"size_bytes"`
	StorageKey string    `gorm:"column:storage_key;not null" json:"storage_key"`
	CommitSHA  string    `gorm:"column:commit_sha" json:"commit_sha,omitempty"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (FileBlob) TableName() string { return "file_blob" }
