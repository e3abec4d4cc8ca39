package types

import (
	"time"

	"github.com/google/uuid"
)

// CodeNode kinds. NodeKindFile is the whole-file fallback emitted when
// neither the grammar nor the regex extractor finds a candidate.
const (
	NodeKindFunction = "function"
	NodeKindMethod   = "method"
	NodeKindClass    = "class"
	NodeKindFile     = "file"
)

// CodeNode is a semantic unit of source. Identity is
// (repo_id, file_path, node_path, blob_sha): a node is re-created with a new
// identity whenever the owning blob changes.
type CodeNode struct {
	ID                uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID          uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RepoID            uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uniq_node_identity" json:"repo_id"`
	FilePath          string    `gorm:"column:file_path;not null;uniqueIndex:uniq_node_identity" json:"file_path"`
	NodePath          string    `gorm:"column:node_path;not null;uniqueIndex:uniq_node_identity" json:"node_path"`
	BlobSHA           string    `gorm:"column:blob_sha;not null;uniqueIndex:uniq_node_identity;index" json:"blob_sha"`
	Kind              string    `gorm:"column:kind;not null" json:"kind"`
	Language          string    `gorm:"column:language" json:"language,omitempty"`
	StartLine         int       `gorm:"column:start_line;not null" json:"start_line"`
	EndLine           int       `gorm:"column:end_line;not null" json:"end_line"`
	Text              string    `gorm:"column:text;type:text;not null" json:"text"`
	Summary           string    `gorm:"column:summary;type:text" json:"summary,omitempty"`
	SummaryConfidence string    `gorm:"column:summary_confidence" json:"summary_confidence,omitempty"`
	CreatedAt         time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (CodeNode) TableName() string { return "code_node" }
