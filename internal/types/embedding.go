package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Confidence tiers shared by embeddings and matches.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// InsufficientContextMarker replaces the summary text whenever the
// summarization call signals it could not ground itself in the input. A
// fabricated summary must never be citable downstream.
const InsufficientContextMarker = "insufficient context"

// Embedding is the derived artifact of one CodeNode version. Vector is null
// when vector generation failed; lexical search covers those nodes.
type Embedding struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	NodeID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"node_id"`
	RepoID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"repo_id"`
	Vector     datatypes.JSON `gorm:"type:jsonb;column:vector" json:"vector,omitempty"`
	Summary    string         `gorm:"column:summary;type:text" json:"summary"`
	Confidence string         `gorm:"column:confidence;not null;default:'low'" json:"confidence"`
	ChunkText  string         `gorm:"column:chunk_text;type:text" json:"chunk_text"`
	Model      string         `gorm:"column:model" json:"model,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Embedding) TableName() string { return "embedding" }
