package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RequirementTypeFeature    = "feature"
	RequirementTypeSuggestion = "suggestion"

	RequirementStatusPending  = "pending"
	RequirementStatusAccepted = "accepted"
	RequirementStatusRejected = "rejected"
)

// Requirement is a natural-language unit extracted from a document. Text
// edits bump Version and append a RequirementRevision; prior text is never
// lost in place.
type Requirement struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProjectID uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Text      string         `gorm:"column:text;type:text;not null" json:"text"`
	Type      string         `gorm:"column:type;not null;default:'feature'" json:"type"`
	Status    string         `gorm:"column:status;not null;default:'pending';index" json:"status"`
	Version   int            `gorm:"column:version;not null;default:1" json:"version"`
	VectorID  string         `gorm:"column:vector_id" json:"vector_id,omitempty"`
	Source    string         `gorm:"column:source" json:"source,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Requirement) TableName() string { return "requirement" }

// RequirementRevision is the append-only history of a requirement's text.
type RequirementRevision struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RequirementID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uniq_req_version" json:"requirement_id"`
	Version       int       `gorm:"column:version;not null;uniqueIndex:uniq_req_version" json:"version"`
	Title         string    `gorm:"column:title;not null" json:"title"`
	Text          string    `gorm:"column:text;type:text;not null" json:"text"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (RequirementRevision) TableName() string { return "requirement_revision" }
