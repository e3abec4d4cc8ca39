package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	GapTypeMissing = "missing"
	GapTypePartial = "partial"

	GapPriorityHigh   = "high"
	GapPriorityMedium = "medium"
	GapPriorityLow    = "low"

	GapEffortSmall  = "small"
	GapEffortMedium = "medium"
	GapEffortLarge  = "large"
)

// GapRecord is the per-requirement classification refreshed on each analysis
// run. It is a cache over match state, not a source of truth: each run
// upserts by requirement and deletes rows for requirements no longer gapped.
type GapRecord struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RequirementID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"requirement_id"`
	ProjectID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	GapType       string         `gorm:"column:gap_type;not null" json:"gap_type"`
	Completion    int            `gorm:"column:completion;not null" json:"completion"`
	Priority      string         `gorm:"column:priority;not null" json:"priority"`
	Effort        string         `gorm:"column:effort;not null" json:"effort"`
	Suggestions   datatypes.JSON `gorm:"type:jsonb;column:suggestions" json:"suggestions,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (GapRecord) TableName() string { return "gap_record" }
