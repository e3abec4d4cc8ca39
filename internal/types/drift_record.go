package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	DriftSeverityCritical = "critical"
	DriftSeverityHigh     = "high"
	DriftSeverityMedium   = "medium"
)

// DriftRecord is an append-only audit row capturing one detected degradation
// of a requirement's aggregate match quality. OldScore/NewScore are averages
// over the drifted matches only. Rows are never mutated after creation.
type DriftRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RequirementID uuid.UUID `gorm:"type:uuid;not null;index" json:"requirement_id"`
	ProjectID     uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Severity      string    `gorm:"column:severity;not null" json:"severity"`
	OldScore      float64   `gorm:"column:old_score;not null" json:"old_score"`
	NewScore      float64   `gorm:"column:new_score;not null" json:"new_score"`
	DriftedCount  int       `gorm:"column:drifted_count;not null" json:"drifted_count"`
	TotalCount    int       `gorm:"column:total_count;not null" json:"total_count"`
	CreatedAt     time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (DriftRecord) TableName() string { return "drift_record" }
