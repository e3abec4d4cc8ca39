package types

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Match type tags. Structural is reserved for future structural-diff signals
// and is currently never emitted by the engine; Verified is only ever set by
// an explicit review action and survives re-matching.
const (
	MatchTypeSymbol     = "symbol"
	MatchTypeSemantic   = "semantic"
	MatchTypeStructural = "structural"
	MatchTypeVerified   = "verified"
)

// RequirementMatch is the scored edge between a requirement and a code node.
// At most one row exists per (requirement_id, node_id); re-matching upserts.
type RequirementMatch struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RequirementID uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:uniq_req_node" json:"requirement_id"`
	NodeID        uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:uniq_req_node" json:"node_id"`
	Score         float64        `gorm:"column:score;not null" json:"score"`
	MatchTypes    datatypes.JSON `gorm:"type:jsonb;column:match_types" json:"match_types"`
	Confidence    string         `gorm:"column:confidence;not null;default:'low'" json:"confidence"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (RequirementMatch) TableName() string { return "requirement_match" }

// Types decodes the MatchTypes column. A corrupt column decodes as empty.
func (m *RequirementMatch) Types() []string {
	if len(m.MatchTypes) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(m.MatchTypes, &out); err != nil {
		return nil
	}
	return out
}

// SetTypes encodes tags into the MatchTypes column, deduplicated and sorted
// so upsert comparisons are stable.
func (m *RequirementMatch) SetTypes(tags []string) {
	m.MatchTypes = EncodeMatchTypes(tags)
}

// EncodeMatchTypes normalizes a tag set into its canonical JSON form.
func EncodeMatchTypes(tags []string) datatypes.JSON {
	seen := make(map[string]bool, len(tags))
	uniq := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		uniq = append(uniq, t)
	}
	sort.Strings(uniq)
	raw, _ := json.Marshal(uniq)
	return datatypes.JSON(raw)
}

// UnionMatchTypes merges two tag sets. Re-matching must never drop a tag a
// prior run or a reviewer attached.
func UnionMatchTypes(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	seen := make(map[string]bool, len(merged))
	out := make([]string, 0, len(merged))
	for _, t := range merged {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
