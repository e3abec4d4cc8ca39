package report

import (
	"github.com/google/uuid"

	"github.com/tracevine/tracevine-backend/internal/types"
)

// Coverage bands for one requirement row.
const (
	BandFull    = "full"
	BandPartial = "partial"
	BandNone    = "none"
)

// MatchCell is one requirement-to-node edge as it appears in the matrix.
type MatchCell struct {
	NodeID     uuid.UUID `json:"node_id"`
	FilePath   string    `json:"file_path"`
	NodePath   string    `json:"node_path"`
	Score      float64   `json:"score"`
	MatchTypes []string  `json:"match_types"`
	Confidence string    `json:"confidence"`
}

// Row is one requirement with its matched code and completion.
type Row struct {
	RequirementID uuid.UUID   `json:"requirement_id"`
	Title         string      `json:"title"`
	Type          string      `json:"type"`
	Status        string      `json:"status"`
	Completion    int         `json:"completion"`
	Band          string      `json:"band"`
	Verified      bool        `json:"verified"`
	Matches       []MatchCell `json:"matches"`
}

// Matrix is the full traceability picture for one project. Every export and
// the compliance verdict are projections of this one struct.
type Matrix struct {
	ProjectID         uuid.UUID `json:"project_id"`
	GeneratedAt       string    `json:"generated_at"`
	Rows              []Row     `json:"rows"`
	OverallCompletion int       `json:"overall_completion"`
	FullCount         int       `json:"full_count"`
	PartialCount      int       `json:"partial_count"`
	NoneCount         int       `json:"none_count"`
}

func band(completion, fullBand int) string {
	switch {
	case completion >= fullBand:
		return BandFull
	case completion > 0:
		return BandPartial
	default:
		return BandNone
	}
}

func hasVerified(ms []*types.RequirementMatch) bool {
	for _, m := range ms {
		for _, t := range m.Types() {
			if t == types.MatchTypeVerified {
				return true
			}
		}
	}
	return false
}
