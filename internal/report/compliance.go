package report

import (
	"fmt"

	"github.com/tracevine/tracevine-backend/internal/config"
)

// ComplianceReport is the pass/fail verdict over one matrix. Failures lists
// every unmet condition; a compliant report has none.
type ComplianceReport struct {
	ProjectID         string   `json:"project_id"`
	GeneratedAt       string   `json:"generated_at"`
	IsCompliant       bool     `json:"is_compliant"`
	OverallCompletion int      `json:"overall_completion"`
	Coverage          float64  `json:"coverage"`
	Failures          []string `json:"failures,omitempty"`
	Matrix            *Matrix  `json:"matrix,omitempty"`
}

// Compliance judges a matrix: overall completion, match coverage of accepted
// requirements, and (when required) a verified match on every row. Every
// miss is listed; any miss fails the report.
func Compliance(m *Matrix, cfg *config.ReportConfig, includeDetails bool) *ComplianceReport {
	rep := &ComplianceReport{
		ProjectID:         m.ProjectID.String(),
		GeneratedAt:       m.GeneratedAt,
		OverallCompletion: m.OverallCompletion,
	}
	if includeDetails {
		rep.Matrix = m
	}

	matched := 0
	unverified := 0
	for _, row := range m.Rows {
		if len(row.Matches) > 0 {
			matched++
		}
		if !row.Verified {
			unverified++
		}
	}
	if len(m.Rows) > 0 {
		rep.Coverage = float64(matched) / float64(len(m.Rows))
	}

	if m.OverallCompletion < cfg.MinOverall {
		rep.Failures = append(rep.Failures, fmt.Sprintf("overall completion %d%% below required %d%%", m.OverallCompletion, cfg.MinOverall))
	}
	if rep.Coverage < cfg.MinCoverage {
		rep.Failures = append(rep.Failures, fmt.Sprintf("match coverage %.0f%% below required %.0f%%", rep.Coverage*100, cfg.MinCoverage*100))
	}
	if cfg.RequireVerified && unverified > 0 {
		rep.Failures = append(rep.Failures, fmt.Sprintf("%d accepted requirement(s) lack a verified match", unverified))
	}
	rep.IsCompliant = len(rep.Failures) == 0
	return rep
}
