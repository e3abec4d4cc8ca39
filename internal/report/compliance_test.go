package report

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tracevine/tracevine-backend/internal/config"
)

func matrixFixture(overall int, rows []Row) *Matrix {
	return &Matrix{
		ProjectID:         uuid.New(),
		GeneratedAt:       "2026-08-01T00:00:00Z",
		Rows:              rows,
		OverallCompletion: overall,
	}
}

func verifiedRow(completion int) Row {
	return Row{
		RequirementID: uuid.New(),
		Title:         "verified requirement",
		Type:          "feature",
		Completion:    completion,
		Band:          BandFull,
		Verified:      true,
		Matches:       []MatchCell{{NodeID: uuid.New(), Score: 0.9, Confidence: "high", MatchTypes: []string{"semantic", "verified"}}},
	}
}

func TestCompliance_UnverifiedRequirementFails(t *testing.T) {
	cfg := config.Defaults().Report

	// Overall 85 and coverage 100% both pass; one row without a verified
	// match must still fail the report.
	rows := []Row{
		verifiedRow(90),
		{
			RequirementID: uuid.New(),
			Title:         "matched but unreviewed",
			Completion:    80,
			Band:          BandFull,
			Verified:      false,
			Matches:       []MatchCell{{NodeID: uuid.New(), Score: 0.8, Confidence: "medium"}},
		},
	}
	rep := Compliance(matrixFixture(85, rows), &cfg, false)
	if rep.IsCompliant {
		t.Fatalf("report must not be compliant: %+v", rep)
	}
	if len(rep.Failures) != 1 {
		t.Fatalf("failures = %v, want exactly the verification failure", rep.Failures)
	}
	if !strings.Contains(rep.Failures[0], "verified") {
		t.Fatalf("failure should name verification: %q", rep.Failures[0])
	}
}

func TestCompliance_AllConditionsPass(t *testing.T) {
	cfg := config.Defaults().Report

	rep := Compliance(matrixFixture(85, []Row{verifiedRow(90), verifiedRow(80)}), &cfg, false)
	if !rep.IsCompliant {
		t.Fatalf("expected compliant, failures: %v", rep.Failures)
	}
	if rep.Matrix != nil {
		t.Fatalf("details excluded but matrix attached")
	}
}

func TestCompliance_LowOverallAndCoverage(t *testing.T) {
	cfg := config.Defaults().Report

	rows := []Row{
		verifiedRow(90),
		{RequirementID: uuid.New(), Title: "unmatched", Completion: 0, Band: BandNone},
	}
	rep := Compliance(matrixFixture(45, rows), &cfg, true)
	if rep.IsCompliant {
		t.Fatalf("expected non-compliant")
	}
	// 45% overall, 50% coverage, one unverified row: three failures.
	if len(rep.Failures) != 3 {
		t.Fatalf("failures = %v, want 3", rep.Failures)
	}
	if rep.Matrix == nil {
		t.Fatalf("includeDetails should attach the matrix")
	}
}

func TestCompliance_EmptyMatrix(t *testing.T) {
	cfg := config.Defaults().Report

	rep := Compliance(matrixFixture(0, nil), &cfg, false)
	if rep.IsCompliant {
		t.Fatalf("empty matrix must not be compliant")
	}
}
