package gap

import (
	"strings"
	"testing"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/types"
)

func mkMatch(score float64, confidence string) *types.RequirementMatch {
	return &types.RequirementMatch{Score: score, Confidence: confidence}
}

func TestCompletion_NoMatches(t *testing.T) {
	if got := Completion(nil); got != 0 {
		t.Fatalf("completion with no matches = %d, want 0", got)
	}
}

func TestCompletion_Deterministic(t *testing.T) {
	// Two high-confidence matches at 0.80 and 0.78:
	// round(100 * (0.80 + 0.78) / 2) = 79.
	ms := []*types.RequirementMatch{
		mkMatch(0.80, types.ConfidenceHigh),
		mkMatch(0.78, types.ConfidenceHigh),
	}
	if got := Completion(ms); got != 79 {
		t.Fatalf("completion = %d, want 79", got)
	}
	// Same input, same output.
	if got := Completion(ms); got != 79 {
		t.Fatalf("completion not deterministic, second run = %d", got)
	}
}

func TestCompletion_ConfidenceWeights(t *testing.T) {
	// high 1.0, medium 0.7, low 0.4:
	// round(100 * (0.9*1.0 + 0.6*0.7 + 0.5*0.4) / (1.0+0.7+0.4))
	// = round(100 * 1.52 / 2.1) = round(72.38) = 72.
	ms := []*types.RequirementMatch{
		mkMatch(0.9, types.ConfidenceHigh),
		mkMatch(0.6, types.ConfidenceMedium),
		mkMatch(0.5, types.ConfidenceLow),
	}
	if got := Completion(ms); got != 72 {
		t.Fatalf("completion = %d, want 72", got)
	}
}

func TestPriority(t *testing.T) {
	cfg := config.Defaults().Gap

	cases := []struct {
		completion int
		reqType    string
		want       string
	}{
		{15, types.RequirementTypeFeature, types.GapPriorityHigh},
		{35, types.RequirementTypeFeature, types.GapPriorityMedium},
		{19, types.RequirementTypeFeature, types.GapPriorityHigh},
		{20, types.RequirementTypeFeature, types.GapPriorityMedium},
		{15, types.RequirementTypeSuggestion, types.GapPriorityLow},
		{35, types.RequirementTypeSuggestion, types.GapPriorityLow},
		{49, types.RequirementTypeSuggestion, types.GapPriorityLow},
	}
	for _, tc := range cases {
		if got := priority(tc.completion, tc.reqType, &cfg); got != tc.want {
			t.Fatalf("priority(%d, %s) = %q, want %q", tc.completion, tc.reqType, got, tc.want)
		}
	}
}

func TestEffort(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"keyword complex", "A complex reconciliation step", types.GapEffortLarge},
		{"keyword integration", "Needs integration with billing", types.GapEffortLarge},
		{"keyword system", "Overhaul the system bootstrap", types.GapEffortLarge},
		{"keyword case-insensitive", "Requires SYSTEM-wide changes", types.GapEffortLarge},
		{"long text", strings.Repeat("requirement detail ", 30), types.GapEffortLarge},
		{"medium text", strings.Repeat("requirement detail ", 12), types.GapEffortMedium},
		{"short text", "Add a flag", types.GapEffortSmall},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Effort(tc.text); got != tc.want {
				t.Fatalf("Effort(%q...) = %q, want %q", tc.text[:10], got, tc.want)
			}
		})
	}
}

func TestGapType(t *testing.T) {
	if got := gapType(0); got != types.GapTypeMissing {
		t.Fatalf("gapType(0) = %q", got)
	}
	if got := gapType(3); got != types.GapTypePartial {
		t.Fatalf("gapType(3) = %q", got)
	}
}
