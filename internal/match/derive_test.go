package match

import (
	"testing"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/types"
)

func TestDeriveTypes(t *testing.T) {
	cfg := config.Defaults().Match

	cases := []struct {
		name    string
		reqText string
		summary string
		snippet string
		score   float64
		want    []string
	}{
		{
			name:    "symbol and semantic",
			reqText: "support webhook delivery retries",
			summary: "Handles webhook delivery with retry backoff",
			score:   0.85,
			want:    []string{types.MatchTypeSymbol, types.MatchTypeSemantic},
		},
		{
			name:    "semantic only",
			reqText: "alpha beta gamma",
			summary: "completely unrelated prose",
			score:   0.75,
			want:    []string{types.MatchTypeSemantic},
		},
		{
			name:    "symbol only below cutoff",
			reqText: "validate authentication tokens",
			snippet: "func checkAuthentication(tok string) error {",
			score:   0.55,
			want:    []string{types.MatchTypeSymbol},
		},
		{
			name:    "neither",
			reqText: "one two",
			summary: "different words here",
			score:   0.4,
			want:    nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveTypes(tc.reqText, tc.summary, tc.snippet, tc.score, &cfg)
			if len(got) != len(tc.want) {
				t.Fatalf("tags = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("tags = %v, want %v", got, tc.want)
				}
			}
			for _, tag := range got {
				if tag == types.MatchTypeStructural {
					t.Fatalf("structural must never be emitted, got %v", got)
				}
			}
		})
	}
}

func TestDeriveConfidence(t *testing.T) {
	cfg := config.Defaults().Match

	cases := []struct {
		score float64
		want  string
	}{
		{0.9, types.ConfidenceHigh},
		{0.81, types.ConfidenceHigh},
		{0.8, types.ConfidenceMedium},
		{0.7, types.ConfidenceMedium},
		{0.61, types.ConfidenceMedium},
		{0.6, types.ConfidenceLow},
		{0.3, types.ConfidenceLow},
		{0, types.ConfidenceLow},
	}
	for _, tc := range cases {
		if got := DeriveConfidence(tc.score, &cfg); got != tc.want {
			t.Fatalf("confidence(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestClampScore(t *testing.T) {
	if got := clampScore(1.2); got != 1 {
		t.Fatalf("clamp(1.2) = %v", got)
	}
	if got := clampScore(-0.1); got != 0 {
		t.Fatalf("clamp(-0.1) = %v", got)
	}
	if got := clampScore(0.42); got != 0.42 {
		t.Fatalf("clamp(0.42) = %v", got)
	}
}
