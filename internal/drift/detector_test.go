package drift

import (
	"testing"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/types"
)

func TestDrifted_Thresholds(t *testing.T) {
	cfg := config.Defaults().Drift

	cases := []struct {
		name     string
		current  float64
		original float64
		want     bool
	}{
		{"big drop drifts", 0.50, 0.75, true},
		{"small drop holds", 0.60, 0.75, false},
		{"below validity floor drifts", 0.25, 0.30, true},
		{"missing node drifts", 0, 0.9, true},
		{"exactly at floor holds", 0.30, 0.35, false},
		{"drop exactly at threshold holds", 0.55, 0.75, false},
		{"improvement never drifts", 0.95, 0.70, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Drifted(tc.current, tc.original, &cfg); got != tc.want {
				t.Fatalf("Drifted(%v, %v) = %v, want %v", tc.current, tc.original, got, tc.want)
			}
		})
	}
}

func TestSeverity(t *testing.T) {
	cases := []struct {
		drifted, total int
		want           string
	}{
		{4, 4, types.DriftSeverityCritical},
		{3, 4, types.DriftSeverityHigh},
		{2, 4, types.DriftSeverityMedium},
		{1, 4, types.DriftSeverityMedium},
		{1, 1, types.DriftSeverityCritical},
		{1, 2, types.DriftSeverityMedium},
	}
	for _, tc := range cases {
		if got := severity(tc.drifted, tc.total); got != tc.want {
			t.Fatalf("severity(%d/%d) = %q, want %q", tc.drifted, tc.total, got, tc.want)
		}
	}
}

func TestDecodeVector(t *testing.T) {
	if v := decodeVector([]byte(`[0.1, 0.2]`)); len(v) != 2 {
		t.Fatalf("decode = %v, want 2 elements", v)
	}
	if v := decodeVector(nil); v != nil {
		t.Fatalf("decode(nil) = %v, want nil", v)
	}
	if v := decodeVector([]byte(`not json`)); v != nil {
		t.Fatalf("decode(garbage) = %v, want nil", v)
	}
}
