package types

import (
	"testing"
)

func TestEncodeMatchTypes_DedupAndSort(t *testing.T) {
	m := &RequirementMatch{}
	m.SetTypes([]string{"semantic", "symbol", "semantic", ""})
	got := m.Types()
	want := []string{"semantic", "symbol"}
	if len(got) != len(want) {
		t.Fatalf("types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("types = %v, want %v", got, want)
		}
	}
}

func TestUnionMatchTypes_KeepsVerified(t *testing.T) {
	prior := []string{MatchTypeSemantic, MatchTypeVerified}
	fresh := []string{MatchTypeSymbol, MatchTypeSemantic}
	got := UnionMatchTypes(prior, fresh)
	want := []string{MatchTypeSemantic, MatchTypeSymbol, MatchTypeVerified}
	if len(got) != len(want) {
		t.Fatalf("union = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("union = %v, want %v", got, want)
		}
	}
}

func TestTypes_CorruptColumn(t *testing.T) {
	m := &RequirementMatch{MatchTypes: []byte("not json")}
	if got := m.Types(); got != nil {
		t.Fatalf("corrupt column decoded as %v", got)
	}
}
