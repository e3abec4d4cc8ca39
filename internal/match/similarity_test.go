package match

import (
	"math"
	"testing"
)

func TestCosine_Identity(t *testing.T) {
	v := []float32{0.5, 0.1, 0.8}
	got := Cosine(v, v)
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("cosine of identical vectors = %v, want 1", got)
	}
}

func TestCosine_Degenerate(t *testing.T) {
	if got := Cosine([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("dimension mismatch = %v, want 0", got)
	}
	if got := Cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Fatalf("zero magnitude = %v, want 0", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Fatalf("empty vectors = %v, want 0", got)
	}
}

func TestCosine_Orthogonal(t *testing.T) {
	got := Cosine([]float32{1, 0}, []float32{0, 1})
	if math.Abs(got) > 1e-9 {
		t.Fatalf("orthogonal vectors = %v, want 0", got)
	}
}

func TestTokenize_DropsShortTokens(t *testing.T) {
	got := Tokenize("The user ID is db-backed, v2 ok")
	want := map[string]bool{"the": true, "user": true, "backed": true}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want keys %v", got, want)
	}
	for _, tok := range got {
		if !want[tok] {
			t.Fatalf("unexpected token %q in %v", tok, got)
		}
	}
}

func TestJaccard_Values(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "parse the config file", "parse the config file", 1},
		{"disjoint", "alpha beta", "gamma delta", 0},
		{"both empty", "", "", 0},
		{"half overlap", "alpha beta gamma", "alpha beta delta", 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Jaccard(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Jaccard(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestJaccard_Bounds(t *testing.T) {
	got := Jaccard("requirement text about caching layers", "caching layers with eviction policies and metrics")
	if got < 0 || got > 1 {
		t.Fatalf("Jaccard out of [0,1]: %v", got)
	}
}
