package runtime

import (
	"testing"
	"time"
)

func TestBackoff_Schedule(t *testing.T) {
	base := 2 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}
	for _, tc := range cases {
		if got := Backoff(base, tc.attempt); got != tc.want {
			t.Fatalf("Backoff(attempt=%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoff_Caps(t *testing.T) {
	if got := Backoff(2*time.Second, 30); got != 5*time.Minute {
		t.Fatalf("uncapped backoff: %v", got)
	}
}

func TestBackoff_DefaultsBase(t *testing.T) {
	if got := Backoff(0, 1); got != 2*time.Second {
		t.Fatalf("zero base = %v, want default 2s", got)
	}
}
