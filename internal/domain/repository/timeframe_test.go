package repository

import (
	"testing"
	"time"
)

func TestNormalizeTimeframe(t *testing.T) {
	cases := map[string]Timeframe{
		"":    TF1m,
		"1m":  TF1m,
		"5m":  TF5m,
		"1h":  TF1h,
		"13m": TF1m,
	}
	for in, want := range cases {
		if got := NormalizeTimeframe(in); got != want {
			t.Fatalf("NormalizeTimeframe(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestTimeframeDuration(t *testing.T) {
	if TF5m.Duration() != 5*time.Minute {
		t.Fatalf("unexpected 5m duration %v", TF5m.Duration())
	}
	if TF1h.Minutes() != 60 {
		t.Fatalf("unexpected 1h minutes %v", TF1h.Minutes())
	}
}
