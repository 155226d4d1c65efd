package weather

import (
	"math/rand"
	"slices"
	"testing"
)

func TestSeasonalTables(t *testing.T) {
	for _, season := range []string{"spring", "summer", "autumn", "winter"} {
		if got := len(Seasonal(season)); got != 5 {
			t.Errorf("Seasonal(%s) has %d entries, want 5", season, got)
		}
	}
	if !slices.Equal(Seasonal("monsoon"), Seasonal("spring")) {
		t.Error("unknown season should fall back to spring")
	}
}

func TestChurnDiffersFromSeasonal(t *testing.T) {
	if slices.Contains(Churn("summer"), "dry") {
		t.Error("summer churn table should not contain dry")
	}
	if !slices.Contains(Churn("autumn"), "stormy") {
		t.Error("autumn should use the default churn table")
	}
}

func TestDrawsStayInTable(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		if w := ForSeason("winter", rng); !slices.Contains(Seasonal("winter"), w) {
			t.Fatalf("ForSeason(winter) = %q", w)
		}
		if w := Drift("summer", rng); !slices.Contains(Churn("summer"), w) {
			t.Fatalf("Drift(summer) = %q", w)
		}
		if w := ExtremeEvent(rng); !slices.Contains(Extreme, w) {
			t.Fatalf("ExtremeEvent = %q", w)
		}
	}
}
