package entropy

import "testing"

func TestFixedSeedIsReproducible(t *testing.T) {
	a, b := New(17), New(17)
	for i := 0; i < 10; i++ {
		if x, y := a.Int63(), b.Int63(); x != y {
			t.Fatalf("draw %d differs: %d vs %d", i, x, y)
		}
	}
}

func TestSeedIsPositive(t *testing.T) {
	for i := 0; i < 20; i++ {
		if s := Seed(); s <= 0 {
			t.Fatalf("Seed() = %d", s)
		}
	}
}
