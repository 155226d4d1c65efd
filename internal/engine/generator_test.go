package engine

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/talgya/fantasy-chronicle/internal/lore"
)

var headerRE = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] Eldoria Event #(\d+) \(([A-Z][a-z]+)\):$`)

func TestGenerateOrdinalsIncreaseByOne(t *testing.T) {
	g := NewGenerator("Eldoria", lore.Default(), rand.New(rand.NewSource(1)))
	for want := 1; want <= 20; want++ {
		ev := g.Generate()
		if ev.ID != want {
			t.Fatalf("event %d has id %d", want, ev.ID)
		}
	}
	if g.Count() != 20 {
		t.Fatalf("Count = %d", g.Count())
	}
}

func TestGenerateResumesAfterLastID(t *testing.T) {
	g := NewGenerator("Eldoria", lore.Default(), rand.New(rand.NewSource(2)))
	g.Resume(41)
	if ev := g.Generate(); ev.ID != 42 {
		t.Fatalf("first id after resume = %d, want 42", ev.ID)
	}
}

func TestGenerateFormat(t *testing.T) {
	v := lore.Default()
	g := NewGenerator("Eldoria", v, rand.New(rand.NewSource(3)))
	g.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }

	for i := 0; i < 50; i++ {
		ev := g.Generate()
		header, body, ok := strings.Cut(ev.Text, "\n")
		if !ok {
			t.Fatalf("no body line in %q", ev.Text)
		}
		m := headerRE.FindStringSubmatch(header)
		if m == nil {
			t.Fatalf("bad header %q", header)
		}
		if !strings.HasPrefix(header, "[2025-06-01 09:30:00]") || ev.Timestamp != "2025-06-01 09:30:00" {
			t.Fatalf("timestamp in %q", header)
		}
		if !v.HasCategory(ev.Category) || strings.ToLower(m[2]) != ev.Category {
			t.Fatalf("category %q / header %q", ev.Category, m[2])
		}
		if body != ev.Body || strings.Contains(body, "{location}") {
			t.Fatalf("body %q", body)
		}
	}
}

func TestSummary(t *testing.T) {
	tests := map[string]string{
		"header\nbody":        "body",
		"header\nbody\nextra": "body",
		"single line":         "single line",
		"header\n":            "",
	}
	for in, want := range tests {
		if got := Summary(in); got != want {
			t.Errorf("Summary(%q) = %q, want %q", in, got, want)
		}
	}
}
