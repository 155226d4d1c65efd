package engine

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/talgya/fantasy-chronicle/internal/llm"
	"github.com/talgya/fantasy-chronicle/internal/lore"
	"github.com/talgya/fantasy-chronicle/internal/notify"
	"github.com/talgya/fantasy-chronicle/internal/persistence"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

func openTestDB(t *testing.T) *persistence.DB {
	t.Helper()
	db, err := persistence.Open(persistence.Path(t.TempDir(), "Eldoria"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestChronicle(t *testing.T, db *persistence.DB, state *world.State, lastID int, seed int64) *Chronicle {
	t.Helper()
	v := lore.Default()
	if state == nil {
		state = world.Genesis("Eldoria", v, rand.New(rand.NewSource(seed)), fixedNow)
	}
	cfg := Config{
		WorldName:   "Eldoria",
		Vocab:       v,
		Rand:        rand.New(rand.NewSource(seed)),
		State:       state,
		LastEventID: lastID,
	}
	if db != nil {
		cfg.Store = db
	}
	c := NewChronicle(cfg)
	c.mut.shiftChance = 0
	return c
}

func TestFirstEventOfNewWorld(t *testing.T) {
	db := openTestDB(t)
	c := newTestChronicle(t, db, nil, 0, 1)
	var before int
	c.View(func(s *world.State) { before = s.EventsSinceSeasonChange })

	p := c.Step(context.Background())

	if p.Event.ID != 1 {
		t.Fatalf("first event id = %d", p.Event.ID)
	}
	if !lore.Default().HasCategory(p.Event.Category) {
		t.Fatalf("category %q not in vocabulary", p.Event.Category)
	}
	c.View(func(s *world.State) {
		if len(s.EventHistory) != 1 || s.EventCount != 1 {
			t.Fatalf("history %d, count %d", len(s.EventHistory), s.EventCount)
		}
		if before != 0 || s.EventsSinceSeasonChange != 1 {
			t.Fatalf("events since season change = %d", s.EventsSinceSeasonChange)
		}
	})

	recs, err := db.Events(10, "")
	if err != nil || len(recs) != 1 || recs[0].ID != 1 || recs[0].EventText != p.Event.Text {
		t.Fatalf("stored events = %+v, %v", recs, err)
	}
	if n, _ := db.SnapshotCount(); n != 1 {
		t.Fatalf("snapshots = %d", n)
	}
	if p.Enriched || p.ImagePath != "" || p.Delivered {
		t.Fatalf("offline step claims enrichment or delivery: %+v", p)
	}
	if !strings.HasPrefix(p.Headline, "New ") {
		t.Fatalf("fallback headline = %q", p.Headline)
	}
}

func TestResumeContinuesNumbering(t *testing.T) {
	db := openTestDB(t)
	newTestChronicle(t, db, nil, 0, 2).Step(context.Background())

	data, err := db.LatestSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	state, err := world.Restore(data)
	if err != nil {
		t.Fatal(err)
	}
	last, err := db.MaxEventID()
	if err != nil || last != 1 {
		t.Fatalf("max id = %d, %v", last, err)
	}

	p := newTestChronicle(t, db, state, last, 3).Step(context.Background())
	if p.Event.ID != 2 {
		t.Fatalf("resumed id = %d, want 2", p.Event.ID)
	}
	if n, _ := db.EventCount(); n != 2 {
		t.Fatalf("event rows = %d", n)
	}
}

func TestWithoutEnricherNoPlotsAppear(t *testing.T) {
	c := newTestChronicle(t, nil, nil, 0, 4)
	for i := 0; i < 200; i++ {
		c.Step(context.Background())
	}
	c.View(func(s *world.State) {
		if len(s.ActivePlots) != 0 {
			t.Fatalf("%d plots without enrichment", len(s.ActivePlots))
		}
		if len(s.EventHistory) != 200 {
			t.Fatalf("history = %d", len(s.EventHistory))
		}
	})
}

type fakeEnricher struct {
	reqs []llm.EnrichRequest
}

func (f *fakeEnricher) Enhance(_ context.Context, req llm.EnrichRequest) llm.Enrichment {
	f.reqs = append(f.reqs, req)
	return llm.Fields(map[string]string{
		llm.KeyConsequences:      "The harvest fails.",
		llm.KeyPlotHooks:         "Find the culprit.",
		llm.KeyHiddenDetails:     "A spy watched.",
		llm.KeyConnections:       "Linked to the old war.",
		llm.KeyVisualDescription: "a burning field at dusk",
	})
}

type fakeIllustrator struct{ visuals []string }

func (f *fakeIllustrator) Illustrate(_ context.Context, visual string, ordinal int) (string, error) {
	f.visuals = append(f.visuals, visual)
	return filepath.Join("images", "event.png"), nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return true
}

func TestStepRunsEveryStage(t *testing.T) {
	db := openTestDB(t)
	c := newTestChronicle(t, db, nil, 0, 5)
	enr := &fakeEnricher{}
	ill := &fakeIllustrator{}
	note := &fakeNotifier{}
	c.enricher, c.illustrator, c.notifier = enr, ill, note

	var observed []Processed
	c.Subscribe(func(p Processed) { observed = append(observed, p) })

	var seasonChanges int
	var turnedBy []int
	for i := 1; i <= 12; i++ {
		p := c.Step(context.Background())
		if !p.Enriched || !p.Delivered || p.ImagePath == "" {
			t.Fatalf("step %d = %+v", i, p)
		}
		if p.SeasonChange != nil {
			seasonChanges++
			turnedBy = append(turnedBy, p.Event.ID)
		}
	}

	if len(enr.reqs) != 12 || len(ill.visuals) != 12 || ill.visuals[0] != "a burning field at dusk" {
		t.Fatalf("enricher calls %d, illustrator calls %d", len(enr.reqs), len(ill.visuals))
	}
	if len(enr.reqs[0].Recent) != 0 || len(enr.reqs[5].Recent) != recentContext {
		t.Fatalf("recent context sizes %d / %d", len(enr.reqs[0].Recent), len(enr.reqs[5].Recent))
	}
	if enr.reqs[0].WorldName != "Eldoria" || enr.reqs[0].Summary == "" {
		t.Fatalf("request = %+v", enr.reqs[0])
	}
	if len(observed) != 12 {
		t.Fatalf("observers saw %d events", len(observed))
	}

	// Twelve events always cross at least two season boundaries.
	if seasonChanges < 2 {
		t.Fatalf("season changes = %d", seasonChanges)
	}
	if len(note.msgs) != 12+seasonChanges {
		t.Fatalf("sent %d messages for 12 events and %d season changes", len(note.msgs), seasonChanges)
	}
	first := note.msgs[0]
	if first.EventID != 1 || first.Details.PlotHooks != "Find the culprit." || first.ImagePath == "" {
		t.Fatalf("first message = %+v", first)
	}
	var seasonMsgs int
	for i, m := range note.msgs {
		if !strings.Contains(m.Text, "The season has changed to") {
			continue
		}
		// The announcement precedes the event that turned the season.
		if i+1 >= len(note.msgs) || note.msgs[i+1].EventID != turnedBy[seasonMsgs] {
			t.Fatalf("season message %d not followed by event %d", seasonMsgs, turnedBy[seasonMsgs])
		}
		seasonMsgs++
	}
	if seasonMsgs != seasonChanges {
		t.Fatalf("season messages = %d, want %d", seasonMsgs, seasonChanges)
	}

	c.View(func(s *world.State) {
		if len(s.ActivePlots) == 0 {
			t.Fatal("enriched events created no plot")
		}
	})
	plots, err := db.Plots()
	if err != nil || len(plots) == 0 {
		t.Fatalf("stored plots = %d, %v", len(plots), err)
	}
}

func TestSeasonMessage(t *testing.T) {
	msg := seasonMessage(SeasonChange{From: world.Spring, To: world.Summer, Year: 1200}, "Eldoria")
	if msg != "☀️ *The season has changed to Summer!*\n\n" {
		t.Fatalf("msg = %q", msg)
	}
	msg = seasonMessage(SeasonChange{From: world.Winter, To: world.Spring, Year: 1201}, "Old_World")
	if !strings.HasSuffix(msg, "🎆 A new year begins! It is now Year 1201 in Old\\_World.") {
		t.Fatalf("msg = %q", msg)
	}
}
