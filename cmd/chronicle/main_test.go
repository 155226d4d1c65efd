package main

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/talgya/fantasy-chronicle/internal/lore"
	"github.com/talgya/fantasy-chronicle/internal/persistence"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

func TestPromptSettings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // world|key|token|chat
	}{
		{"everything", "Eldoria\nkey\ntok\n-100\n", "Eldoria|key|tok|-100"},
		{"blank name asked again", "\n  \nEldoria\n\n\n", "Eldoria|||0"},
		{"no token skips chat", "Eldoria\nkey\n\n", "Eldoria|key||0"},
		{"bad chat id", "Eldoria\n\ntok\nabc\n", "Eldoria||tok|0"},
		{"input ends early", "Eldoria", "Eldoria|||0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			s, err := promptSettings(strings.NewReader(tt.input), &console{out: &out})
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			got := strings.Join([]string{s.WorldName, s.APIKey, s.TelegramToken, strconv.FormatInt(s.TelegramChatID, 10)}, "|")
			if got != tt.want {
				t.Fatalf("settings = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPromptSettingsNoName(t *testing.T) {
	var out bytes.Buffer
	if _, err := promptSettings(strings.NewReader(""), &console{out: &out}); err == nil {
		t.Fatal("empty input accepted")
	}
}

func TestLoadWorldCreatesThenRestores(t *testing.T) {
	db, err := persistence.Open(persistence.Path(t.TempDir(), "Eldoria"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	v := lore.Default()

	fresh, lastID, err := loadWorld(db, "Eldoria", v, rand.New(rand.NewSource(1)))
	if err != nil || lastID != 0 {
		t.Fatalf("fresh world: id %d, %v", lastID, err)
	}
	if n, _ := db.SnapshotCount(); n != 1 {
		t.Fatalf("snapshots after creation = %d", n)
	}
	if n, _ := db.CharacterCount(); n != len(fresh.CharacterStatus) {
		t.Fatalf("characters saved = %d, want %d", n, len(fresh.CharacterStatus))
	}

	again, _, err := loadWorld(db, "Eldoria", v, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := fresh.Marshal()
	b, _ := again.Marshal()
	if !bytes.Equal(a, b) {
		t.Fatal("restored world differs from the created one")
	}
	if n, _ := db.SnapshotCount(); n != 1 {
		t.Fatalf("restore appended a snapshot: %d", n)
	}
}

func TestLoadWorldResumesNumberingWithoutSnapshot(t *testing.T) {
	db, err := persistence.Open(persistence.Path(t.TempDir(), "Eldoria"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for id := 1; id <= 3; id++ {
		if err := db.AppendEvent(persistence.EventRecord{ID: id, Category: "mystery", EventText: "Lights over the marsh."}); err != nil {
			t.Fatal(err)
		}
	}

	state, lastID, err := loadWorld(db, "Eldoria", lore.Default(), rand.New(rand.NewSource(1)))
	if err != nil || state == nil {
		t.Fatalf("loadWorld: %v", err)
	}
	if lastID != 3 {
		t.Fatalf("lastID = %d, want 3", lastID)
	}
	if err := db.AppendEvent(persistence.EventRecord{ID: lastID + 1, Category: "mystery", EventText: "The lights return."}); err != nil {
		t.Fatalf("next event collides: %v", err)
	}
}

func TestConsoleWithoutColor(t *testing.T) {
	var out bytes.Buffer
	c := &console{out: &out}
	s := world.Genesis("Eldoria", lore.Default(), rand.New(rand.NewSource(3)), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	c.worldSummary("Eldoria", s, map[string]int{"magical": 2, "social": 5})

	text := out.String()
	if strings.Contains(text, "\033[") {
		t.Fatal("colour codes written to a plain writer")
	}
	if !strings.Contains(text, "=== Eldoria WORLD SUMMARY ===") || strings.Index(text, "social: 5") > strings.Index(text, "magical: 2") {
		t.Fatalf("summary:\n%s", text)
	}
}

func TestWriteAtlas(t *testing.T) {
	dir := t.TempDir()
	a := world.NewAtlas(11, lore.Default().Locations)
	if err := writeAtlas(a, dir); err != nil {
		t.Fatal(err)
	}
	text, err := os.ReadFile(filepath.Join(dir, "realm_map.txt"))
	if err != nil || string(text) != a.Render() {
		t.Fatalf("text map: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "realm_map.json")); err != nil {
		t.Fatal(err)
	}
	if err := writeAtlas(a, filepath.Join(dir, "missing")); err == nil {
		t.Fatal("writing into a missing directory succeeded")
	}
}
