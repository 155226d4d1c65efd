// Package engine produces world events and applies them to the world.
package engine

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/talgya/fantasy-chronicle/internal/lore"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

// Event is one generated occurrence.
type Event struct {
	ID        int    `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Body      string `json:"body"`
	Text      string `json:"text"` // header line + body
}

// Generator draws events from the vocabulary. It owns the world's event
// counter.
type Generator struct {
	worldName string
	vocab     *lore.Vocabulary
	rng       *rand.Rand
	now       func() time.Time
	count     int
}

// NewGenerator creates a generator for the named world with the counter at 0.
func NewGenerator(worldName string, v *lore.Vocabulary, rng *rand.Rand) *Generator {
	return &Generator{worldName: worldName, vocab: v, rng: rng, now: time.Now}
}

// Resume continues numbering after lastID, the highest stored event id.
func (g *Generator) Resume(lastID int) {
	g.count = lastID
}

// Count returns the ordinal of the last generated event.
func (g *Generator) Count() int {
	return g.count
}

// Generate picks a category and template uniformly at random and fills it.
func (g *Generator) Generate() Event {
	cat := g.vocab.Categories[g.rng.Intn(len(g.vocab.Categories))]
	tmpl := cat.Templates[g.rng.Intn(len(cat.Templates))]
	body := lore.Fill(tmpl, g.vocab, g.rng)

	g.count++
	ts := world.Stamp(g.now())
	return Event{
		ID:        g.count,
		Category:  cat.Name,
		Timestamp: ts,
		Body:      body,
		Text:      fmt.Sprintf("[%s] %s Event #%d (%s):\n%s", ts, g.worldName, g.count, lore.Capitalize(cat.Name), body),
	}
}

// Summary is the line recorded in histories for an event: the second line
// of a multi-line text, the whole text otherwise.
func Summary(text string) string {
	lines := strings.SplitN(text, "\n", 3)
	if len(lines) > 1 {
		return lines[1]
	}
	return text
}
