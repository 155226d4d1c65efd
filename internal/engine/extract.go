package engine

import (
	"strings"

	"github.com/talgya/fantasy-chronicle/internal/llm"
	"github.com/talgya/fantasy-chronicle/internal/lore"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

// EventData is what the mutator learns about an event: the names found in
// its text plus any enrichment.
type EventData struct {
	Location   string          `json:"location"`
	Characters []world.Mention `json:"characters"`
	Factions   []string        `json:"factions"`
	Enrichment llm.Enrichment  `json:"-"`
}

// CharacterNames lists the names of the mentioned characters.
func (d EventData) CharacterNames() []string {
	names := make([]string, 0, len(d.Characters))
	for _, c := range d.Characters {
		names = append(names, c.Name)
	}
	return names
}

// Extract scans text for vocabulary names: the first location that occurs,
// every character that occurs, and every faction that occurs, each in
// vocabulary order.
func Extract(text string, v *lore.Vocabulary) EventData {
	data := EventData{Characters: []world.Mention{}, Factions: []string{}}

	for _, loc := range v.Locations {
		if strings.Contains(text, loc) {
			data.Location = loc
			break
		}
	}

	for _, ct := range v.Characters {
		for _, name := range ct.Names {
			if strings.Contains(text, name) {
				data.Characters = append(data.Characters, world.Mention{Name: name, Type: ct.Type})
			}
		}
	}

	for _, f := range v.Factions {
		if strings.Contains(text, f) {
			data.Factions = append(data.Factions, f)
		}
	}
	return data
}
