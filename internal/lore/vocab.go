// Package lore holds the world vocabularies and the template engine that
// turns event templates into concrete narrative text.
package lore

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed tables.json
var tablesJSON []byte

// Category is an event category and the templates it can produce.
type Category struct {
	Name      string   `json:"name"`
	Templates []string `json:"templates"`
}

// CharacterType groups the character names belonging to one archetype.
type CharacterType struct {
	Type  string   `json:"type"`
	Names []string `json:"names"`
}

// Vocabulary is the full set of flavour tables used to build events.
type Vocabulary struct {
	Categories  []Category          `json:"categories"`
	Locations   []string            `json:"locations"`
	Factions    []string            `json:"factions"`
	Characters  []CharacterType     `json:"characters"`
	MagicFields []string            `json:"magic_fields"`
	Resources   []string            `json:"resources"`
	Monsters    []string            `json:"monsters"`
	OtherRealms []string            `json:"other_realms"`
	InnNames    []string            `json:"inn_names"`
	FillIns     map[string][]string `json:"fill_ins"`
}

var (
	defaultOnce  sync.Once
	defaultVocab *Vocabulary
)

// Default returns the built-in vocabulary. The embedded tables are parsed
// once; a malformed table is a build defect and panics.
func Default() *Vocabulary {
	defaultOnce.Do(func() {
		v, err := Parse(tablesJSON)
		if err != nil {
			panic(fmt.Sprintf("lore: embedded tables: %v", err))
		}
		defaultVocab = v
	})
	return defaultVocab
}

// Parse decodes a vocabulary from JSON and checks it can produce events.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate reports the first structural problem in the vocabulary.
func (v *Vocabulary) Validate() error {
	if len(v.Categories) == 0 {
		return fmt.Errorf("vocabulary has no categories")
	}
	for _, c := range v.Categories {
		if len(c.Templates) == 0 {
			return fmt.Errorf("category %q has no templates", c.Name)
		}
	}
	if len(v.Locations) == 0 {
		return fmt.Errorf("vocabulary has no locations")
	}
	if len(v.Factions) == 0 {
		return fmt.Errorf("vocabulary has no factions")
	}
	return nil
}

// CategoryNames lists category names in table order.
func (v *Vocabulary) CategoryNames() []string {
	names := make([]string, len(v.Categories))
	for i, c := range v.Categories {
		names[i] = c.Name
	}
	return names
}

// HasCategory reports whether name is one of the vocabulary's categories.
func (v *Vocabulary) HasCategory(name string) bool {
	for _, c := range v.Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CharacterTypeOf returns the archetype a character name belongs to.
func (v *Vocabulary) CharacterTypeOf(name string) (string, bool) {
	for _, ct := range v.Characters {
		for _, n := range ct.Names {
			if n == name {
				return ct.Type, true
			}
		}
	}
	return "", false
}

// CharacterCount is the number of distinct character names across all types.
func (v *Vocabulary) CharacterCount() int {
	seen := make(map[string]struct{})
	for _, ct := range v.Characters {
		for _, n := range ct.Names {
			seen[n] = struct{}{}
		}
	}
	return len(seen)
}

// FillInKeys returns the generic fill-in keys in sorted order.
func (v *Vocabulary) FillInKeys() []string {
	keys := make([]string, 0, len(v.FillIns))
	for k := range v.FillIns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Capitalize upper-cases the first letter of a category name for display.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var categoryEmoji = map[string]string{
	"political":  "🏛️",
	"magical":    "✨",
	"social":     "👥",
	"economic":   "💰",
	"natural":    "🌲",
	"conflict":   "⚔️",
	"mystery":    "🔮",
	"mundane":    "🏘️",
	"religious":  "⛪",
	"legendary":  "🐉",
	"historical": "📜",
}

// CategoryEmoji returns the emoji shown beside a category's headlines.
func CategoryEmoji(category string) string {
	if e, ok := categoryEmoji[category]; ok {
		return e
	}
	return "📢"
}
