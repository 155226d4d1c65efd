// Package world defines the mutable state of one simulated fantasy world:
// its clock, faction relations, tracked characters and locations, plots and
// history.
package world

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RelationStatus is the standing between two factions.
type RelationStatus string

const (
	Friendly RelationStatus = "friendly"
	Neutral  RelationStatus = "neutral"
	Hostile  RelationStatus = "hostile"
	Allied   RelationStatus = "allied"
	Trading  RelationStatus = "trading"
)

// EventRef points back at a generated event.
type EventRef struct {
	EventID  int    `json:"event_id"`
	Category string `json:"category"`
	Summary  string `json:"summary,omitempty"`
}

// Mention is a character named in an event.
type Mention struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Relation tracks a faction pair.
type Relation struct {
	Factions [2]string      `json:"factions"`
	Status   RelationStatus `json:"status"`
	Events   []EventRef     `json:"events"`
}

// Development is a milestone in a character's life.
type Development struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Character is a tracked named character.
type Character struct {
	Type         string        `json:"type"`
	Location     string        `json:"location"`
	LastSeen     string        `json:"last_seen"`
	Events       []EventRef    `json:"events"`
	Developments []Development `json:"developments,omitempty"`
}

// Location is a tracked place.
type Location struct {
	Events            []EventRef `json:"events"`
	NotableFeatures   []string   `json:"notable_features"`
	CharactersPresent []string   `json:"characters_present"`
}

// AddCharacter records name as present, keeping set semantics.
func (l *Location) AddCharacter(name string) {
	for _, c := range l.CharactersPresent {
		if c == name {
			return
		}
	}
	l.CharactersPresent = append(l.CharactersPresent, name)
}

// Plot is a storyline linking events by keyword.
type Plot struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Keywords    []string `json:"keywords"`
	Events      []int    `json:"events"`
	Characters  []string `json:"characters"`
	Locations   []string `json:"locations"`
}

// Matches reports whether any keyword occurs in the lowercased text.
func (p *Plot) Matches(lowerText string) bool {
	for _, kw := range p.Keywords {
		if kw != "" && strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}

// SideEvent records a rare world shift.
type SideEvent struct {
	Type        string `json:"type"`
	Timestamp   string `json:"timestamp"`
	Active      bool   `json:"active"`
	Subject     string `json:"subject,omitempty"`
	Description string `json:"description,omitempty"`
}

// State is the whole mutable world. One State exists per named world and it
// is passed by pointer to everything that reads or changes it.
type State struct {
	Time                    Clock                 `json:"time"`
	Relations               map[string]*Relation  `json:"relations"`
	CharacterStatus         map[string]*Character `json:"character_status"`
	LocationStatus          map[string]*Location  `json:"location_status"`
	ActivePlots             []*Plot               `json:"active_plots"`
	EventHistory            []EventRef            `json:"event_history"`
	WorldDescription        string                `json:"world_description"`
	EventsSinceSeasonChange int                   `json:"events_since_season_change"`
	EventCount              int                   `json:"event_count"`
	AtlasSeed               int64                 `json:"atlas_seed"`

	SocialEvents    []SideEvent `json:"social_events,omitempty"`
	EconomicEvents  []SideEvent `json:"economic_events,omitempty"`
	MagicalEvents   []SideEvent `json:"magical_events,omitempty"`
	RealmShifts     []SideEvent `json:"realm_shifts,omitempty"`
	WeatherEvents   []SideEvent `json:"weather_events,omitempty"`
	NaturalEvents   []SideEvent `json:"natural_events,omitempty"`
	ConflictEvents  []SideEvent `json:"conflict_events,omitempty"`
	MysteryEvents   []SideEvent `json:"mystery_events,omitempty"`
	MundaneEvents   []SideEvent `json:"mundane_events,omitempty"`
	PoliticalEvents []SideEvent `json:"political_events,omitempty"`
}

// New returns an empty state with initialised maps.
func New() *State {
	s := &State{}
	s.normalize()
	return s
}

func (s *State) normalize() {
	if s.Relations == nil {
		s.Relations = make(map[string]*Relation)
	}
	if s.CharacterStatus == nil {
		s.CharacterStatus = make(map[string]*Character)
	}
	if s.LocationStatus == nil {
		s.LocationStatus = make(map[string]*Location)
	}
	for key, rel := range s.Relations {
		if rel.Factions[0] == "" && rel.Factions[1] == "" {
			if a, b, ok := strings.Cut(key, "_"); ok {
				rel.Factions = [2]string{a, b}
			}
		}
	}
}

// Marshal serialises the state for a snapshot.
func (s *State) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal world state: %w", err)
	}
	return data, nil
}

// Restore decodes a snapshot produced by Marshal.
func Restore(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal world state: %w", err)
	}
	s.normalize()
	return &s, nil
}

// RelationKey returns the canonical key for a faction pair. An existing key
// in either order wins; a new pair is keyed in the order given.
func (s *State) RelationKey(a, b string) string {
	ab := a + "_" + b
	if _, ok := s.Relations[ab]; ok {
		return ab
	}
	ba := b + "_" + a
	if _, ok := s.Relations[ba]; ok {
		return ba
	}
	return ab
}

// EnsureRelation returns the relation for a faction pair, creating a neutral
// one on first reference.
func (s *State) EnsureRelation(a, b string) (string, *Relation) {
	key := s.RelationKey(a, b)
	rel, ok := s.Relations[key]
	if !ok {
		rel = &Relation{Factions: [2]string{a, b}, Status: Neutral, Events: []EventRef{}}
		s.Relations[key] = rel
	}
	return key, rel
}

// EnsureLocation returns the named location, creating it on first reference.
func (s *State) EnsureLocation(name string) *Location {
	loc, ok := s.LocationStatus[name]
	if !ok {
		loc = &Location{
			Events:            []EventRef{},
			NotableFeatures:   []string{},
			CharactersPresent: []string{},
		}
		s.LocationStatus[name] = loc
	}
	return loc
}

// Slug derives the file-system name of a world: lowercased, spaces
// replaced by underscores.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// RelationKeys lists relation keys in sorted order.
func (s *State) RelationKeys() []string {
	return sortedKeys(s.Relations)
}

// CharacterNames lists tracked character names in sorted order.
func (s *State) CharacterNames() []string {
	return sortedKeys(s.CharacterStatus)
}

// LocationNames lists tracked location names in sorted order.
func (s *State) LocationNames() []string {
	return sortedKeys(s.LocationStatus)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RelationCounts tallies relations by status.
func (s *State) RelationCounts() map[RelationStatus]int {
	counts := make(map[RelationStatus]int)
	for _, rel := range s.Relations {
		counts[rel.Status]++
	}
	return counts
}

// Summary renders a short prose digest used as context for text generation.
func (s *State) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Year %d, %s %s, weather %s.\n",
		s.Time.Year, s.Time.Season, s.Time.TimeOfDay, s.Time.Weather)
	if s.WorldDescription != "" {
		b.WriteString(s.WorldDescription)
		b.WriteString("\n")
	}

	var tense []string
	for _, key := range s.RelationKeys() {
		rel := s.Relations[key]
		if rel.Status == Hostile || rel.Status == Allied {
			tense = append(tense, fmt.Sprintf("%s and %s are %s", rel.Factions[0], rel.Factions[1], rel.Status))
		}
		if len(tense) == 5 {
			break
		}
	}
	if len(tense) > 0 {
		b.WriteString("Notable relations: ")
		b.WriteString(strings.Join(tense, "; "))
		b.WriteString(".\n")
	}

	if len(s.ActivePlots) > 0 {
		names := make([]string, 0, len(s.ActivePlots))
		for _, p := range s.ActivePlots {
			names = append(names, p.Name)
		}
		b.WriteString("Active plots: ")
		b.WriteString(strings.Join(names, "; "))
		b.WriteString(".\n")
	}
	fmt.Fprintf(&b, "%d characters and %d locations are being tracked.",
		len(s.CharacterStatus), len(s.LocationStatus))
	return b.String()
}
