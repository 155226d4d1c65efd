package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/talgya/fantasy-chronicle/internal/llm"
	"github.com/talgya/fantasy-chronicle/internal/weather"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

// Mutation tuning.
const (
	minEventsPerSeason = 3
	maxEventsPerSeason = 5
	shiftChance        = 0.05
	weatherChance      = 0.3
)

// Snapshotter appends serialised world states.
type Snapshotter interface {
	AppendSnapshot(state []byte) error
}

// Mutator applies events to a world state. It is not safe for concurrent
// use; callers serialise access to the state.
type Mutator struct {
	state *world.State
	rng   *rand.Rand
	store Snapshotter
	now   func() time.Time

	shiftChance   float64
	weatherChance float64

	// OnSeasonChange is called after the season advances through the
	// normal progression.
	OnSeasonChange func(from, to world.Season, year int)
	// OnShift is called after a rare world shift, with its kind and a
	// short description.
	OnShift func(kind, detail string)
}

// NewMutator creates a mutator for state. store may be nil.
func NewMutator(state *world.State, rng *rand.Rand, store Snapshotter) *Mutator {
	return &Mutator{
		state:         state,
		rng:           rng,
		store:         store,
		now:           time.Now,
		shiftChance:   shiftChance,
		weatherChance: weatherChance,
	}
}

// State returns the state being mutated.
func (m *Mutator) State() *world.State {
	return m.state
}

// Apply updates the world for one event and appends a snapshot.
func (m *Mutator) Apply(ev Event, data EventData) {
	s := m.state
	stamp := world.Stamp(m.now())
	summary := Summary(ev.Text)
	ref := world.EventRef{EventID: ev.ID, Category: ev.Category, Summary: summary}
	s.EventCount = ev.ID

	// Characters.
	for _, c := range data.Characters {
		ch, ok := s.CharacterStatus[c.Name]
		if !ok {
			ch = &world.Character{Type: c.Type, Events: []world.EventRef{}}
			s.CharacterStatus[c.Name] = ch
		}
		ch.Location = data.Location
		ch.LastSeen = stamp
		ch.Events = append(ch.Events, ref)
	}

	// Relations.
	if len(data.Factions) >= 2 {
		_, rel := s.EnsureRelation(data.Factions[0], data.Factions[1])
		rel.Events = append(rel.Events, world.EventRef{EventID: ev.ID, Category: ev.Category})
		if status, ok := relationRule(ev.Category, ev.Text); ok {
			rel.Status = status
		}
	}

	// Location.
	if data.Location != "" {
		loc := s.EnsureLocation(data.Location)
		loc.Events = append(loc.Events, ref)
		for _, c := range data.Characters {
			loc.AddCharacter(c.Name)
		}
	}

	s.EventHistory = append(s.EventHistory, ref)

	m.linkPlot(ev, data)

	s.Time.TimeOfDay = world.TimesOfDay[m.rng.Intn(len(world.TimesOfDay))]

	s.EventsSinceSeasonChange++
	threshold := minEventsPerSeason + m.rng.Intn(maxEventsPerSeason-minEventsPerSeason+1)
	if s.EventsSinceSeasonChange >= threshold {
		m.advanceSeason()
	}

	if m.rng.Float64() < m.shiftChance {
		m.shift(stamp)
	}

	if m.rng.Float64() < m.weatherChance {
		s.Time.Weather = weather.Drift(string(s.Time.Season), m.rng)
	}

	m.snapshot(ev.ID)
}

// relationRule maps an event to the relation status it implies.
func relationRule(category, text string) (world.RelationStatus, bool) {
	lower := strings.ToLower(text)
	switch {
	case category == "conflict":
		return world.Hostile, true
	case category == "political" && strings.Contains(lower, "alliance"):
		return world.Allied, true
	case category == "economic" && strings.Contains(lower, "trade"):
		return world.Trading, true
	}
	return "", false
}

// linkPlot attaches the event to the first matching plot, or starts a new
// plot from the enrichment's hooks. Only enriched events take part.
func (m *Mutator) linkPlot(ev Event, data EventData) {
	e := data.Enrichment
	if !e.Has(llm.KeyConsequences) || !e.Has(llm.KeyPlotHooks) {
		return
	}

	lower := strings.ToLower(ev.Text)
	for _, p := range m.state.ActivePlots {
		if p.Matches(lower) {
			p.Events = append(p.Events, ev.ID)
			return
		}
	}

	hooks := e.Get(llm.KeyPlotHooks)
	if hooks == "" {
		return
	}
	body := ev.Body
	if body == "" {
		body = Summary(ev.Text)
	}
	locations := []string{}
	if data.Location != "" {
		locations = append(locations, data.Location)
	}
	m.state.ActivePlots = append(m.state.ActivePlots, &world.Plot{
		Name:        fmt.Sprintf("Plot from Event #%d", ev.ID),
		Description: hooks,
		Status:      "active",
		Keywords:    world.Keywords(body),
		Events:      []int{ev.ID},
		Characters:  data.CharacterNames(),
		Locations:   locations,
	})
	slog.Info("new plot", "event_id", ev.ID)
}

func (m *Mutator) advanceSeason() {
	clock := &m.state.Time
	from := clock.AdvanceSeason()
	m.state.EventsSinceSeasonChange = 0
	clock.Weather = weather.ForSeason(string(clock.Season), m.rng)

	slog.Info("season changed", "from", from, "to", clock.Season, "year", clock.Year)
	if m.OnSeasonChange != nil {
		m.OnSeasonChange(from, clock.Season, clock.Year)
	}
}

func (m *Mutator) snapshot(eventID int) {
	if m.store == nil {
		return
	}
	data, err := m.state.Marshal()
	if err != nil {
		slog.Error("snapshot encode failed", "event_id", eventID, "error", err)
		return
	}
	if err := m.store.AppendSnapshot(data); err != nil {
		slog.Error("snapshot write failed", "event_id", eventID, "error", err)
	}
}
