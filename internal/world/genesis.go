package world

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/talgya/fantasy-chronicle/internal/lore"
	"github.com/talgya/fantasy-chronicle/internal/weather"
)

// TimestampLayout is the strftime layout used for every timestamp stored in
// world state and in event headers.
const TimestampLayout = "%Y-%m-%d %H:%M:%S"

// Stamp formats t with TimestampLayout.
func Stamp(t time.Time) string {
	return strftime.Format(TimestampLayout, t)
}

// Starting conditions.
const (
	minStartYear         = 500
	maxStartYear         = 2000
	maxInitialCharacters = 10
	maxInitialPlots      = 2
)

// initialStatuses is weighted toward neutral.
var initialStatuses = []RelationStatus{Friendly, Neutral, Neutral, Neutral, Hostile}

var (
	featureHomes    = []string{"blacksmith", "alchemist", "tavern", "library", "temple"}
	featureKnownFor = []string{"beautiful architecture", "magical properties", "strategic importance", "natural resources", "unique customs"}
	featureRecent   = []string{"festival", "natural disaster", "change in leadership", "magical phenomenon", "economic boom"}
	featureRumours  = []string{"hidden treasure", "secret cult", "magical portal", "ancient curse", "legendary creature"}

	realmMoods    = []string{"mystical", "dangerous", "ancient", "evolving", "divided", "peaceful"}
	realmDrives   = []string{"magic flows freely", "various factions vie for power", "ancient secrets await discovery", "heroes forge their legends", "the balance of power is shifting"}
	realmPromises = []string{"danger lurks in unexpected places", "adventure awaits those who seek it", "ordinary people live extraordinary lives", "the past and future collide", "nothing is quite as it seems"}

	clashCauses   = []string{"territory", "resources", "ideology", "an ancient artifact", "political influence"}
	placeOmens    = []string{"curse", "blessing", "mystery", "disappearance", "transformation"}
	placeAffected = []string{"residents", "wildlife", "weather", "magic", "structures"}
	risingPowers  = []string{"a dark power", "a new religion", "a revolutionary movement", "an unlikely hero", "a forgotten deity"}
	risingSigns   = []string{"ancient prophecies unfold", "power structures shift", "forgotten magic awakens", "new alliances form", "the old order is challenged"}
)

// Genesis builds a freshly randomised world named name.
func Genesis(name string, v *lore.Vocabulary, rng *rand.Rand, now time.Time) *State {
	s := New()
	stamp := Stamp(now)

	season := Seasons[rng.Intn(len(Seasons))]
	s.Time = Clock{
		Year:      minStartYear + rng.Intn(maxStartYear-minStartYear+1),
		Season:    season,
		TimeOfDay: TimesOfDay[rng.Intn(len(TimesOfDay))],
		Weather:   weather.ForSeason(string(season), rng),
	}

	for i, a := range v.Factions {
		for _, b := range v.Factions[i+1:] {
			s.Relations[a+"_"+b] = &Relation{
				Factions: [2]string{a, b},
				Status:   initialStatuses[rng.Intn(len(initialStatuses))],
				Events:   []EventRef{},
			}
		}
	}

	used := make(map[string]bool)
	for i := 0; i < min(len(v.Locations), maxInitialCharacters) && len(v.Characters) > 0; i++ {
		ct := v.Characters[rng.Intn(len(v.Characters))]
		var available []string
		for _, n := range ct.Names {
			if !used[n] {
				available = append(available, n)
			}
		}
		if len(available) == 0 {
			continue
		}
		charName := available[rng.Intn(len(available))]
		used[charName] = true
		s.CharacterStatus[charName] = &Character{
			Type:     ct.Type,
			Location: v.Locations[rng.Intn(len(v.Locations))],
			LastSeen: stamp,
			Events:   []EventRef{},
		}
	}

	field := NewFeatureField(rng.Int63())
	featureCounts := field.Counts(len(v.Locations))
	names := s.CharacterNames()
	for i, locName := range v.Locations {
		options := []string{
			"home to a famous " + pick(rng, featureHomes),
			"known for its " + pick(rng, featureKnownFor),
			"recently experienced a " + pick(rng, featureRecent),
			"rumored to have a " + pick(rng, featureRumours),
		}
		features := []string{}
		for _, idx := range rng.Perm(len(options))[:featureCounts[i]] {
			features = append(features, options[idx])
		}

		loc := s.EnsureLocation(locName)
		loc.NotableFeatures = features
		for _, n := range names {
			if s.CharacterStatus[n].Location == locName {
				loc.AddCharacter(n)
			}
		}
	}

	s.WorldDescription = fmt.Sprintf("%s is a %s realm where %s and %s.",
		name, pick(rng, realmMoods), pick(rng, realmDrives), pick(rng, realmPromises))

	s.ActivePlots = seedPlots(v, names, rng)
	s.EventHistory = []EventRef{}
	s.AtlasSeed = rng.Int63()
	return s
}

func seedPlots(v *lore.Vocabulary, characters []string, rng *rand.Rand) []*Plot {
	factionA, factionB := pick(rng, v.Factions), pick(rng, v.Factions)
	templates := []*Plot{
		{
			Name:        fmt.Sprintf("Conflict between %s and %s", factionA, factionB),
			Description: fmt.Sprintf("Tensions are rising as two powerful factions clash over %s.", pick(rng, clashCauses)),
		},
		{
			Name:        fmt.Sprintf("The %s of %s", pick(rng, placeOmens), pick(rng, v.Locations)),
			Description: fmt.Sprintf("Something strange is happening in this location, affecting the %s.", pick(rng, placeAffected)),
		},
		{
			Name:        "Rise of " + pick(rng, risingPowers),
			Description: fmt.Sprintf("Change is coming to the world as %s.", pick(rng, risingSigns)),
		},
	}

	plots := []*Plot{}
	order := rng.Perm(len(templates))
	for _, idx := range order[:rng.Intn(maxInitialPlots+1)] {
		p := templates[idx]
		p.Status = "active"
		p.Keywords = Keywords(p.Name)
		p.Events = []int{}
		p.Characters = sample(rng, characters, 1+rng.Intn(3))
		p.Locations = sample(rng, v.Locations, 1+rng.Intn(2))
		plots = append(plots, p)
	}
	return plots
}

// keywordLimit is the number of keywords kept for a plot.
const keywordLimit = 5

// Keywords returns up to five lowercased words longer than four characters,
// with surrounding punctuation removed, in text order.
func Keywords(text string) []string {
	keywords := []string{}
	for _, word := range strings.Fields(text) {
		w := strings.ToLower(strings.Trim(word, ".,;:!?\"'()[]"))
		if len(w) <= 4 {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == keywordLimit {
			break
		}
	}
	return keywords
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func sample(rng *rand.Rand, pool []string, k int) []string {
	k = min(k, len(pool))
	out := make([]string, 0, k)
	for _, idx := range rng.Perm(len(pool))[:k] {
		out = append(out, pool[idx])
	}
	return out
}
