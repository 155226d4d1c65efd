package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/fantasy-chronicle/internal/weather"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

// Kinds of rare world shift.
const (
	ShiftWeather   = "weather_event"
	ShiftFaction   = "faction_shift"
	ShiftMagical   = "magical_occurrence"
	ShiftCharacter = "character_development"
	ShiftRealm     = "realm_shift"
	ShiftPolitical = "political_event"
	ShiftSocial    = "social_event"
	ShiftEconomic  = "economic_event"
	ShiftNatural   = "natural_event"
	ShiftConflict  = "conflict_event"
	ShiftMystery   = "mystery_event"
	ShiftMundane   = "mundane_event"
)

const (
	timeWarp        = "time warp"
	seasonalAnomaly = "seasonal anomaly"
	maxYearsWarped  = 100
)

var shiftKinds = []string{
	ShiftWeather, ShiftFaction, ShiftMagical, ShiftCharacter, ShiftRealm, ShiftPolitical,
	ShiftSocial, ShiftEconomic, ShiftNatural, ShiftConflict, ShiftMystery, ShiftMundane,
}

var (
	naturalDisasters = []string{
		"earthquake", "volcanic eruption", "tsunami", "landslide", "flood", "wildfire",
		"hurricane", "tornado", "blizzard", "drought", "storm", "sinkhole",
		"meteor impact", "pestilence", "plague", "locust swarm", "famine",
	}
	mysteries = []string{
		"ancient artifact discovery", "lost city found", "mysterious disappearance",
		"unexplained phenomenon", "forgotten prophecy", "ancient curse lifted",
		"legendary creature sighting", "time anomaly", "dimensional rift",
		"magical phenomenon", "forgotten magic rediscovered", "ancient evil resurgence",
	}
	mundaneHappenings = []string{
		"trade caravan arrives", "festival celebrated", "new settlement founded",
		"road repaired", "market day held", "new inn opened", "farming season begins",
		"harvest festival", "cultural exchange", "diplomatic mission",
		"trade agreement signed", "new law enacted",
	}
	conflicts = []string{
		"battle", "skirmish", "war", "rebellion", "assassination",
		"duel", "invasion", "defense", "betrayal", "surrender",
	}
	politicalHappenings = []string{
		"alliance", "betrayal", "war", "peace treaty", "coup", "assassination",
		"revolution", "trade agreement", "territorial dispute", "diplomatic mission",
		"political scandal", "election", "vote of confidence", "referendum",
		"summit meeting", "espionage", "propaganda campaign", "peace talks",
		"ceasefire agreement",
	}
	socialHappenings = []string{
		"festival", "celebration", "protest", "disaster", "cultural exchange",
		"migration", "epidemic", "discovery", "invention", "artistic movement",
		"scientific breakthrough", "religious event", "social reform",
		"cultural renaissance", "technological advancement", "philosophical debate",
		"social unrest", "community gathering",
	}
	economicHappenings = []string{
		"market crash", "economic boom", "trade war", "resource discovery",
		"currency devaluation", "inflation", "deflation", "financial scandal",
		"investment surge", "economic collapse", "trade agreement", "economic reform",
		"technological disruption", "economic migration", "financial crisis", "debt crisis",
	}
	magicalHappenings = []string{
		"arcane surge", "magic depletion", "dimensional rift", "magical creature emergence",
		"prophecy manifestation", "ancient artifact discovery", "curse lifting",
		"blessing from the gods", "magical phenomenon", "spiritual awakening",
		"enchanted forest growth", "mysterious portal appearance", "time loop",
		"legendary hero awakening", "ancient evil resurgence", "forgotten magic rediscovery",
		"new magical field emergence", "magical creature migration",
		"new ley line discovery", "unexpected magical surge",
	}
	developments = []string{
		"gained magical powers", "lost an important item", "discovered a secret",
		"changed allegiance", "was transformed", "acquired legendary status",
		"became a leader", "fell in love", "betrayed a friend", "made a powerful enemy",
		"found a hidden treasure", "unlocked a hidden potential", "suffered a tragic loss",
		"became a mentor", "gained a powerful artifact", "was cursed",
		"found a lost city", "became a legend",
	}
	realmChanges = []string{
		timeWarp, seasonalAnomaly, "planar convergence", "divine intervention",
		"cosmological shift", "realm merging", "dimensional rift", "time dilation",
		"alternate reality emergence",
	}
)

// shift applies one randomly chosen rare world change. Picks among
// existing relations and characters go through sorted keys so that a
// given random sequence always chooses the same target.
func (m *Mutator) shift(stamp string) {
	s := m.state
	kind := shiftKinds[m.rng.Intn(len(shiftKinds))]
	side := func(list *[]world.SideEvent, pool []string) string {
		v := pool[m.rng.Intn(len(pool))]
		*list = append(*list, world.SideEvent{Type: v, Timestamp: stamp, Active: true})
		return v
	}

	var detail string
	switch kind {
	case ShiftWeather:
		w := weather.ExtremeEvent(m.rng)
		s.Time.Weather = w
		s.WeatherEvents = append(s.WeatherEvents, world.SideEvent{Type: w, Timestamp: stamp, Active: true})
		detail = "extreme weather: " + w
	case ShiftNatural:
		detail = "natural disaster: " + side(&s.NaturalEvents, naturalDisasters)
	case ShiftMystery:
		detail = "mysterious event: " + side(&s.MysteryEvents, mysteries)
	case ShiftMundane:
		detail = "mundane event: " + side(&s.MundaneEvents, mundaneHappenings)
	case ShiftConflict:
		detail = "conflict: " + side(&s.ConflictEvents, conflicts)
	case ShiftSocial:
		detail = "social event: " + side(&s.SocialEvents, socialHappenings)
	case ShiftEconomic:
		detail = "economic event: " + side(&s.EconomicEvents, economicHappenings)
	case ShiftMagical:
		detail = "magical occurrence: " + side(&s.MagicalEvents, magicalHappenings)
	case ShiftFaction:
		keys := s.RelationKeys()
		if len(keys) == 0 {
			return
		}
		key := keys[m.rng.Intn(len(keys))]
		rel := s.Relations[key]
		if rel.Status == world.Hostile {
			rel.Status = world.Allied
		} else {
			rel.Status = world.Hostile
		}
		s.PoliticalEvents = append(s.PoliticalEvents, world.SideEvent{
			Type: "faction shift", Timestamp: stamp, Active: true, Subject: key,
			Description: fmt.Sprintf("Relations between %s and %s shifted to %s", rel.Factions[0], rel.Factions[1], rel.Status),
		})
		detail = fmt.Sprintf("relations between %s and %s are now %s", rel.Factions[0], rel.Factions[1], rel.Status)
	case ShiftPolitical:
		event := world.SideEvent{
			Type:      politicalHappenings[m.rng.Intn(len(politicalHappenings))],
			Timestamp: stamp,
			Active:    true,
		}
		if keys := s.RelationKeys(); len(keys) > 0 {
			event.Subject = keys[m.rng.Intn(len(keys))]
		}
		s.PoliticalEvents = append(s.PoliticalEvents, event)
		detail = "political event: " + event.Type
	case ShiftCharacter:
		names := s.CharacterNames()
		if len(names) == 0 {
			return
		}
		name := names[m.rng.Intn(len(names))]
		dev := developments[m.rng.Intn(len(developments))]
		ch := s.CharacterStatus[name]
		ch.Developments = append(ch.Developments, world.Development{Type: dev, Timestamp: stamp})
		detail = name + " " + dev
	case ShiftRealm:
		change := realmChanges[m.rng.Intn(len(realmChanges))]
		switch change {
		case timeWarp:
			years := 1 + m.rng.Intn(maxYearsWarped)
			if m.rng.Intn(2) == 0 {
				years = -years
			}
			s.Time.ShiftYears(years)
			detail = fmt.Sprintf("time warp of %+d years, now year %d", years, s.Time.Year)
		case seasonalAnomaly:
			// Leaves the season counter and weather alone.
			s.Time.Season = world.Seasons[m.rng.Intn(len(world.Seasons))]
			detail = "seasonal anomaly, the season is now " + string(s.Time.Season)
		default:
			detail = change
		}
		s.RealmShifts = append(s.RealmShifts, world.SideEvent{
			Type: change, Timestamp: stamp, Active: true,
			Description: "The realm experienced a " + change,
		})
	}

	slog.Info("world shift", "kind", kind, "detail", detail)
	if m.OnShift != nil {
		m.OnShift(kind, detail)
	}
}
