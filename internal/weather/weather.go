// Package weather provides the season-conditioned weather vocabularies used
// when a world is created, when seasons turn and when the sky simply changes
// between events.
package weather

import "math/rand"

// seasonal is drawn from at world creation and on every season change.
var seasonal = map[string][]string{
	"spring": {"clear", "rainy", "cloudy", "foggy", "windy"},
	"summer": {"clear", "sunny", "hot", "thunderstorm", "dry"},
	"autumn": {"clear", "rainy", "windy", "foggy", "cloudy"},
	"winter": {"clear", "snowy", "blizzard", "foggy", "freezing"},
}

// churn is the smaller table used for casual weather drift between events.
// Spring and autumn share the default table.
var (
	churnDefault = []string{"clear", "cloudy", "rainy", "stormy", "foggy", "windy"}
	churnWinter  = []string{"clear", "snowy", "blizzard", "foggy", "cloudy", "windy"}
	churnSummer  = []string{"clear", "sunny", "hot", "thunderstorm", "cloudy", "windy"}
)

// Extreme lists the dramatic conditions a rare world shift can impose.
var Extreme = []string{
	"hurricane", "blizzard", "drought", "floods",
	"magical storm", "volcanic eruption", "earthquake",
	"meteor shower", "tsunami", "wildfires",
	"extreme heatwave", "polar vortex", "superstorm",
	"lightning storm", "freak hailstorm", "tornado",
	"solar flare", "aurora borealis", "unusual auroras",
	"unseasonal snow", "unexpected frost",
	"heavy fog", "thunderstorm", "windstorm",
	"dust storm", "sandstorm", "acid rain",
	"mysterious fog", "magical blizzard", "enchanted rain",
	"time storm", "dimension storm",
}

// Seasonal returns the weather table for a season. Unknown seasons fall back
// to the spring table.
func Seasonal(season string) []string {
	if opts, ok := seasonal[season]; ok {
		return opts
	}
	return seasonal["spring"]
}

// Churn returns the drift table for a season.
func Churn(season string) []string {
	switch season {
	case "winter":
		return churnWinter
	case "summer":
		return churnSummer
	default:
		return churnDefault
	}
}

// ForSeason draws a weather condition from the seasonal table.
func ForSeason(season string, rng *rand.Rand) string {
	opts := Seasonal(season)
	return opts[rng.Intn(len(opts))]
}

// Drift draws a weather condition from the churn table.
func Drift(season string, rng *rand.Rand) string {
	opts := Churn(season)
	return opts[rng.Intn(len(opts))]
}

// ExtremeEvent draws one of the extreme conditions.
func ExtremeEvent(rng *rand.Rand) string {
	return Extreme[rng.Intn(len(Extreme))]
}
