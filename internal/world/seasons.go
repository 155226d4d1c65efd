package world

// Season is one of the four seasons of the world's calendar.
type Season string

const (
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
	Winter Season = "winter"
)

// Seasons lists the seasons in calendar order.
var Seasons = []Season{Spring, Summer, Autumn, Winter}

// Next returns the season that follows s. Unknown values restart at spring.
func (s Season) Next() Season {
	switch s {
	case Spring:
		return Summer
	case Summer:
		return Autumn
	case Autumn:
		return Winter
	default:
		return Spring
	}
}

// Name returns a human-readable season name.
func (s Season) Name() string {
	switch s {
	case Spring:
		return "Spring"
	case Summer:
		return "Summer"
	case Autumn:
		return "Autumn"
	case Winter:
		return "Winter"
	default:
		return "Unknown"
	}
}

// TimeOfDay is the coarse time of the world's day.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

// TimesOfDay lists the times of day in order.
var TimesOfDay = []TimeOfDay{Morning, Afternoon, Evening, Night}

// Clock is the world's calendar position and sky.
type Clock struct {
	Year      int       `json:"year"`
	Season    Season    `json:"season"`
	TimeOfDay TimeOfDay `json:"time_of_day"`
	Weather   string    `json:"weather"`
}

// AdvanceSeason moves to the next season and returns the one left behind.
// The year turns over only on winter to spring.
func (c *Clock) AdvanceSeason() Season {
	prev := c.Season
	c.Season = prev.Next()
	if prev == Winter && c.Season == Spring {
		c.Year++
	}
	return prev
}

// ShiftYears moves the year by delta, never below zero.
func (c *Clock) ShiftYears(delta int) {
	c.Year += delta
	if c.Year < 0 {
		c.Year = 0
	}
}
