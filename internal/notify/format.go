package notify

import "github.com/talgya/fantasy-chronicle/internal/markdown"

// View names one follow-up detail offered under an event message.
type View string

const (
	ViewBehindScenes   View = "behind_scenes"
	ViewConnections    View = "connections"
	ViewAdventureHooks View = "adventure_hooks"
	ViewConsequences   View = "consequences"
)

// Views lists the detail views in button order.
var Views = []View{ViewBehindScenes, ViewConnections, ViewAdventureHooks, ViewConsequences}

// Details holds the text behind each detail view of one event.
type Details struct {
	HiddenDetails string `json:"hidden_details"`
	Connections   string `json:"connections"`
	PlotHooks     string `json:"plot_hooks"`
	Consequences  string `json:"consequences"`
}

// Empty reports whether there is nothing to offer.
func (d Details) Empty() bool {
	return d.HiddenDetails == "" && d.Connections == "" && d.PlotHooks == "" && d.Consequences == ""
}

// Render builds the reply sent when a detail button is pressed.
func (d Details) Render(v View) (string, bool) {
	var title, body, missing string
	switch v {
	case ViewBehindScenes:
		title, body, missing = "🔍 *Behind the Scenes*", d.HiddenDetails, "No details available."
	case ViewConnections:
		title, body, missing = "🔗 *Connections to Previous Events*", d.Connections, "No connections found."
	case ViewAdventureHooks:
		title, body, missing = "⚔️ *Adventure Hooks*", d.PlotHooks, "No adventure hooks available."
	case ViewConsequences:
		title, body, missing = "🔮 *Possible Consequences*", d.Consequences, "No consequences predicted."
	default:
		return "", false
	}
	if body == "" {
		body = missing
	}
	return title + "\n\n" + markdown.Escape(body), true
}

// buttonLabel is the inline keyboard text for a view.
func buttonLabel(v View) string {
	switch v {
	case ViewBehindScenes:
		return "🔍 Behind the Scenes"
	case ViewConnections:
		return "🔗 Connections"
	case ViewAdventureHooks:
		return "⚔️ Adventure Hooks"
	default:
		return "🔮 Consequences"
	}
}
