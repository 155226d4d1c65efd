package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ncruces/go-strftime"

	"github.com/talgya/fantasy-chronicle/internal/lore"
	"github.com/talgya/fantasy-chronicle/internal/markdown"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

const (
	enrichTokens  = 1200
	summaryTokens = 600
	// fallbackChars is how much event text a fallback summary keeps.
	fallbackChars = 200
)

// Storyteller turns raw events into enriched, summarised and illustrated
// ones. Every method degrades to a fallback when the client is disabled or
// a call fails.
type Storyteller struct {
	client    *Client
	imagesDir string
	now       func() time.Time
}

// NewStoryteller creates a storyteller that saves illustrations under
// imagesDir. client may be nil.
func NewStoryteller(client *Client, imagesDir string) *Storyteller {
	return &Storyteller{client: client, imagesDir: imagesDir, now: time.Now}
}

// Enabled reports whether calls reach the model.
func (s *Storyteller) Enabled() bool {
	return s != nil && s.client.Enabled()
}

// EnrichRequest is the context handed to Enhance.
type EnrichRequest struct {
	WorldName string
	EventText string
	Category  string
	Clock     world.Clock
	Summary   string
	Recent    []string
}

// Enhance asks the model to elaborate on an event. Failures and malformed
// replies yield an empty enrichment.
func (s *Storyteller) Enhance(ctx context.Context, req EnrichRequest) Enrichment {
	if !s.Enabled() {
		return Enrichment{}
	}
	text, err := s.client.CompleteJSON(ctx, buildEnrichPrompt(req), enrichTokens)
	if err != nil {
		slog.Warn("event enrichment failed", "category", req.Category, "error", err)
		return Enrichment{}
	}
	e := CoerceEnrichment(text)
	if e.IsEmpty() {
		slog.Warn("event enrichment unusable", "category", req.Category, "reply_len", len(text))
	}
	return e
}

func buildEnrichPrompt(req EnrichRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the storyteller for a fantasy world named %s.\n\n", req.WorldName)

	b.WriteString("Recent events in the world:\n")
	if len(req.Recent) == 0 {
		b.WriteString("No previous events.\n")
	}
	for _, e := range req.Recent {
		fmt.Fprintf(&b, "%s\n", e)
	}

	fmt.Fprintf(&b, "\nCurrent world state:\nYear: %d\nSeason: %s\nTime of day: %s\nWeather: %s\n",
		req.Clock.Year, req.Clock.Season, req.Clock.TimeOfDay, req.Clock.Weather)
	if req.Summary != "" {
		fmt.Fprintf(&b, "%s\n", req.Summary)
	}

	fmt.Fprintf(&b, "\nNew event (%s):\n%s\n\n", req.Category, req.EventText)
	fmt.Fprintf(&b, `Based on this new event and the history of %s, provide the following information in JSON format:
{
  "consequences": "What might happen as a result of this event",
  "connections": "How this event connects to previous events",
  "hidden_details": "What might be happening behind the scenes",
  "plot_hooks": "Adventure opportunities arising from this event",
  "visual_description": "A brief visual description of this event for illustration"
}`, req.WorldName)
	return b.String()
}

// Illustrate draws visual and saves it as
// <imagesDir>/event_<ordinal>_<YYYYmmdd_HHMMSS>.png. It returns "" with no
// error when illustration is disabled or there is nothing to draw.
func (s *Storyteller) Illustrate(ctx context.Context, visual string, ordinal int) (string, error) {
	if !s.Enabled() || strings.TrimSpace(visual) == "" {
		return "", nil
	}

	prompt := fmt.Sprintf(`Create a detailed fantasy illustration for this scene:
%s

Make it high-quality fantasy artwork with dramatic lighting and vivid colors.
The style should be magical and evocative of a fantasy role-playing game illustration.
Please return only an image without text.`, visual)

	data, err := s.client.Image(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}

	if err := os.MkdirAll(s.imagesDir, 0o755); err != nil {
		return "", fmt.Errorf("create images dir: %w", err)
	}
	name := fmt.Sprintf("event_%d_%s.png", ordinal, strftime.Format("%Y%m%d_%H%M%S", s.now()))
	path := filepath.Join(s.imagesDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	slog.Info("event illustrated", "event_id", ordinal, "path", path, "bytes", len(data))
	return path, nil
}

// SummaryRequest is the context handed to Summarize.
type SummaryRequest struct {
	WorldName string
	EventText string
	Category  string
	Clock     world.Clock
}

// Summary is a chat-ready rendition of an event.
type Summary struct {
	Headline         string
	Description      string
	FormattedMessage string
}

// Summarize writes a news-style headline and description for an event. It
// always returns something usable: when the model is unavailable the event
// text itself is truncated into a summary.
func (s *Storyteller) Summarize(ctx context.Context, req SummaryRequest) Summary {
	body := eventBody(req.EventText)
	if s.Enabled() {
		text, err := s.client.CompleteJSON(ctx, buildSummaryPrompt(req, body), summaryTokens)
		if err == nil {
			e := CoerceEnrichment(text)
			if e.Has("headline") && e.Has("description") {
				return formatSummary(req, e.Get("headline"), e.Get("description"))
			}
			slog.Warn("summary reply unusable", "category", req.Category)
		} else {
			slog.Warn("event summary failed", "category", req.Category, "error", err)
		}
	}
	return FallbackSummary(req)
}

func buildSummaryPrompt(req SummaryRequest, body string) string {
	return fmt.Sprintf(`Create a fantasy news-style summary for this event.

Generate two parts:
1. A headline (under 100 characters)
2. A news-style description (100-200 words)

Format the response as JSON:
{
  "headline": "your headline here",
  "description": "your description here"
}

Event category: %s
Event details: %s
World context:
- Year %d
- %s season
- %s weather`,
		req.Category, body, req.Clock.Year,
		lore.Capitalize(string(req.Clock.Season)), lore.Capitalize(req.Clock.Weather))
}

func formatSummary(req SummaryRequest, headline, description string) Summary {
	emoji := lore.CategoryEmoji(req.Category)
	headline = markdown.Escape(headline)
	description = markdown.Escape(description)
	return Summary{
		Headline:         emoji + " " + headline,
		Description:      description,
		FormattedMessage: fmt.Sprintf("%s *%s*\n\n%s\n\n%s", emoji, headline, description, yearLine(req)),
	}
}

// FallbackSummary builds a summary from the event text alone.
func FallbackSummary(req SummaryRequest) Summary {
	headline := fmt.Sprintf("New %s Event in %s!", lore.Capitalize(req.Category), req.WorldName)
	excerpt := truncate(markdown.Escape(eventBody(req.EventText)), fallbackChars) + "..."
	return Summary{
		Headline:         headline,
		Description:      excerpt,
		FormattedMessage: fmt.Sprintf("📢 *%s*\n\n%s\n\n%s", markdown.Escape(headline), excerpt, yearLine(req)),
	}
}

func yearLine(req SummaryRequest) string {
	return fmt.Sprintf("\\_Year %d in %s\\_", req.Clock.Year, markdown.Escape(req.WorldName))
}

// eventBody drops the header line of a formatted event.
func eventBody(text string) string {
	if _, body, ok := strings.Cut(text, "\n"); ok {
		return body
	}
	return text
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
