package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/talgya/fantasy-chronicle/internal/llm"
	"github.com/talgya/fantasy-chronicle/internal/lore"
	"github.com/talgya/fantasy-chronicle/internal/markdown"
	"github.com/talgya/fantasy-chronicle/internal/notify"
	"github.com/talgya/fantasy-chronicle/internal/persistence"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

// recentContext is how many earlier events are given to the enricher.
const recentContext = 5

// Enricher elaborates on events.
type Enricher interface {
	Enhance(ctx context.Context, req llm.EnrichRequest) llm.Enrichment
}

// Illustrator draws events and returns the image path.
type Illustrator interface {
	Illustrate(ctx context.Context, visual string, ordinal int) (string, error)
}

// Summarizer renders events for the chat channel.
type Summarizer interface {
	Summarize(ctx context.Context, req llm.SummaryRequest) llm.Summary
}

// Notifier delivers messages to the chat channel.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) bool
}

// Store is the durable side of the chronicle.
type Store interface {
	Snapshotter
	AppendEvent(rec persistence.EventRecord) error
	RecentEvents(n int) ([]string, error)
	SavePlots(plots []*world.Plot) error
	SaveCharacters(chars map[string]*world.Character) error
}

// SeasonChange records a season transition caused by an event.
type SeasonChange struct {
	From world.Season `json:"from"`
	To   world.Season `json:"to"`
	Year int          `json:"year"`
}

// NewYear reports whether the transition turned the year.
func (c SeasonChange) NewYear() bool {
	return c.From == world.Winter && c.To == world.Spring
}

// Shift records a rare world shift caused by an event.
type Shift struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Processed is everything that happened while handling one event.
type Processed struct {
	Event        Event         `json:"event"`
	Data         EventData     `json:"data"`
	Summary      llm.Summary   `json:"-"`
	Headline     string        `json:"headline"`
	ImagePath    string        `json:"image_path,omitempty"`
	Enriched     bool          `json:"enriched"`
	Delivered    bool          `json:"delivered"`
	SeasonChange *SeasonChange `json:"season_change,omitempty"`
	Shift        *Shift        `json:"shift,omitempty"`
}

// Config wires a Chronicle. Only WorldName, Vocab, Rand and State are
// required; a nil collaborator disables its stage.
type Config struct {
	WorldName   string
	Vocab       *lore.Vocabulary
	Rand        *rand.Rand
	State       *world.State
	LastEventID int

	Store       Store
	Enricher    Enricher
	Illustrator Illustrator
	Summarizer  Summarizer
	Notifier    Notifier
}

// Chronicle runs the event pipeline for one world: generate, extract,
// enrich, illustrate, persist, mutate, then notify. It owns the world state;
// other goroutines read it through View.
type Chronicle struct {
	worldName string
	vocab     *lore.Vocabulary
	gen       *Generator
	mut       *Mutator

	store       Store
	enricher    Enricher
	illustrator Illustrator
	summarizer  Summarizer
	notifier    Notifier

	mu    sync.RWMutex
	state *world.State

	// Filled by mutator hooks during Apply.
	pending Processed

	obsMu     sync.Mutex
	observers []func(Processed)
}

// NewChronicle creates a chronicle continuing after cfg.LastEventID.
func NewChronicle(cfg Config) *Chronicle {
	c := &Chronicle{
		worldName:   cfg.WorldName,
		vocab:       cfg.Vocab,
		gen:         NewGenerator(cfg.WorldName, cfg.Vocab, cfg.Rand),
		store:       cfg.Store,
		enricher:    cfg.Enricher,
		illustrator: cfg.Illustrator,
		summarizer:  cfg.Summarizer,
		notifier:    cfg.Notifier,
		state:       cfg.State,
	}
	c.gen.Resume(cfg.LastEventID)

	c.mut = NewMutator(cfg.State, cfg.Rand, cfg.Store)
	c.mut.OnSeasonChange = func(from, to world.Season, year int) {
		c.pending.SeasonChange = &SeasonChange{From: from, To: to, Year: year}
	}
	c.mut.OnShift = func(kind, detail string) {
		c.pending.Shift = &Shift{Kind: kind, Detail: detail}
	}
	return c
}

// WorldName returns the name of the chronicled world.
func (c *Chronicle) WorldName() string {
	return c.worldName
}

// View calls fn with the world state under a read lock. fn must not keep
// references past its return.
func (c *Chronicle) View(fn func(s *world.State)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.state)
}

// Subscribe registers fn to be called after every processed event.
func (c *Chronicle) Subscribe(fn func(Processed)) {
	c.obsMu.Lock()
	c.observers = append(c.observers, fn)
	c.obsMu.Unlock()
}

// Step produces and fully processes one event. Failures of optional stages
// are logged and skipped.
func (c *Chronicle) Step(ctx context.Context) Processed {
	ev := c.gen.Generate()
	data := Extract(ev.Text, c.vocab)
	log := slog.With("event_id", ev.ID, "category", ev.Category)
	log.Info("event generated", "location", data.Location, "characters", len(data.Characters), "factions", len(data.Factions))

	var clock world.Clock
	var summary string
	c.View(func(s *world.State) {
		clock = s.Time
		summary = s.Summary()
	})

	if c.enricher != nil {
		var recent []string
		if c.store != nil {
			var err error
			if recent, err = c.store.RecentEvents(recentContext); err != nil {
				log.Warn("recent events unavailable", "error", err)
			}
		}
		data.Enrichment = c.enricher.Enhance(ctx, llm.EnrichRequest{
			WorldName: c.worldName,
			EventText: ev.Text,
			Category:  ev.Category,
			Clock:     clock,
			Summary:   summary,
			Recent:    recent,
		})
	}

	var imagePath string
	if visual := data.Enrichment.Get(llm.KeyVisualDescription); visual != "" && c.illustrator != nil {
		path, err := c.illustrator.Illustrate(ctx, visual, ev.ID)
		if err != nil {
			log.Warn("illustration failed", "error", err)
		}
		imagePath = path
	}

	if c.store != nil {
		err := c.store.AppendEvent(persistence.EventRecord{
			ID:         ev.ID,
			Timestamp:  ev.Timestamp,
			Category:   ev.Category,
			EventText:  ev.Text,
			Location:   data.Location,
			Characters: data.Characters,
			Factions:   data.Factions,
			ImagePath:  imagePath,
		})
		if err != nil {
			log.Error("event not saved", "error", err)
		}
	}

	c.mu.Lock()
	c.pending = Processed{}
	c.mut.Apply(ev, data)
	out := c.pending
	c.pending = Processed{}
	clock = c.state.Time
	c.saveTables(log)
	c.mu.Unlock()

	out.Event = ev
	out.Data = data
	out.ImagePath = imagePath
	out.Enriched = !data.Enrichment.IsEmpty()

	sreq := llm.SummaryRequest{WorldName: c.worldName, EventText: ev.Text, Category: ev.Category, Clock: clock}
	if c.summarizer != nil {
		out.Summary = c.summarizer.Summarize(ctx, sreq)
	} else {
		out.Summary = llm.FallbackSummary(sreq)
	}
	out.Headline = out.Summary.Headline

	if c.notifier != nil {
		// The turn of the season is announced before the event that caused it.
		if out.SeasonChange != nil {
			c.notifier.Send(ctx, notify.Message{Text: seasonMessage(*out.SeasonChange, c.worldName)})
		}
		out.Delivered = c.notifier.Send(ctx, notify.Message{
			Text:      out.Summary.FormattedMessage,
			ImagePath: imagePath,
			Details:   detailsOf(data.Enrichment),
			EventID:   ev.ID,
		})
	}

	c.obsMu.Lock()
	observers := append([]func(Processed){}, c.observers...)
	c.obsMu.Unlock()
	for _, fn := range observers {
		fn(out)
	}
	return out
}

// saveTables refreshes the plot and character tables. Callers hold c.mu.
func (c *Chronicle) saveTables(log *slog.Logger) {
	if c.store == nil {
		return
	}
	if err := c.store.SavePlots(c.state.ActivePlots); err != nil {
		log.Warn("plots not saved", "error", err)
	}
	if err := c.store.SaveCharacters(c.state.CharacterStatus); err != nil {
		log.Warn("characters not saved", "error", err)
	}
}

func detailsOf(e llm.Enrichment) notify.Details {
	return notify.Details{
		HiddenDetails: e.Get(llm.KeyHiddenDetails),
		Connections:   e.Get(llm.KeyConnections),
		PlotHooks:     e.Get(llm.KeyPlotHooks),
		Consequences:  e.Get(llm.KeyConsequences),
	}
}

var seasonEmoji = map[world.Season]string{
	world.Spring: "🌱",
	world.Summer: "☀️",
	world.Autumn: "🍂",
	world.Winter: "❄️",
}

func seasonMessage(sc SeasonChange, worldName string) string {
	emoji, ok := seasonEmoji[sc.To]
	if !ok {
		emoji = "🍃"
	}
	msg := fmt.Sprintf("%s *The season has changed to %s!*\n\n", emoji, sc.To.Name())
	if sc.NewYear() {
		msg += fmt.Sprintf("🎆 A new year begins! It is now Year %d in %s.", sc.Year, markdown.Escape(worldName))
	}
	return msg
}
