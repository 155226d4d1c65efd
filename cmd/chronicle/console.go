package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/fantasy-chronicle/internal/engine"
	"github.com/talgya/fantasy-chronicle/internal/llm"
	"github.com/talgya/fantasy-chronicle/internal/lore"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

const (
	ansiReset   = "\033[0m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiBlue    = "\033[34m"
	ansiMagenta = "\033[35m"
	ansiCyan    = "\033[36m"
)

// console renders the chronicle for a human watching the terminal.
type console struct {
	out   io.Writer
	color bool
}

func newConsole(f *os.File) *console {
	color := os.Getenv("NO_COLOR") == "" &&
		(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	return &console{out: f, color: color}
}

func (c *console) paint(code, s string) string {
	if !c.color {
		return s
	}
	return code + s + ansiReset
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) banner() {
	rule := strings.Repeat("=", 80)
	title := "FANTASY WORLD EVENT GENERATOR"
	pad := (80 - len(title)) / 2
	c.printf("\n%s\n%s%s\n%s\n\n", rule, strings.Repeat(" ", pad), title, rule)
	c.printf("Welcome to the Fantasy World Event Generator!\n")
}

// worldSummary prints the state of the world at startup.
func (c *console) worldSummary(name string, s *world.State, categories map[string]int) {
	c.printf("\n=== %s WORLD SUMMARY ===\n\n", name)
	c.printf("%s Year %d, %s\n", c.paint(ansiBlue, "Date:"), s.Time.Year, s.Time.Season.Name())
	c.printf("%s %s\n", c.paint(ansiBlue, "Time:"), lore.Capitalize(string(s.Time.TimeOfDay)))
	c.printf("%s %s\n", c.paint(ansiBlue, "Weather:"), lore.Capitalize(s.Time.Weather))

	c.printf("\n%s %s\n", c.paint(ansiYellow, "Total Events:"), humanize.Comma(int64(s.EventCount)))
	if len(categories) > 0 {
		c.printf("\n%s\n", c.paint(ansiYellow, "Event Categories:"))
		for _, kv := range byCount(categories) {
			c.printf("  %s: %s\n", kv.key, humanize.Comma(int64(kv.n)))
		}
	}

	if len(s.LocationStatus) > 0 {
		counts := make(map[string]int, len(s.LocationStatus))
		for name, loc := range s.LocationStatus {
			counts[name] = len(loc.Events)
		}
		c.printf("\n%s\n", c.paint(ansiGreen, "Most Active Locations:"))
		for _, kv := range top(byCount(counts), 5) {
			c.printf("  %s: %d events\n", kv.key, kv.n)
		}
	}

	if len(s.CharacterStatus) > 0 {
		counts := make(map[string]int, len(s.CharacterStatus))
		for name, ch := range s.CharacterStatus {
			counts[name] = len(ch.Events)
		}
		c.printf("\n%s\n", c.paint(ansiMagenta, "Most Active Characters:"))
		for _, kv := range top(byCount(counts), 5) {
			c.printf("  %s (%s): %d events\n", kv.key, s.CharacterStatus[kv.key].Type, kv.n)
		}
	}

	if len(s.Relations) > 0 {
		rc := s.RelationCounts()
		c.printf("\n%s", c.paint(ansiRed, "Faction Relations:"))
		for _, st := range []world.RelationStatus{world.Allied, world.Friendly, world.Trading, world.Neutral, world.Hostile} {
			if rc[st] > 0 {
				c.printf(" %d %s", rc[st], st)
			}
		}
		c.printf("\n")
		for _, key := range s.RelationKeys() {
			rel := s.Relations[key]
			if rel.Status == world.Hostile || rel.Status == world.Allied {
				c.printf("  %s and %s: %s\n", rel.Factions[0], rel.Factions[1], rel.Status)
			}
		}
	}

	if len(s.ActivePlots) > 0 {
		c.printf("\n%s %d\n", c.paint(ansiCyan, "Active Plots:"), len(s.ActivePlots))
		for i, p := range s.ActivePlots {
			if i == 3 {
				break
			}
			c.printf("  %d. %s\n", i+1, p.Name)
		}
	}
}

// event prints one processed event with whatever enrichment it carries.
func (c *console) event(p engine.Processed) {
	c.printf("\n%s\n", p.Event.Text)

	e := p.Data.Enrichment
	if !e.IsEmpty() {
		c.printf("\n--- EVENT DETAILS ---\n\n")
		sections := []struct {
			key, title, color string
		}{
			{llm.KeyConsequences, "Possible Consequences:", ansiYellow},
			{llm.KeyHiddenDetails, "Behind the Scenes:", ansiMagenta},
			{llm.KeyConnections, "Connections to Previous Events:", ansiCyan},
			{llm.KeyPlotHooks, "Adventure Hooks:", ansiGreen},
		}
		for _, sec := range sections {
			if v := e.Get(sec.key); v != "" {
				c.printf("%s\n%s\n\n", c.paint(sec.color, sec.title), v)
			}
		}
	}
	if p.ImagePath != "" {
		c.printf("%s %s\n", c.paint(ansiBlue, "Event illustration saved to:"), p.ImagePath)
	}
	if p.SeasonChange != nil {
		c.printf("\n%s %s gives way to %s.\n", c.paint(ansiGreen, "Season:"), p.SeasonChange.From.Name(), p.SeasonChange.To.Name())
		if p.SeasonChange.NewYear() {
			c.printf("A new year begins: Year %d.\n", p.SeasonChange.Year)
		}
	}
	if p.Shift != nil {
		c.printf("%s %s\n", c.paint(ansiRed, "The world shifts:"), p.Shift.Detail)
	}
}

func (c *console) clock(t world.Clock) {
	c.printf("\n%s Year %d, %s, %s\n", c.paint(ansiBlue, "World Time:"), t.Year, t.Season.Name(), lore.Capitalize(string(t.TimeOfDay)))
	c.printf("%s %s\n", c.paint(ansiBlue, "Weather:"), lore.Capitalize(t.Weather))
}

func (c *console) waiting(d time.Duration) {
	now := time.Now()
	c.printf("\nWaiting for next event, %s... (Press Ctrl+C to exit)\n",
		humanize.RelTime(now.Add(d), now, "ago", "from now"))
}

func (c *console) farewell(name, dbPath, worldDir string) {
	c.printf("\n\nExiting Fantasy World Event Generator.\n")
	c.printf("Your world '%s' has been saved.\n", name)
	c.printf("World database: %s\n", dbPath)
	c.printf("World files: %s\n", worldDir)
	c.printf("\nThank you for using Fantasy World Event Generator. Farewell!\n")
}

type counted struct {
	key string
	n   int
}

// byCount orders counts descending, ties by name.
func byCount(m map[string]int) []counted {
	out := make([]counted, 0, len(m))
	for k, n := range m {
		out = append(out, counted{k, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].key < out[j].key
	})
	return out
}

func top(xs []counted, n int) []counted {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}
