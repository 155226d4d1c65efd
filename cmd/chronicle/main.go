// Command chronicle runs a fantasy world that narrates itself: it invents an
// event every so often, lets the world react, and reports to the terminal
// and, when configured, a Telegram chat.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/talgya/fantasy-chronicle/internal/api"
	"github.com/talgya/fantasy-chronicle/internal/config"
	"github.com/talgya/fantasy-chronicle/internal/engine"
	"github.com/talgya/fantasy-chronicle/internal/entropy"
	"github.com/talgya/fantasy-chronicle/internal/llm"
	"github.com/talgya/fantasy-chronicle/internal/lore"
	"github.com/talgya/fantasy-chronicle/internal/notify"
	"github.com/talgya/fantasy-chronicle/internal/persistence"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: env.Level(),
	}))
	slog.SetDefault(logger)

	con := newConsole(os.Stdout)
	con.banner()

	// ── Settings ─────────────────────────────────────────────────────
	settingsPath := config.SettingsPath(env.DataDir)
	settings, ok, err := config.LoadSettings(settingsPath)
	if err != nil {
		slog.Warn("settings unreadable, asking again", "path", settingsPath, "error", err)
	}
	if ok {
		con.printf("Last world used: %s\n", settings.WorldName)
		con.printf("Automatically loading the last world: %s\n", settings.WorldName)
	} else {
		settings, err = promptSettings(os.Stdin, con)
		if err != nil {
			slog.Error("no world name given", "error", err)
			os.Exit(1)
		}
	}
	settings = settings.Apply(env)
	name := settings.WorldName

	// ── Storage ──────────────────────────────────────────────────────
	worldDir := filepath.Join(env.DataDir, world.Slug(name)+"_world")
	imagesDir := filepath.Join(worldDir, "images")
	for _, dir := range []string{imagesDir, filepath.Join(worldDir, "events"), filepath.Join(worldDir, "maps")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("failed to create world directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	dbPath := persistence.Path(env.DataDir, name)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath, "run_id", db.RunID())

	seed := env.Seed
	if seed == 0 {
		seed = entropy.Seed()
	}
	rng := entropy.New(seed)
	vocab := lore.Default()

	// ── Load or Create World ─────────────────────────────────────────
	state, lastID, err := loadWorld(db, name, vocab, rng)
	if err != nil {
		slog.Error("failed to load world", "world", name, "error", err)
		os.Exit(1)
	}

	if err := settings.Save(settingsPath); err != nil {
		slog.Warn("settings not saved", "error", err)
	}

	// ── Atlas ────────────────────────────────────────────────────────
	atlas := world.NewAtlas(state.AtlasSeed, vocab.Locations)
	if err := writeAtlas(atlas, filepath.Join(worldDir, "maps")); err != nil {
		slog.Warn("realm map not written", "error", err)
	}
	counts := atlas.TerrainCounts()
	slog.Info("realm atlas generated", "seed", state.AtlasSeed, "hexes", atlas.HexCount(),
		"places", len(atlas.Places()), "ocean", counts[world.TerrainOcean],
		"mountain", counts[world.TerrainMountain], "river", counts[world.TerrainRiver])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Storyteller ──────────────────────────────────────────────────
	story := llm.NewStoryteller(llm.NewClient(settings.APIKey), imagesDir)
	if story.Enabled() {
		slog.Info("storyteller enabled (Gemini)")
	} else {
		slog.Warn("no Gemini API key, events will not be enriched or illustrated")
	}

	// ── Telegram ─────────────────────────────────────────────────────
	tg, err := notify.NewTelegram(settings.TelegramToken, settings.TelegramChatID, db)
	if err != nil {
		slog.Warn("telegram disabled", "error", err)
	}
	if tg.Enabled() {
		startTelegram(ctx, tg, name, settings, settingsPath)
	}

	cfg := engine.Config{
		WorldName:   name,
		Vocab:       vocab,
		Rand:        rng,
		State:       state,
		LastEventID: lastID,
		Store:       db,
	}
	if story.Enabled() {
		cfg.Enricher = story
		cfg.Illustrator = story
		cfg.Summarizer = story
	}
	if tg.Enabled() {
		cfg.Notifier = tg
	}
	chronicle := engine.NewChronicle(cfg)

	categories, err := db.CategoryCounts()
	if err != nil {
		slog.Warn("category counts unavailable", "error", err)
	}
	chronicle.View(func(s *world.State) { con.worldSummary(name, s, categories) })
	con.printf("\nWorld database stored at: %s\n", dbPath)
	con.printf("World files directory: %s\n", worldDir)

	// ── Loop ─────────────────────────────────────────────────────────
	loop := engine.NewLoop(chronicle, entropy.New(seed+1))
	loop.MinWait = env.MinWait
	loop.MaxWait = env.MaxWait
	loop.OnEvent = func(p engine.Processed) {
		con.event(p)
		chronicle.View(func(s *world.State) { con.clock(s.Time) })
	}
	loop.OnWait = con.waiting

	// ── HTTP API ─────────────────────────────────────────────────────
	if env.APIPort > 0 {
		if env.AdminKey == "" {
			slog.Warn("CHRONICLE_ADMIN_KEY not set, admin endpoints will be disabled")
		}
		srv := &api.Server{
			Chronicle: chronicle,
			DB:        db,
			Trigger:   loop.Trigger,
			Port:      env.APIPort,
			AdminKey:  env.AdminKey,
			Atlas:     atlas,
		}
		srv.Start(ctx)
		con.printf("API: http://localhost:%d/api/v1/status\n", env.APIPort)
	}

	con.printf("\nStarting event generation...\n")
	con.printf("Events will happen every %s to %s.\n", env.MinWait, env.MaxWait)
	con.printf("Press Ctrl+C at any time to exit.\n")

	loop.Run(ctx)

	con.farewell(name, dbPath, worldDir)
}

// loadWorld restores the latest snapshot or creates a fresh world. It
// returns the state and the last event id already recorded; numbering
// always resumes from the event log, whatever the snapshots say.
func loadWorld(db *persistence.DB, name string, vocab *lore.Vocabulary, rng *rand.Rand) (*world.State, int, error) {
	lastID, err := db.MaxEventID()
	if err != nil {
		return nil, 0, err
	}

	data, err := db.LatestSnapshot()
	switch {
	case errors.Is(err, persistence.ErrNoSnapshot):
		slog.Info("no saved state found, creating a new world", "world", name, "last_event", lastID)
		state := world.Genesis(name, vocab, rng, time.Now())
		if snap, err := state.Marshal(); err != nil {
			slog.Warn("initial state not encoded", "error", err)
		} else if err := db.AppendSnapshot(snap); err != nil {
			slog.Warn("initial state not saved", "error", err)
		}
		if err := db.SaveCharacters(state.CharacterStatus); err != nil {
			slog.Warn("characters not saved", "error", err)
		}
		if err := db.SavePlots(state.ActivePlots); err != nil {
			slog.Warn("plots not saved", "error", err)
		}
		return state, lastID, nil
	case err != nil:
		return nil, 0, err
	}

	state, err := world.Restore(data)
	if err != nil {
		return nil, 0, err
	}
	slog.Info("world state restored", "world", name, "year", state.Time.Year,
		"season", state.Time.Season, "last_event", lastID)
	return state, lastID, nil
}

// writeAtlas saves the realm map as text and JSON under dir.
func writeAtlas(a *world.Atlas, dir string) error {
	if err := os.WriteFile(filepath.Join(dir, "realm_map.txt"), []byte(a.Render()), 0644); err != nil {
		return fmt.Errorf("write map text: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal map: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "realm_map.json"), data, 0644); err != nil {
		return fmt.Errorf("write map json: %w", err)
	}
	return nil
}

// startTelegram greets a known chat, or waits in the background for a
// first message to learn it. Detail buttons are served once a chat is set.
func startTelegram(ctx context.Context, tg *notify.Telegram, name string, settings config.Settings, path string) {
	if tg.ChatID() != 0 {
		tg.RefreshAdmins()
		tg.Welcome(name)
		go tg.Poll(ctx)
		return
	}
	go func() {
		found := tg.DiscoverChatID(ctx, notify.DiscoveryWindow, func(id int64) {
			settings.TelegramChatID = id
			if err := settings.Save(path); err != nil {
				slog.Warn("chat id not saved", "error", err)
			}
		})
		if found {
			tg.Poll(ctx)
		}
	}()
}

// promptSettings asks for a world on the first run.
func promptSettings(in io.Reader, con *console) (config.Settings, error) {
	r := bufio.NewReader(in)
	ask := func(q string) (string, error) {
		con.printf("%s", q)
		line, err := r.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	var s config.Settings
	for s.WorldName == "" {
		name, err := ask("What is the name of your fantasy world? ")
		if err != nil {
			return s, err
		}
		s.WorldName = name
	}

	var err error
	if s.APIKey, err = ask("\nEnter your Google Gemini API key (or leave blank to skip AI features): "); err != nil {
		return s, nil
	}
	if s.TelegramToken, err = ask("\nEnter your Telegram bot token (or leave blank to skip Telegram notifications): "); err != nil {
		return s, nil
	}
	if s.TelegramToken == "" {
		return s, nil
	}
	raw, err := ask("\nEnter your Telegram chat ID (or leave blank to detect it): ")
	if err != nil || raw == "" {
		return s, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		con.printf("Invalid chat ID format. The chat will be detected instead.\n")
		return s, nil
	}
	s.TelegramChatID = id
	return s, nil
}
