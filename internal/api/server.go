// Package api provides the HTTP API for observing a chronicled world.
// GET endpoints are public (read-only observation), except event details,
// which are reserved for the admin like the chat detail buttons.
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/fantasy-chronicle/internal/engine"
	"github.com/talgya/fantasy-chronicle/internal/persistence"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

// Event list limits.
const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// Server serves the world state over HTTP.
type Server struct {
	Chronicle *engine.Chronicle
	DB        *persistence.DB
	Trigger   func() bool // Cuts the current pause short. Nil disables /trigger.
	Port      int
	AdminKey  string // Bearer token for admin endpoints. Empty = admin disabled.
	Atlas     *world.Atlas

	started time.Time
	hub     *Hub
	limiter *RateLimiter
}

// Start begins serving the HTTP API in a goroutine. The server shuts down
// when ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler(ctx)}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

// Handler builds the routes and starts the stream hub, which runs until ctx
// is cancelled.
func (s *Server) Handler(ctx context.Context) http.Handler {
	s.started = time.Now()
	// Each trigger costs model calls when enrichment is on.
	s.limiter = NewRateLimiter(12, time.Hour)
	go s.limiter.SweepEvery(ctx, time.Hour)

	s.hub = NewHub()
	go s.hub.Run(ctx)
	s.Chronicle.Subscribe(s.hub.Publish)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/plots", s.handlePlots)
	mux.HandleFunc("GET /api/v1/characters", s.handleCharacters)
	mux.HandleFunc("GET /api/v1/locations", s.handleLocations)
	mux.HandleFunc("GET /api/v1/relations", s.handleRelations)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)
	mux.HandleFunc("GET /api/v1/map", s.handleMap)
	mux.HandleFunc("GET /api/v1/map/{location}", s.handleMapLocation)

	mux.HandleFunc("GET /api/v1/events/{id}/details", s.adminOnly(s.handleEventDetails))
	mux.HandleFunc("POST /api/v1/trigger", s.adminOnly(RateLimitMiddleware(s.limiter, s.handleTrigger)))

	return corsMiddleware(mux)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no CHRONICLE_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":    s.Chronicle.WorldName(),
		"started": humanize.Time(s.started),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"streams": s.hub.Clients(),
	}
	s.Chronicle.View(func(st *world.State) {
		status["year"] = st.Time.Year
		status["season"] = st.Time.Season.Name()
		status["time_of_day"] = st.Time.TimeOfDay
		status["weather"] = st.Time.Weather
		status["events"] = st.EventCount
		status["events_since_season_change"] = st.EventsSinceSeasonChange
		status["characters"] = len(st.CharacterStatus)
		status["locations"] = len(st.LocationStatus)
		status["active_plots"] = len(st.ActivePlots)
		status["relations"] = st.RelationCounts()
	})

	if s.DB != nil {
		status["run_id"] = s.DB.RunID()
		if n, err := s.DB.SnapshotCount(); err == nil {
			status["snapshots"] = humanize.Comma(int64(n))
		}
		if counts, err := s.DB.CategoryCounts(); err == nil {
			status["categories"] = counts
		}
	}
	writeJSON(w, status)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "event log unavailable", http.StatusServiceUnavailable)
		return
	}
	limit := defaultEventLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxEventLimit {
			limit = n
		}
	}

	events, err := s.DB.Events(limit, r.URL.Query().Get("category"))
	if err != nil {
		slog.Error("events query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func (s *Server) handlePlots(w http.ResponseWriter, r *http.Request) {
	var plots []world.Plot
	s.Chronicle.View(func(st *world.State) {
		plots = make([]world.Plot, 0, len(st.ActivePlots))
		for _, p := range st.ActivePlots {
			c := *p
			c.Keywords = slices.Clone(p.Keywords)
			c.Events = slices.Clone(p.Events)
			c.Characters = slices.Clone(p.Characters)
			c.Locations = slices.Clone(p.Locations)
			plots = append(plots, c)
		}
	})
	writeJSON(w, plots)
}

func (s *Server) handleCharacters(w http.ResponseWriter, r *http.Request) {
	type characterSummary struct {
		Name         string `json:"name"`
		Type         string `json:"type"`
		Location     string `json:"location"`
		LastSeen     string `json:"last_seen"`
		Events       int    `json:"events"`
		Developments int    `json:"developments"`
	}

	location := r.URL.Query().Get("location")
	var result []characterSummary
	s.Chronicle.View(func(st *world.State) {
		result = make([]characterSummary, 0, len(st.CharacterStatus))
		for _, name := range st.CharacterNames() {
			c := st.CharacterStatus[name]
			if location != "" && c.Location != location {
				continue
			}
			result = append(result, characterSummary{
				Name:         name,
				Type:         c.Type,
				Location:     c.Location,
				LastSeen:     c.LastSeen,
				Events:       len(c.Events),
				Developments: len(c.Developments),
			})
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	type locationSummary struct {
		Name       string   `json:"name"`
		Features   []string `json:"notable_features"`
		Characters []string `json:"characters_present"`
		Events     int      `json:"events"`
	}

	var result []locationSummary
	s.Chronicle.View(func(st *world.State) {
		result = make([]locationSummary, 0, len(st.LocationStatus))
		for _, name := range st.LocationNames() {
			loc := st.LocationStatus[name]
			result = append(result, locationSummary{
				Name:       name,
				Features:   append([]string{}, loc.NotableFeatures...),
				Characters: append([]string{}, loc.CharactersPresent...),
				Events:     len(loc.Events),
			})
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	if s.Atlas == nil {
		http.Error(w, "map unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, s.Atlas.Render())
		return
	}
	writeJSON(w, s.Atlas)
}

// handleMapLocation returns where a location sits and how far every other
// place is from it, nearest first.
func (s *Server) handleMapLocation(w http.ResponseWriter, r *http.Request) {
	if s.Atlas == nil {
		http.Error(w, "map unavailable", http.StatusServiceUnavailable)
		return
	}
	name := r.PathValue("location")
	place, ok := s.Atlas.Locate(name)
	if !ok {
		http.Error(w, "unknown location", http.StatusNotFound)
		return
	}

	type neighbour struct {
		Name     string `json:"name"`
		Distance int    `json:"distance"`
	}
	var near []neighbour
	for _, p := range s.Atlas.Places() {
		if p.Name == name {
			continue
		}
		d, _ := s.Atlas.Travel(name, p.Name)
		near = append(near, neighbour{Name: p.Name, Distance: d})
	}
	sort.SliceStable(near, func(i, j int) bool { return near[i].Distance < near[j].Distance })

	var present []string
	s.Chronicle.View(func(st *world.State) {
		if loc := st.LocationStatus[name]; loc != nil {
			present = append([]string{}, loc.CharactersPresent...)
		}
	})

	writeJSON(w, map[string]any{
		"place":      place,
		"characters": present,
		"neighbours": near,
	})
}

func (s *Server) handleRelations(w http.ResponseWriter, r *http.Request) {
	type relationSummary struct {
		Key      string               `json:"key"`
		Factions [2]string            `json:"factions"`
		Status   world.RelationStatus `json:"status"`
		Events   int                  `json:"events"`
	}

	status := world.RelationStatus(r.URL.Query().Get("status"))
	var result []relationSummary
	s.Chronicle.View(func(st *world.State) {
		result = make([]relationSummary, 0, len(st.Relations))
		for _, key := range st.RelationKeys() {
			rel := st.Relations[key]
			if status != "" && rel.Status != status {
				continue
			}
			result = append(result, relationSummary{Key: key, Factions: rel.Factions, Status: rel.Status, Events: len(rel.Events)})
		}
	})
	// Busiest relations first.
	sort.SliceStable(result, func(i, j int) bool { return result[i].Events > result[j].Events })
	writeJSON(w, result)
}

func (s *Server) handleEventDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}
	if s.DB == nil {
		http.Error(w, "event log unavailable", http.StatusServiceUnavailable)
		return
	}
	d, ok, err := s.DB.EventDetails(id)
	if err != nil {
		slog.Error("event details query failed", "event_id", id, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no details for event", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"event_id": id, "details": d})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if s.Trigger == nil {
		http.Error(w, "trigger unavailable", http.StatusServiceUnavailable)
		return
	}
	queued := s.Trigger()
	slog.Info("next event requested", "queued", queued)
	writeJSONStatus(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
