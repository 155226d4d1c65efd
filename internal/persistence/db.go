// Package persistence provides the SQLite event log and world snapshots for
// one world. Every operation is an independent auto-committing statement;
// plots and characters are durable mirrors refreshed from the in-memory
// world state.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/fantasy-chronicle/internal/notify"
	"github.com/talgya/fantasy-chronicle/internal/world"
)

// ErrNoSnapshot is returned when a world has never been saved.
var ErrNoSnapshot = errors.New("no world snapshot")

// DB wraps a SQLite connection for one world's storage.
type DB struct {
	conn  *sqlx.DB
	runID string
}

// Path returns the database file for a world inside dir.
func Path(dir, worldName string) string {
	return filepath.Join(dir, world.Slug(worldName)+"_events.db")
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn, runID: uuid.NewString()}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// RunID identifies this process's snapshots.
func (db *DB) RunID() string {
	return db.runID
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY,
		timestamp TEXT NOT NULL,
		category TEXT NOT NULL,
		event_text TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		characters TEXT NOT NULL DEFAULT '[]',
		factions TEXT NOT NULL DEFAULT '[]',
		image_path TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS world_state (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		run_id TEXT NOT NULL DEFAULT '',
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plots (
		id INTEGER PRIMARY KEY,
		plot_name TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		involved_characters TEXT NOT NULL,
		involved_locations TEXT NOT NULL,
		involved_factions TEXT NOT NULL,
		events_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS characters (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		location TEXT NOT NULL,
		affiliations TEXT NOT NULL,
		history TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS event_details (
		event_id INTEGER PRIMARY KEY,
		hidden_details TEXT NOT NULL,
		connections TEXT NOT NULL,
		plot_hooks TEXT NOT NULL,
		consequences TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// EventRecord is one row of the append-only event log.
type EventRecord struct {
	ID         int             `json:"id"`
	Timestamp  string          `json:"timestamp"`
	Category   string          `json:"category"`
	EventText  string          `json:"event_text"`
	Location   string          `json:"location"`
	Characters []world.Mention `json:"characters"`
	Factions   []string        `json:"factions"`
	ImagePath  string          `json:"image_path"`
}

type eventRow struct {
	ID         int    `db:"id"`
	Timestamp  string `db:"timestamp"`
	Category   string `db:"category"`
	EventText  string `db:"event_text"`
	Location   string `db:"location"`
	Characters string `db:"characters"`
	Factions   string `db:"factions"`
	ImagePath  string `db:"image_path"`
}

// AppendEvent writes an event under its ordinal.
func (db *DB) AppendEvent(rec EventRecord) error {
	charsJSON, err := json.Marshal(nonNil(rec.Characters))
	if err != nil {
		return fmt.Errorf("marshal characters: %w", err)
	}
	factionsJSON, err := json.Marshal(nonNil(rec.Factions))
	if err != nil {
		return fmt.Errorf("marshal factions: %w", err)
	}
	_, err = db.conn.Exec(`INSERT INTO events
		(id, timestamp, category, event_text, location, characters, factions, image_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp, rec.Category, rec.EventText, rec.Location,
		string(charsJSON), string(factionsJSON), rec.ImagePath)
	if err != nil {
		return fmt.Errorf("insert event %d: %w", rec.ID, err)
	}
	return nil
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

// RecentEvents returns the text of the last n events, most recent first.
func (db *DB) RecentEvents(n int) ([]string, error) {
	var texts []string
	err := db.conn.Select(&texts, "SELECT event_text FROM events ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return texts, nil
}

// Events returns full records for the last n events, most recent first.
// An empty category matches every event.
func (db *DB) Events(n int, category string) ([]EventRecord, error) {
	var rows []eventRow
	var err error
	if category == "" {
		err = db.conn.Select(&rows, "SELECT * FROM events ORDER BY id DESC LIMIT ?", n)
	} else {
		err = db.conn.Select(&rows, "SELECT * FROM events WHERE category = ? ORDER BY id DESC LIMIT ?", category, n)
	}
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}

	out := make([]EventRecord, 0, len(rows))
	for _, r := range rows {
		rec := EventRecord{
			ID:        r.ID,
			Timestamp: r.Timestamp,
			Category:  r.Category,
			EventText: r.EventText,
			Location:  r.Location,
			ImagePath: r.ImagePath,
		}
		if err := json.Unmarshal([]byte(r.Characters), &rec.Characters); err != nil {
			return nil, fmt.Errorf("decode characters of event %d: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.Factions), &rec.Factions); err != nil {
			return nil, fmt.Errorf("decode factions of event %d: %w", r.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// MaxEventID returns the highest stored event id, or 0.
func (db *DB) MaxEventID() (int, error) {
	var id int
	if err := db.conn.Get(&id, "SELECT COALESCE(MAX(id), 0) FROM events"); err != nil {
		return 0, fmt.Errorf("max event id: %w", err)
	}
	return id, nil
}

// EventCount returns how many events are stored.
func (db *DB) EventCount() (int, error) {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM events"); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// CategoryCounts tallies stored events per category.
func (db *DB) CategoryCounts() (map[string]int, error) {
	var rows []struct {
		Category string `db:"category"`
		N        int    `db:"n"`
	}
	if err := db.conn.Select(&rows, "SELECT category, COUNT(*) AS n FROM events GROUP BY category"); err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Category] = r.N
	}
	return counts, nil
}

// AppendSnapshot stores a serialised world state. Snapshots are never
// overwritten.
func (db *DB) AppendSnapshot(state []byte) error {
	_, err := db.conn.Exec("INSERT INTO world_state (timestamp, run_id, state_json) VALUES (?, ?, ?)",
		world.Stamp(time.Now()), db.runID, string(state))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recently appended snapshot.
func (db *DB) LatestSnapshot() ([]byte, error) {
	var state string
	err := db.conn.Get(&state, "SELECT state_json FROM world_state ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return []byte(state), nil
}

// SnapshotCount returns how many snapshots have been appended.
func (db *DB) SnapshotCount() (int, error) {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM world_state"); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

// SavePlots writes all plots to the database (full replace).
func (db *DB) SavePlots(plots []*world.Plot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin plots: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM plots"); err != nil {
		return fmt.Errorf("clear plots: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO plots
		(id, plot_name, description, status, involved_characters, involved_locations, involved_factions, events_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare plot insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range plots {
		charsJSON, err := json.Marshal(nonNil(p.Characters))
		if err != nil {
			return fmt.Errorf("marshal plot %q characters: %w", p.Name, err)
		}
		locsJSON, err := json.Marshal(nonNil(p.Locations))
		if err != nil {
			return fmt.Errorf("marshal plot %q locations: %w", p.Name, err)
		}
		eventsJSON, err := json.Marshal(nonNil(p.Events))
		if err != nil {
			return fmt.Errorf("marshal plot %q events: %w", p.Name, err)
		}
		if _, err := stmt.Exec(i+1, p.Name, p.Description, p.Status,
			string(charsJSON), string(locsJSON), "[]", string(eventsJSON)); err != nil {
			return fmt.Errorf("insert plot %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plots: %w", err)
	}
	return nil
}

// PlotRecord is a stored plot row.
type PlotRecord struct {
	ID          int    `db:"id" json:"id"`
	Name        string `db:"plot_name" json:"name"`
	Description string `db:"description" json:"description"`
	Status      string `db:"status" json:"status"`
	Characters  string `db:"involved_characters" json:"characters"`
	Locations   string `db:"involved_locations" json:"locations"`
	Factions    string `db:"involved_factions" json:"factions"`
	Events      string `db:"events_json" json:"events"`
}

// Plots returns the stored plots in order.
func (db *DB) Plots() ([]PlotRecord, error) {
	var rows []PlotRecord
	if err := db.conn.Select(&rows, "SELECT * FROM plots ORDER BY id"); err != nil {
		return nil, fmt.Errorf("select plots: %w", err)
	}
	return rows, nil
}

// SaveCharacters writes all tracked characters (full replace).
func (db *DB) SaveCharacters(chars map[string]*world.Character) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin characters: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM characters"); err != nil {
		return fmt.Errorf("clear characters: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO characters
		(name, type, status, location, affiliations, history)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare character insert: %w", err)
	}
	defer stmt.Close()

	for name, c := range chars {
		historyJSON, err := json.Marshal(struct {
			Events       []world.EventRef    `json:"events"`
			Developments []world.Development `json:"developments"`
		}{nonNil(c.Events), nonNil(c.Developments)})
		if err != nil {
			return fmt.Errorf("marshal character %q history: %w", name, err)
		}
		if _, err := stmt.Exec(name, c.Type, "active", c.Location, "[]", string(historyJSON)); err != nil {
			return fmt.Errorf("insert character %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit characters: %w", err)
	}
	return nil
}

// CharacterCount returns the number of stored characters.
func (db *DB) CharacterCount() (int, error) {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM characters"); err != nil {
		return 0, fmt.Errorf("count characters: %w", err)
	}
	return n, nil
}

// SaveEventDetails stores the follow-up views offered for an event.
func (db *DB) SaveEventDetails(eventID int, d notify.Details) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO event_details
		(event_id, hidden_details, connections, plot_hooks, consequences, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		eventID, d.HiddenDetails, d.Connections, d.PlotHooks, d.Consequences, world.Stamp(time.Now()))
	if err != nil {
		return fmt.Errorf("save details for event %d: %w", eventID, err)
	}
	return nil
}

// EventDetails looks up the follow-up views stored for an event.
func (db *DB) EventDetails(eventID int) (notify.Details, bool, error) {
	var row struct {
		HiddenDetails string `db:"hidden_details"`
		Connections   string `db:"connections"`
		PlotHooks     string `db:"plot_hooks"`
		Consequences  string `db:"consequences"`
	}
	err := db.conn.Get(&row, `SELECT hidden_details, connections, plot_hooks, consequences
		FROM event_details WHERE event_id = ?`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return notify.Details{}, false, nil
	}
	if err != nil {
		return notify.Details{}, false, fmt.Errorf("load details for event %d: %w", eventID, err)
	}
	return notify.Details{
		HiddenDetails: row.HiddenDetails,
		Connections:   row.Connections,
		PlotHooks:     row.PlotHooks,
		Consequences:  row.Consequences,
	}, true, nil
}
