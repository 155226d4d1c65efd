// Package config holds the persisted world settings and the environment
// overrides that configure a chronicle run.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SettingsFile is the name of the settings file inside the data directory.
const SettingsFile = "fantasy_world_settings.json"

// Settings remembers the last world and its credentials between runs.
type Settings struct {
	WorldName      string `json:"world_name"`
	APIKey         string `json:"api_key"`
	TelegramToken  string `json:"telegram_token"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

// MarshalJSON writes every key, with a null chat id until one is known.
func (s Settings) MarshalJSON() ([]byte, error) {
	type plain Settings
	out := struct {
		plain
		TelegramChatID *int64 `json:"telegram_chat_id"`
	}{plain: plain(s)}
	if s.TelegramChatID != 0 {
		out.TelegramChatID = &s.TelegramChatID
	}
	return json.Marshal(out)
}

// SettingsPath returns the settings file inside dir.
func SettingsPath(dir string) string {
	return filepath.Join(dir, SettingsFile)
}

// LoadSettings reads the settings file. A missing file yields ok == false and
// no error.
func LoadSettings(path string) (Settings, bool, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	s.WorldName = strings.TrimSpace(s.WorldName)
	return s, s.WorldName != "", nil
}

// Save writes the settings file, replacing any previous one.
func (s Settings) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Apply overlays credentials given in the environment.
func (s Settings) Apply(e Env) Settings {
	if e.GeminiAPIKey != "" {
		s.APIKey = e.GeminiAPIKey
	}
	if e.TelegramToken != "" {
		s.TelegramToken = e.TelegramToken
	}
	if e.TelegramChatID != 0 {
		s.TelegramChatID = e.TelegramChatID
	}
	return s
}
