package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadSettingsMissing(t *testing.T) {
	s, ok, err := LoadSettings(SettingsPath(t.TempDir()))
	if err != nil || ok || s != (Settings{}) {
		t.Fatalf("LoadSettings = %+v, %v, %v", s, ok, err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	path := SettingsPath(t.TempDir())
	want := Settings{WorldName: "Eldoria", APIKey: "k", TelegramToken: "t", TelegramChatID: -100123}
	if err := want.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := LoadSettings(path)
	if err != nil || !ok || got != want {
		t.Fatalf("LoadSettings = %+v, %v, %v", got, ok, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary file left behind")
	}
}

func TestLoadSettingsNullChatID(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	raw := `{"world_name": "Eldoria", "api_key": "", "telegram_token": "", "telegram_chat_id": null}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}
	got, ok, err := LoadSettings(path)
	if err != nil || !ok || got.WorldName != "Eldoria" || got.TelegramChatID != 0 {
		t.Fatalf("LoadSettings = %+v, %v, %v", got, ok, err)
	}
}

func TestSaveWritesEveryKey(t *testing.T) {
	path := SettingsPath(t.TempDir())
	if err := (Settings{WorldName: "Eldoria"}).Save(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"world_name", "api_key", "telegram_token", "telegram_chat_id"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("key %q missing from %s", key, data)
		}
	}
	if raw["telegram_chat_id"] != nil {
		t.Errorf("unknown chat id saved as %v", raw["telegram_chat_id"])
	}
}

func TestLoadSettingsBlankWorld(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	os.WriteFile(path, []byte(`{"world_name": "  "}`), 0600)
	if _, ok, err := LoadSettings(path); ok || err != nil {
		t.Fatalf("blank world name accepted: %v, %v", ok, err)
	}
}

func TestLoadSettingsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	os.WriteFile(path, []byte(`{"world_name":`), 0600)
	if _, _, err := LoadSettings(path); err == nil || !strings.Contains(err.Error(), "decode settings") {
		t.Fatalf("err = %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	s := Settings{WorldName: "Eldoria", APIKey: "file", TelegramToken: "file", TelegramChatID: 5}
	got := s.Apply(Env{GeminiAPIKey: "env"})
	if got.APIKey != "env" || got.TelegramToken != "file" || got.TelegramChatID != 5 {
		t.Fatalf("Apply = %+v", got)
	}
	got = s.Apply(Env{TelegramToken: "tok", TelegramChatID: 9})
	if got.TelegramToken != "tok" || got.TelegramChatID != 9 || got.APIKey != "file" {
		t.Fatalf("Apply = %+v", got)
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	e, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if e.DataDir != "." || e.MinWait != 10*time.Minute || e.MaxWait != 120*time.Minute || e.APIPort != 0 {
		t.Fatalf("defaults = %+v", e)
	}
	if e.Level() != slog.LevelInfo {
		t.Fatalf("level = %v", e.Level())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHRONICLE_MIN_WAIT", "1s")
	t.Setenv("CHRONICLE_MAX_WAIT", "2s")
	t.Setenv("CHRONICLE_SEED", "42")
	t.Setenv("CHRONICLE_LOG_LEVEL", "DEBUG")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")

	e, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if e.MinWait != time.Second || e.MaxWait != 2*time.Second || e.Seed != 42 || e.TelegramChatID != -1001 {
		t.Fatalf("env = %+v", e)
	}
	if e.Level() != slog.LevelDebug {
		t.Fatalf("level = %v", e.Level())
	}
}

func TestLoadEnvErrors(t *testing.T) {
	tests := map[string][2]string{
		"bad seed":       {"CHRONICLE_SEED", "many"},
		"inverted waits": {"CHRONICLE_MIN_WAIT", "3h"},
		"zero wait":      {"CHRONICLE_MIN_WAIT", "0s"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := LoadEnv(); err == nil || !strings.HasPrefix(err.Error(), "parse env:") {
				t.Fatalf("err = %v", err)
			}
		})
	}
}
