package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USHERBOT_CONFIG", "")
	t.Setenv("USHERBOT_HOME", "")

	cfg := DefaultConfig()
	cfg.Bot.Name = "SavedBot"
	if err := Save(cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("reload saved config: %v", err)
	}
	if loaded.Bot.Name != "SavedBot" {
		t.Fatalf("expected saved bot name, got %q", loaded.Bot.Name)
	}

	newDir := filepath.Join(tmpDir, "nested", "dir")
	if err := EnsureDir(newDir); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	if info, err := os.Stat(newDir); err != nil || !info.IsDir() {
		t.Fatalf("expected created directory, err=%v", err)
	}
}

func TestConfigPathRespectsExplicitConfigAndHome(t *testing.T) {
	t.Setenv("USHERBOT_HOME", "/srv/usherhome")
	t.Setenv("USHERBOT_CONFIG", "~/.usherbot/custom.json")

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if path != filepath.Join("/srv/usherhome", ".usherbot", "custom.json") {
		t.Fatalf("unexpected config path: %q", path)
	}
}

func TestLoadInvalidJSONReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"bot":`), 0o600); err != nil {
		t.Fatalf("write invalid config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected JSON error, got nil")
	}
}

func TestSubstituteEnvValuesLeavesUnknownToken(t *testing.T) {
	input := map[string]any{
		"value": "${NOT_SET_VAR_USHERBOT}",
	}
	out := substituteEnvValues(input).(map[string]any)
	if out["value"] != "${NOT_SET_VAR_USHERBOT}" {
		t.Fatalf("expected unknown token kept, got %v", out["value"])
	}
}
