package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Broker != "" || cfg.Aliases == nil {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "tsmusic", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data := `broker = "mqtt://127.0.0.1:1883"
identity = "alice@desk"

[aliases]
lounge = "tsmd-lounge"

[defaults]
bot = "lounge"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Path()
	if err != nil || got != path {
		t.Fatalf("unexpected path %q (%v)", got, err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Defaults.Bot != "lounge" || cfg.Aliases["lounge"] != "tsmd-lounge" || cfg.Identity != "alice@desk" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadFileRejectsDirectory(t *testing.T) {
	if _, err := LoadFile(t.TempDir()); err == nil {
		t.Fatalf("expected directory error")
	}
}
