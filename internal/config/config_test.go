package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{APIURL: "https://api.example.com/api", DefaultProfile: "work"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.APIURL != "https://api.example.com/api" {
		t.Errorf("APIURL = %q, want %q", loaded.APIURL, "https://api.example.com/api")
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
}

func TestLoadFillsPollDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{APIURL: "https://api.example.com"}); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := loaded.Poll.ListInterval(); got != 25*time.Second {
		t.Errorf("ListInterval = %v, want 25s", got)
	}
	if got := loaded.Poll.ThreadInterval(); got != 30*time.Second {
		t.Errorf("ThreadInterval = %v, want 30s", got)
	}
	if got := loaded.Poll.Backoff(); got != 90*time.Second {
		t.Errorf("Backoff = %v, want 90s", got)
	}
	if got := loaded.Poll.UnreadThrottle(); got != 15*time.Second {
		t.Errorf("UnreadThrottle = %v, want 15s", got)
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope", "config.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.APIURL == "" {
		t.Error("LoadOrDefault() returned empty APIURL")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
