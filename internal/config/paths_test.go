package config

import (
	"path/filepath"
	"testing"
)

func TestPaths(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("HOME", home)
	t.Setenv("VIBESHELL_HOME", "")

	dataDir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if want := filepath.Join(home, ".vibeshell"); dataDir != want {
		t.Fatalf("unexpected data dir: got=%q want=%q", dataDir, want)
	}

	for name, fn := range map[string]func() (string, error){
		"config.toml": ConfigPath,
		"state.db":    StatePath,
		"ui.log":      UILogPath,
	} {
		path, err := fn()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if want := filepath.Join(home, ".vibeshell", name); path != want {
			t.Fatalf("unexpected path: got=%q want=%q", path, want)
		}
	}
}

func TestDataDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VIBESHELL_HOME", dir)
	got, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if got != dir {
		t.Fatalf("unexpected override: got=%q want=%q", got, dir)
	}
}

func TestLogPathResolvesRelative(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VIBESHELL_HOME", dir)
	cfg := Default()
	cfg.Logging.Path = "logs/ui.log"
	path, err := cfg.LogPath()
	if err != nil {
		t.Fatalf("LogPath: %v", err)
	}
	if want := filepath.Join(dir, "logs", "ui.log"); path != want {
		t.Fatalf("unexpected log path: got=%q want=%q", path, want)
	}
}
